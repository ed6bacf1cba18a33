package observability

import (
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/auth"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/requestctx"
)

// InjectLoggerMiddleware stores the base logger on the request context so
// downstream layers can enrich it with request scoped fields.
func InjectLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLogger(r.Context(), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLoggerMiddleware emits one structured access log line per request.
func RequestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		ctx := r.Context()
		fields := []zap.Field{
			zap.String("http_method", SanitizeMethod(r.Method)),
			zap.String("http_route", SanitizeRoute(r.URL.Path)),
			zap.Int("http_status", rec.status),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
		}
		if trace, ok := requestctx.Trace(ctx); ok && trace.TraceID != "" {
			fields = append(fields, zap.String("trace_id", trace.TraceID))
		}
		if identity, ok := auth.IdentityFromContext(ctx); ok {
			fields = append(fields, zap.String("owner_key", SanitizeOwnerKey(identity.OwnerKey())))
		}

		logger := FromContext(ctx)
		switch {
		case rec.status >= http.StatusInternalServerError:
			logger.Error("http_request", fields...)
		case rec.status >= http.StatusBadRequest:
			logger.Warn("http_request", fields...)
		default:
			logger.Info("http_request", fields...)
		}
	})
}

// RecoveryMiddleware converts panics into 500 responses with a logged stack.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger := FromContext(r.Context())
				logger.Error("panic_recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
					zap.String("http_route", SanitizeRoute(r.URL.Path)),
				)
				http.Error(w, `{"code":"internal","message":"internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	return r.ResponseWriter.Write(b)
}
