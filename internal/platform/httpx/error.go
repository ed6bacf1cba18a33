// Package httpx provides small helpers for writing JSON responses and the
// shared error envelope used by every handler.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/requestctx"
)

// Error codes shared across the API surface.
const (
	CodeValidation        = "validation_error"
	CodeAuthentication    = "authentication_required"
	CodeAuthorization     = "authorization_denied"
	CodeNotFound          = "not_found"
	CodeStockInsufficient = "stock_insufficient"
	CodeStateConflict     = "state_conflict"
	CodeDependency        = "dependency_failure"
	CodeInternal          = "internal"
)

// ErrorBody is the JSON error envelope returned to clients.
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Status    int            `json:"status"`
	RequestID string         `json:"request_id,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the standard error envelope. Details may be nil.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	body := ErrorBody{
		Code:    code,
		Message: message,
		Status:  status,
		Details: details,
	}
	if r != nil {
		ctx := r.Context()
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			body.RequestID = reqID
		}
		if trace, ok := requestctx.Trace(ctx); ok {
			body.TraceID = trace.TraceID
		}
	}
	JSON(w, status, body)
}

// NotFoundHandler is installed as the router's fallback for unknown routes.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	Error(w, r, http.StatusNotFound, CodeNotFound, "resource not found", nil)
}

// MethodNotAllowedHandler is installed as the router's 405 fallback.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	Error(w, r, http.StatusMethodNotAllowed, CodeValidation, "method not allowed", nil)
}
