package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/handlers"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/invoicing"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/notifications"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/auth"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/config"
	pfirestore "github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/firestore"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/observability"
	firestoreRepo "github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/repositories/firestore"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	stockRepo, err := firestoreRepo.NewStockRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise stock repository", zap.Error(err))
	}
	cartRepo, err := firestoreRepo.NewCartRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}
	counterRepo, err := firestoreRepo.NewCounterRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise counter repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider, stockRepo, cartRepo, counterRepo)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	refundRepo, err := firestoreRepo.NewRefundRepository(firestoreProvider, orderRepo, stockRepo)
	if err != nil {
		logger.Fatal("failed to initialise refund repository", zap.Error(err))
	}
	invoiceRepo, err := firestoreRepo.NewInvoiceRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise invoice repository", zap.Error(err))
	}
	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}

	eventLogger := observability.EventLogger()

	var dispatcher services.NotificationDispatcher
	if cfg.Features.EnableNotifications {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		topic := pubsubClient.Topic(cfg.PubSub.NotificationTopic)
		defer topic.Stop()

		dispatcher, err = notifications.NewPubSubDispatcher(topic)
		if err != nil {
			logger.Fatal("failed to initialise notification dispatcher", zap.Error(err))
		}
	}

	var issuer services.InvoiceIssuer
	if cfg.Features.EnableInvoicing {
		storageClient, err := cloudstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("failed to initialise storage client", zap.Error(err))
		}
		defer func() {
			if err := storageClient.Close(); err != nil {
				logger.Warn("storage close error", zap.Error(err))
			}
		}()

		writer, err := invoicing.NewBucketWriter(storageClient, cfg.Invoicing.Bucket)
		if err != nil {
			logger.Fatal("failed to initialise invoice bucket writer", zap.Error(err))
		}
		issuer, err = invoicing.NewIssuer(invoicing.IssuerDeps{
			Invoices:       invoiceRepo,
			Counters:       counterRepo,
			Writer:         writer,
			Bucket:         cfg.Invoicing.Bucket,
			NumberSequence: cfg.Invoicing.NumberSequence,
			IDGenerator: func() string {
				return "inv_" + ulid.Make().String()
			},
		})
		if err != nil {
			logger.Fatal("failed to initialise invoice issuer", zap.Error(err))
		}
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Carts:    cartRepo,
		Products: productRepo,
		Clock:    time.Now,
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:        orderRepo,
		Carts:         cartRepo,
		Products:      productRepo,
		Invoices:      issuer,
		Notifications: dispatcher,
		Clock:         time.Now,
		Logger:        eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	refundService, err := services.NewRefundService(services.RefundServiceDeps{
		Refunds:       refundRepo,
		Orders:        orderRepo,
		Notifications: dispatcher,
		WindowDays:    cfg.Refunds.WindowDays,
		Clock:         time.Now,
		Logger:        eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise refund service", zap.Error(err))
	}

	stockService, err := services.NewStockService(services.StockServiceDeps{
		Stock:  stockRepo,
		Clock:  time.Now,
		Logger: eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise stock service", zap.Error(err))
	}

	healthHandlers := handlers.NewHealthHandlers(map[string]handlers.ReadinessCheck{
		"firestore": func(ctx context.Context) error {
			checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
			defer cancel()
			iter := firestoreClient.Collections(checkCtx)
			_, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			return err
		},
	})

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.RecoveryMiddleware,
			observability.RequestLoggerMiddleware,
			authenticator.Resolve,
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCartRoutes(handlers.NewCartHandlers(cartService).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(orderService).Routes),
		handlers.WithRefundRoutes(handlers.NewRefundHandlers(refundService).Routes),
		handlers.WithStockRoutes(handlers.NewStockHandlers(stockService).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("fulfillment api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
