package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andymarkow/smmstore/internal/adminflow"
	"github.com/andymarkow/smmstore/internal/catalog"
	"github.com/andymarkow/smmstore/internal/config"
	"github.com/andymarkow/smmstore/internal/httpclient"
	"github.com/andymarkow/smmstore/internal/logger"
	"github.com/andymarkow/smmstore/internal/orderflow"
	"github.com/andymarkow/smmstore/internal/payments"
	"github.com/andymarkow/smmstore/internal/server"
	"github.com/andymarkow/smmstore/internal/server/router"
	"github.com/andymarkow/smmstore/internal/storage"
	"github.com/andymarkow/smmstore/internal/storage/inmemory"
	"github.com/andymarkow/smmstore/internal/storage/pgstorage"
	"github.com/andymarkow/smmstore/internal/vendor"
)

type Application struct {
	log        *slog.Logger
	server     *server.Server
	reconciler *orderflow.Reconciler
	storage    storage.Storage
}

func New() (*Application, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config.NewConfig: %w", err)
	}

	logLevel, err := logger.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger.ParseLogLevel: %w", err)
	}

	logg := logger.NewLogger(
		logger.WithLevel(logLevel),
		logger.WithFormat(logger.LogFormatJSON),
		logger.WithAddSource(false),
	)

	store, err := newStorage(cfg.DatabaseURI)
	if err != nil {
		return nil, err
	}

	vendorClient := vendor.New(
		vendor.WithLogger(logg),
		vendor.WithAPIKey(cfg.VendorAPIKey),
		vendor.WithClient(httpclient.New(
			httpclient.WithBaseURL(cfg.VendorAPIURL),
			httpclient.WithTimeout(cfg.VendorTimeout),
		)),
	)

	paymentsClient := payments.NewClient(
		payments.WithClientLogger(logg),
		payments.WithAPIKey(cfg.PaymentsAPIKey),
		payments.WithCallbackURL(cfg.PaymentsIPNURL),
		payments.WithClient(httpclient.New(
			httpclient.WithBaseURL(cfg.PaymentsAPIURL),
		)),
	)

	processor := payments.NewProcessor(store, []byte(cfg.PaymentsIPNSecret),
		payments.WithProcessorLogger(logg),
	)

	syncer := catalog.NewSyncer(store, vendorClient,
		catalog.WithLogger(logg),
	)

	orderSvc := orderflow.New(store, vendorClient,
		orderflow.WithLogger(logg),
	)

	adminSvc := adminflow.New(store,
		adminflow.WithLogger(logg),
	)

	reconciler := orderflow.NewReconciler(store,
		orderflow.WithReconcilerLogger(logg),
		orderflow.WithReconcileInterval(cfg.ReconcileInterval),
		orderflow.WithReconcileMaxAge(cfg.ReconcileMaxAge),
	)

	r := router.NewRouter(store,
		router.WithLogger(logg),
		router.WithSecret([]byte(cfg.JWTSecretKey)),
		router.WithOrderFlow(orderSvc),
		router.WithAdminFlow(adminSvc),
		router.WithCatalog(syncer),
		router.WithVendor(vendorClient),
		router.WithPaymentsClient(paymentsClient),
		router.WithPaymentsProcessor(processor),
	)

	srv := server.NewServer(r,
		server.WithServerAddr(cfg.ServerAddr),
		server.WithLogger(logg),
	)

	return &Application{
		log:        logg,
		server:     srv,
		reconciler: reconciler,
		storage:    store,
	}, nil
}

func newStorage(databaseURI string) (storage.Storage, error) {
	if databaseURI == "" {
		return inmemory.NewStorage(), nil
	}

	pgstore, err := pgstorage.NewStorage(databaseURI)
	if err != nil {
		return nil, fmt.Errorf("pgstorage.NewStorage: %w", err)
	}

	if err := pgstore.Bootstrap(context.Background()); err != nil {
		return nil, fmt.Errorf("pgstorage.Bootstrap: %w", err)
	}

	return pgstore, nil
}

func (a *Application) Run() error {
	defer a.storage.Close()

	errChan := make(chan error, 1)

	go func() {
		if err := a.server.Start(); err != nil {
			errChan <- fmt.Errorf("server.Start: %w", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := a.reconciler.Run(ctx); err != nil {
			errChan <- fmt.Errorf("reconciler.Run: %w", err)
		}
	}()

	// Graceful shutdown handler
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case err := <-errChan:
			return err

		case <-quit:
			a.log.Info("Gracefully shutting down application...")

			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			if err := a.server.Shutdown(shutdownCtx); err != nil {
				return err
			}

			return nil
		}
	}
}
