package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"bookledger/internal/catalog"
	"bookledger/internal/config"
	"bookledger/internal/directory"
	"bookledger/internal/ledger"
	"bookledger/internal/storage"
	"bookledger/internal/telemetry"
	"bookledger/internal/web"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Error("load config", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, *cfg)
	if err != nil {
		logger.Error("setup tracing", zap.Error(err))
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("shutdown tracing", zap.Error(err))
		}
	}()

	db, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.Error("open storage", zap.Error(err))
		return err
	}
	defer db.Close()

	catalogSvc := catalog.NewService(db, logger)
	directorySvc := directory.NewService(db, logger, cfg.AuthRatePerMinute)
	ledgerSvc := ledger.NewService(db, logger, cfg.LoanPeriodDays)

	directoryHandler := directory.NewHandler(directorySvc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(web.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Mount("/books", catalog.NewHandler(catalogSvc).Routes())
	r.Mount("/loans", ledger.NewHandler(ledgerSvc).Routes())
	r.Mount("/users", directoryHandler.UserRoutes())
	r.Mount("/librarians", directoryHandler.LibrarianRoutes())
	r.Mount("/auth", directoryHandler.AuthRoutes())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("driver", cfg.DatabaseDriver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
			return err
		}
	}

	return nil
}
