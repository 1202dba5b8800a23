package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/adapters/handler"
	"github.com/DanielPopoola/donation-gateway/internal/adapters/handler/middleware"
	"github.com/DanielPopoola/donation-gateway/internal/api"
	"github.com/DanielPopoola/donation-gateway/internal/core/service"
	"github.com/DanielPopoola/donation-gateway/internal/telemetry"
	"github.com/DanielPopoola/donation-gateway/internal/worker"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the donation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := loadApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, logger := a.cfg, a.logger
	logger.Info("starting donation gateway",
		"port", cfg.Server.Port,
		"env", cfg.Primary.Env,
		"store", cfg.Store.Driver,
	)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("tracer shutdown failed", "error", err)
		}
	}()

	limiter, err := a.rateLimiter(ctx)
	if err != nil {
		return err
	}

	var opts []handler.Option
	if a.stripe != nil {
		opts = append(opts, handler.WithStripeWebhook(a.stripe))
	}
	if a.esewa != nil {
		opts = append(opts, handler.WithEsewaCallbacks(a.esewa))
	}
	h := handler.NewDonationHandler(a.orchestrator, a.queries, handler.Config{
		FrontendURL: cfg.Server.FrontendURL,
	}, logger, opts...)

	validator, err := api.NewValidator(ctx)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	api.RegisterDocsRoutes(mux)
	h.RegisterRoutes(mux, middleware.RateLimit(limiter, cfg.Server.TrustProxy, logger))

	router := validator.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
		handler.WriteError(w, service.NewInvalidInputError(err))
	})(mux)

	root := middleware.Recovery(logger)(router)
	root = middleware.Logging(logger)(root)
	root = middleware.Timeout(cfg.Server.RequestTimeout)(root)
	root = otelhttp.NewHandler(root, "donations")

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	if cfg.Reconcile.Interval > 0 {
		reconciler := worker.NewReconciler(a.repo, a.orchestrator, a.receipts,
			cfg.Reconcile.OlderThan, cfg.Reconcile.BatchSize, logger)
		go reconciler.Start(workerCtx, cfg.Reconcile.Interval)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		return err
	}

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
	return nil
}
