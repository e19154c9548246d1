package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askbook/internal/api"
	"github.com/liliang-cn/askbook/internal/api/middleware"
	"github.com/liliang-cn/askbook/internal/config"
	"github.com/liliang-cn/askbook/internal/repository"
	"github.com/liliang-cn/askbook/internal/service"
	"github.com/liliang-cn/askbook/internal/tracing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	cfg, logger := a.cfg, a.logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Enabled:     cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	// Session store is selected once; an unreachable backend is fatal
	store, err := repository.NewSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Session store ready", zap.String("store", store.Kind()))

	if a.runtime.Index != nil {
		if err := a.ingest.EnsureCollection(ctx); err != nil {
			logger.Warn("Collection bootstrap failed", zap.Error(err))
		}
	}

	persona := service.NewPersona(cfg.Assistant)
	var guard service.Guard
	if cfg.Guard.Enabled && a.runtime.Completer != nil {
		guard = service.NewTopicGuard(a.runtime.Completer, persona, logger)
	}

	orchestrator := service.NewOrchestratorService(
		service.NewRetriever(a.runtime, cfg.Vector.Collection, logger),
		service.NewGenerator(a.runtime, persona, logger),
		guard,
		store,
		persona,
		cfg.RAG.TopK,
		logger,
	)

	limiter, closeLimiter, err := newRateLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.SetupRouter(api.Services{
		Runtime:      a.runtime,
		Orchestrator: orchestrator,
		Chat:         service.NewChatService(store, logger),
		Admin:        service.NewAdminService(a.runtime, a.ingest, store, cfg.Ingest.DocsDir, logger),
	}, api.RouterConfig{
		APIKey:         cfg.Admin.APIKey,
		AllowOrigins:   cfg.Server.AllowOrigins,
		ServiceName:    cfg.Tracing.ServiceName,
		TracingEnabled: cfg.Tracing.Enabled,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		RateLimiter:    limiter,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting AskBook server",
			zap.String("address", cfg.Address()),
			zap.String("base_url", cfg.Server.BaseURL),
			zap.Bool("ready", a.runtime.Ready(ctx) == nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Failed to flush traces", zap.Error(err))
	}

	logger.Info("Server exited")
	return nil
}

// newRateLimiter returns nil when rate limiting is disabled. The returned
// function releases the limiter's backend connection.
func newRateLimiter(ctx context.Context, cfg *config.Config) (middleware.RateLimiter, func() error, error) {
	noop := func() error { return nil }
	if !cfg.RateLimit.Enabled {
		return nil, noop, nil
	}
	switch cfg.RateLimit.Backend {
	case "redis":
		client, err := repository.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return middleware.NewRedisLimiter(client, cfg.Redis.KeyPrefix, cfg.RateLimit.RequestsPerHour, time.Hour), client.Close, nil
	default:
		return middleware.NewLocalLimiter(cfg.RateLimit.RequestsPerHour, cfg.RateLimit.Burst), noop, nil
	}
}
