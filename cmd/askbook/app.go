package main

import (
	"context"
	"fmt"

	"github.com/liliang-cn/askbook/internal/config"
	"github.com/liliang-cn/askbook/internal/logger"
	"github.com/liliang-cn/askbook/internal/service"
	"go.uber.org/zap"
)

// app holds what every command needs
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	runtime *service.Runtime
	ingest  *service.IngestService
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	rt := service.NewRuntime(cfg, log)
	return &app{
		cfg:     cfg,
		logger:  log,
		runtime: rt,
		ingest:  service.NewIngestService(rt, service.IngestOptionsFromConfig(cfg), log),
	}, nil
}

// requireReady fails offline commands early with the runtime's reason
func (a *app) requireReady(ctx context.Context) error {
	if err := a.runtime.Ready(ctx); err != nil {
		return fmt.Errorf("cannot run: %w", err)
	}
	return nil
}

func (a *app) close() {
	if err := a.runtime.Close(); err != nil {
		a.logger.Warn("Failed to close vector index", zap.Error(err))
	}
	_ = a.logger.Sync()
}
