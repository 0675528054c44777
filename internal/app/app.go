// Package app builds the shared runtime pieces from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/feichai0017/pii-guardian/config"
	"github.com/feichai0017/pii-guardian/internal/preview"
	"github.com/feichai0017/pii-guardian/internal/remote"
	"github.com/feichai0017/pii-guardian/internal/service/batch"
	"github.com/feichai0017/pii-guardian/internal/service/workflow"
	"github.com/feichai0017/pii-guardian/pkg/logger"
	"github.com/feichai0017/pii-guardian/pkg/queue"
	"github.com/feichai0017/pii-guardian/pkg/storage"
)

type App struct {
	Config  *config.GuardianConfig
	Logger  logger.Logger
	Remote  *remote.Client
	Storage storage.Storage
	Sink    workflow.Sink

	renderer preview.Renderer
	queue    *queue.AsynqQueue
}

func NewLogger(cfg config.LogConfig) (logger.Logger, error) {
	return logger.NewLogger(
		logger.WithLevel(cfg.Level),
		logger.WithEncoding(cfg.Encoding),
		logger.WithOutputPaths(cfg.Outputs),
	)
}

// New connects the detection client and the configured download storage.
func New(ctx context.Context, cfg *config.GuardianConfig, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}

	store, err := storage.NewStorage(ctx, storage.StorageType(cfg.Download.Sink), cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var renderer preview.Renderer = preview.Passthrough{}
	if cfg.Workflow.PreviewMaxDimension > 0 {
		renderer = preview.NewDownscaler(cfg.Workflow.PreviewMaxDimension)
	}

	return &App{
		Config: cfg,
		Logger: log,
		Remote: remote.NewClient(&remote.Config{
			BaseURL:       cfg.API.BaseURL,
			Timeout:       cfg.API.RequestTimeout,
			MinConfidence: cfg.API.MinConfidence,
		}, log),
		Storage:  store,
		Sink:     storage.NewStorageSink(store, "downloads"),
		renderer: renderer,
	}, nil
}

// NewWorkflow returns a fresh controller wired to the shared client and sink.
func (a *App) NewWorkflow() workflow.Workflow {
	opts := remote.DefaultMaskOptions()
	opts.Style = a.Config.API.MaskStyle

	return workflow.NewController(a.Remote, a.renderer, a.Sink, a.Logger, &workflow.Config{
		MaskOptions:    opts,
		RequestTimeout: a.Config.API.RequestTimeout,
		MaxFileSize:    a.Config.Workflow.MaxFileSize,
	})
}

// Redactor opens the task queue on first use.
func (a *App) Redactor() (*batch.Service, error) {
	if a.queue == nil {
		q, err := queue.GetQueue(a.Config.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize queue: %w", err)
		}
		a.queue = q
	}
	return batch.NewService(a.NewWorkflow, a.queue, a.Storage, a.Logger, &batch.ServiceConfig{
		MaxFileSize: a.Config.Workflow.MaxFileSize,
		Priority:    2,
	}), nil
}

func (a *App) Close() error {
	var errs []error
	if a.queue != nil {
		errs = append(errs, a.queue.Close())
	}
	return errors.Join(errs...)
}
