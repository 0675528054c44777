package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/feichai0017/pii-guardian/config"
	"github.com/feichai0017/pii-guardian/internal/app"
	"github.com/feichai0017/pii-guardian/pkg/logger"
	"github.com/feichai0017/pii-guardian/pkg/worker"
)

func main() {
	cfg, err := config.GetGuardianConfig()
	if err != nil {
		panic(err)
	}

	log, err := app.NewLogger(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize application", logger.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	redactor, err := a.Redactor()
	if err != nil {
		log.Error("Failed to create redaction service", logger.Error(err))
		os.Exit(1)
	}

	redactionWorker, err := worker.NewRedactionWorker(worker.ConfigFromRedis(cfg.Redis), redactor, log)
	if err != nil {
		log.Error("Failed to create redaction worker", logger.Error(err))
		os.Exit(1)
	}

	if err := redactionWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Worker started",
		logger.String("redis", cfg.Redis.Addr),
		logger.String("backend", a.Remote.BaseURL()),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker...")
	redactionWorker.Stop()
	log.Info("Worker stopped")
}
