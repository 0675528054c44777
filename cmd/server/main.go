package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pii-guardian/api/handlers"
	"github.com/feichai0017/pii-guardian/api/routes"
	"github.com/feichai0017/pii-guardian/config"
	"github.com/feichai0017/pii-guardian/internal/app"
	"github.com/feichai0017/pii-guardian/internal/service/batch"
	"github.com/feichai0017/pii-guardian/internal/service/session"
	"github.com/feichai0017/pii-guardian/internal/service/workflow"
	"github.com/feichai0017/pii-guardian/pkg/logger"
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
		log.Fatal("Failed to initialize application", logger.Error(err))
	}
	defer a.Close()

	// batch endpoints stay disabled without redis
	var redactor batch.Redactor
	if svc, err := a.Redactor(); err != nil {
		log.Warn("Batch redaction disabled", logger.Error(err))
	} else {
		redactor = svc
	}

	registry := session.NewRegistry(func(string) workflow.Workflow {
		return a.NewWorkflow()
	}, cfg.Server.SessionIdleTTL, log)
	go registry.RunJanitor(ctx, time.Minute)

	h := handlers.NewHandlers(registry, redactor, a.Remote, cfg.Workflow.MaxFileSize, log)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = cfg.Workflow.MaxFileSize
	routes.SetupRoutes(r, h, cfg.Server.CORSOrigins, log)

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: r,
	}

	go func() {
		log.Info("Server starting",
			logger.String("addr", cfg.Server.ListenAddr),
			logger.String("backend", a.Remote.BaseURL()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
