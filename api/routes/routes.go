package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pii-guardian/api/handlers"
	"github.com/feichai0017/pii-guardian/api/middleware"
	"github.com/feichai0017/pii-guardian/pkg/logger"
)

// SetupRoutes registers every API route on r.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, corsOrigins []string, log logger.Logger) {
	r.Use(middleware.CORS(corsOrigins))
	r.Use(middleware.RequestLogger(log))

	v1 := r.Group("/api/v1")
	v1.GET("/health", h.Health.Check)

	sessions := v1.Group("/sessions")
	{
		sessions.POST("", h.Session.Create)
		sessions.GET("/:id", h.Session.Get)
		sessions.DELETE("/:id", h.Session.Delete)
		sessions.POST("/:id/file", h.Session.SelectFile)
		sessions.POST("/:id/process", h.Session.Process)
		sessions.POST("/:id/toggle", h.Session.Toggle)
		sessions.GET("/:id/download", h.Session.Download)
		sessions.POST("/:id/download", h.Session.Save)
		sessions.GET("/:id/report", h.Session.Report)
	}

	tasks := v1.Group("/batch")
	{
		tasks.POST("", h.Batch.Submit)
		tasks.GET("/:taskId", h.Batch.GetStatus)
		tasks.GET("/:taskId/report", h.Batch.GetReport)
		tasks.DELETE("/:taskId", h.Batch.Cancel)
	}
}
