package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pii-guardian/internal/service/session"
	"github.com/feichai0017/pii-guardian/pkg/logger"
)

// HealthChecker probes the detection backend. *remote.Client satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	upstream HealthChecker
	registry *session.Registry
	logger   logger.Logger
	timeout  time.Duration
}

func NewHealthHandler(upstream HealthChecker, registry *session.Registry, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		upstream: upstream,
		registry: registry,
		logger:   log,
		timeout:  5 * time.Second,
	}
}

// Check always answers 200 while this process is up; upstream trouble is
// reported in the body.
func (h *HealthHandler) Check(c *gin.Context) {
	body := gin.H{
		"status":   "ok",
		"upstream": "unknown",
	}
	if h.registry != nil {
		body["sessions"] = h.registry.Len()
	}

	if h.upstream != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()
		if err := h.upstream.Health(ctx); err != nil {
			h.logger.Warn("Upstream health check failed", logger.Error(err))
			body["status"] = "degraded"
			body["upstream"] = "unavailable"
			body["error"] = err.Error()
		} else {
			body["upstream"] = "ok"
		}
	}
	c.JSON(http.StatusOK, body)
}
