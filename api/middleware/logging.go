package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pii-guardian/pkg/logger"
)

// RequestLogger logs one line per request through the service logger.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, logger.String("sessionId", id))
		}
		log.Debug("Request handled", fields...)
	}
}
