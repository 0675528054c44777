package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pii-guardian/internal/service/batch"
	"github.com/feichai0017/pii-guardian/internal/service/session"
	"github.com/feichai0017/pii-guardian/internal/service/workflow"
	"github.com/feichai0017/pii-guardian/internal/utils/validator"
	"github.com/feichai0017/pii-guardian/pkg/logger"
	"github.com/feichai0017/pii-guardian/pkg/queue"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var verr *validator.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, queue.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, batch.ErrNotCompleted):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func handleError(c *gin.Context, log logger.Logger, message string, err error) {
	status := statusFor(err)
	respond(c, log, status, message, err)
}

func respond(c *gin.Context, log logger.Logger, status int, message string, err error) {
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if status >= http.StatusInternalServerError {
		log.Error(message, fields...)
	} else {
		log.Warn(message, fields...)
	}

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			response.Code = verr.Code
		}
	}
	c.AbortWithStatusJSON(status, response)
}
