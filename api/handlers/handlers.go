package handlers

import (
	"github.com/feichai0017/pii-guardian/internal/service/batch"
	"github.com/feichai0017/pii-guardian/internal/service/session"
	"github.com/feichai0017/pii-guardian/internal/utils/validator"
	"github.com/feichai0017/pii-guardian/pkg/converters"
	"github.com/feichai0017/pii-guardian/pkg/logger"
)

type Handlers struct {
	Session *SessionHandler
	Batch   *BatchHandler
	Health  *HealthHandler
}

// NewHandlers wires the API. redactor may be nil when no queue is configured,
// in which case the batch endpoints answer 503.
func NewHandlers(
	registry *session.Registry,
	redactor batch.Redactor,
	upstream HealthChecker,
	maxFileSize int64,
	logger logger.Logger,
) *Handlers {
	v := validator.NewImageValidator(logger, &validator.ValidatorConfig{
		MaxFileSize:  maxFileSize,
		SniffContent: true,
	})
	return &Handlers{
		Session: NewSessionHandler(registry, converters.NewJSONReportConverter(true), maxFileSize, logger),
		Batch:   NewBatchHandler(redactor, v, logger),
		Health:  NewHealthHandler(upstream, registry, logger),
	}
}
