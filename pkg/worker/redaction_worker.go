package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/pii-guardian/internal/service/batch"
	"github.com/feichai0017/pii-guardian/internal/utils/validator"
	"github.com/feichai0017/pii-guardian/pkg/logger"
	"github.com/feichai0017/pii-guardian/pkg/queue"
)

type RedactionWorker struct {
	BaseWorker
	redactor batch.Redactor
}

func NewRedactionWorker(cfg *Config, redactor batch.Redactor, log logger.Logger) (*RedactionWorker, error) {
	if cfg == nil || cfg.RedisAddr == "" {
		return nil, fmt.Errorf("redis address is not configured")
	}
	if redactor == nil {
		return nil, fmt.Errorf("redactor is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	w := &RedactionWorker{
		BaseWorker: newBaseWorker(cfg, log.Named("worker")),
		redactor:   redactor,
	}
	w.mux.HandleFunc(queue.TaskTypeRedactImage, w.handleRedaction)
	return w, nil
}

func (w *RedactionWorker) handleRedaction(ctx context.Context, t *asynq.Task) error {
	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %v: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("Processing redaction task",
		logger.String("taskId", task.ID),
		logger.String("filename", task.Payload["filename"]),
	)

	if task.ID == "" || task.Payload == nil {
		return fmt.Errorf("invalid task data: missing required fields: %w", asynq.SkipRetry)
	}

	rw := t.ResultWriter()
	writeResult(rw, w.logger, `{"status":"running","progress":0}`)

	if err := w.redactor.HandleRedaction(ctx, &task); err != nil {
		writeResult(rw, w.logger, fmt.Sprintf(`{"status":"failed","error":%q}`, err.Error()))

		// A rejected image fails the same way on every attempt.
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	writeResult(rw, w.logger, `{"status":"completed","progress":100}`)
	return nil
}

func writeResult(rw *asynq.ResultWriter, log logger.Logger, payload string) {
	if rw == nil {
		return
	}
	if _, err := rw.Write([]byte(payload)); err != nil {
		log.Error("Failed to write task result", logger.Error(err))
	}
}
