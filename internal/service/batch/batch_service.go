package batch

import (
	"context"

	"github.com/feichai0017/pii-guardian/internal/models"
	"github.com/feichai0017/pii-guardian/pkg/converters"
	"github.com/feichai0017/pii-guardian/pkg/queue"
)

// Redactor runs the detect and mask workflow for uploads in the background.
type Redactor interface {
	Submit(ctx context.Context, file *models.SourceFile) (*queue.TaskStatus, error)
	GetStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error)
	GetReport(ctx context.Context, taskID string) (*converters.RedactionReport, error)
	HandleRedaction(ctx context.Context, task *queue.Task) error
	CancelTask(ctx context.Context, taskID string) error
}
