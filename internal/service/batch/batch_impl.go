package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/pii-guardian/internal/models"
	"github.com/feichai0017/pii-guardian/internal/service/workflow"
	"github.com/feichai0017/pii-guardian/pkg/converters"
	"github.com/feichai0017/pii-guardian/pkg/logger"
	"github.com/feichai0017/pii-guardian/pkg/queue"
	"github.com/feichai0017/pii-guardian/pkg/storage"
)

const (
	ResultOriginal = "original"
	ResultMasked   = "masked"
	ResultReport   = "report"

	keyPrefix = "batch"
)

var ErrNotCompleted = errors.New("task is not completed")

// WorkflowFactory builds a fresh headless workflow for one task.
type WorkflowFactory func() workflow.Workflow

type Service struct {
	newWorkflow WorkflowFactory
	queue       queue.Queue
	storage     storage.Storage
	converter   converters.ReportConverter
	logger      logger.Logger
	config      *ServiceConfig
}

type ServiceConfig struct {
	MaxFileSize int64
	// Priority selects the asynq queue: 1 critical, 2 default, else low.
	Priority int
	// IncludeReportText keeps detected PII text in stored reports.
	IncludeReportText bool
}

func NewService(
	factory WorkflowFactory,
	q queue.Queue,
	store storage.Storage,
	log logger.Logger,
	cfg *ServiceConfig,
) *Service {
	if cfg == nil {
		cfg = &ServiceConfig{
			MaxFileSize: 10 * 1024 * 1024,
			Priority:    2,
		}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		newWorkflow: factory,
		queue:       q,
		storage:     store,
		converter:   converters.NewJSONReportConverter(cfg.IncludeReportText),
		logger:      log.Named("batch"),
		config:      cfg,
	}
}

var _ Redactor = (*Service)(nil)

// Submit stores the upload and enqueues a redaction task for it.
func (s *Service) Submit(ctx context.Context, file *models.SourceFile) (*queue.TaskStatus, error) {
	if !file.IsImage() {
		return nil, fmt.Errorf("refusing to enqueue non-image file")
	}

	taskID := uuid.New().String()
	key := objectKey(taskID, path.Base(file.Name))
	if _, err := s.storage.Store(ctx, bytes.NewReader(file.Data), key); err != nil {
		s.logger.Error("Failed to store upload",
			logger.String("filename", file.Name),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	task := &queue.Task{
		ID:       taskID,
		Type:     queue.TaskTypeRedactImage,
		Priority: s.config.Priority,
		Payload: map[string]string{
			"fileKey":   key,
			"filename":  file.Name,
			"mediaType": file.MediaType,
			"size":      strconv.FormatInt(file.Size, 10),
		},
		CreatedAt: time.Now(),
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Error("Failed to enqueue task",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	status := &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    queue.StatusPending,
		Result:    map[string]string{ResultOriginal: key},
		StartedAt: task.CreatedAt,
	}
	if err := s.queue.SaveStatus(ctx, status); err != nil {
		s.logger.Error("Failed to save initial status",
			logger.String("taskId", task.ID),
			logger.Error(err),
		)
	}

	s.logger.Info("Redaction task created",
		logger.String("taskId", task.ID),
		logger.String("filename", file.Name),
	)
	return status, nil
}

func (s *Service) GetStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error) {
	status, err := s.queue.GetTaskStatus(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}
	return status, nil
}

func (s *Service) GetReport(ctx context.Context, taskID string) (*converters.RedactionReport, error) {
	status, err := s.GetStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}
	key, ok := status.Result[ResultReport]
	if status.Status != queue.StatusCompleted || !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotCompleted, status.Status)
	}

	reader, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	defer reader.Close()

	var report converters.RedactionReport
	if err := json.NewDecoder(reader).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &report, nil
}

func (s *Service) CancelTask(ctx context.Context, taskID string) error {
	if err := s.queue.CancelTask(ctx, taskID); err != nil {
		return err
	}
	s.logger.Info("Task cancelled", logger.String("taskId", taskID))
	return nil
}

// HandleRedaction runs one queued task through a fresh workflow. Outputs land
// next to the upload; the final status is saved whether or not it succeeds.
func (s *Service) HandleRedaction(ctx context.Context, task *queue.Task) error {
	if task == nil || task.ID == "" || task.Payload["fileKey"] == "" {
		return fmt.Errorf("invalid task: missing required data")
	}
	ctx = logger.ContextWithSessionID(ctx, task.ID)
	log := logger.FromContext(ctx, s.logger)
	started := time.Now()

	result := map[string]string{ResultOriginal: task.Payload["fileKey"]}
	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    queue.StatusRunning,
		Progress:  0.1,
		Result:    result,
		StartedAt: started,
	})

	report, err := s.redact(ctx, task, result)
	final := &queue.TaskStatus{
		TaskID:     task.ID,
		Status:     queue.StatusCompleted,
		Progress:   1.0,
		Result:     result,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err != nil {
		final.Status = queue.StatusFailed
		final.Error = err.Error()
	}
	s.saveStatus(ctx, final)

	if err != nil {
		log.Error("Redaction failed", logger.Error(err))
		return err
	}
	log.Info("Redaction completed",
		logger.String("status", report.Status),
		logger.Int("entities", report.Summary.EntityCount),
		logger.Bool("masked", report.Summary.Masked),
	)
	return nil
}

func (s *Service) redact(ctx context.Context, task *queue.Task, result map[string]string) (*converters.RedactionReport, error) {
	data, err := s.load(ctx, task.Payload["fileKey"])
	if err != nil {
		return nil, err
	}

	wf := s.newWorkflow()
	if err := wf.SelectFile(ctx, &models.SourceFile{
		Name:      task.Payload["filename"],
		MediaType: task.Payload["mediaType"],
		Size:      int64(len(data)),
		Data:      data,
	}); err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}

	out, err := wf.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run workflow: %w", err)
	}

	report, err := s.converter.Convert(out.State)
	if err != nil {
		return nil, fmt.Errorf("failed to convert report: %w", err)
	}
	report.SessionID = task.ID

	if out.State.MaskedImage != nil {
		download, err := wf.DownloadTo(ctx, &prefixSink{storage: s.storage, prefix: objectKey(task.ID, "")})
		if err != nil {
			return nil, err
		}
		result[ResultMasked] = download.Location
	}

	reportData, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	reportKey, err := s.storage.Store(ctx, bytes.NewReader(reportData), objectKey(task.ID, "report.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	result[ResultReport] = reportKey

	// Both calls failing usually means the backend is down; let the queue retry.
	if report.Status == converters.ReportStatusFailed {
		return report, fmt.Errorf("detection and masking both failed: %s; %s",
			out.State.Detect.Error, out.State.Mask.Error)
	}
	return report, nil
}

func (s *Service) load(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	defer reader.Close()

	limit := s.config.MaxFileSize
	if limit <= 0 {
		limit = 10 * 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (s *Service) saveStatus(ctx context.Context, status *queue.TaskStatus) {
	if err := s.queue.SaveStatus(ctx, status); err != nil {
		s.logger.Error("Failed to save task status",
			logger.String("taskId", status.TaskID),
			logger.String("status", status.Status),
			logger.Error(err),
		)
	}
}

func objectKey(taskID, name string) string {
	return path.Join(keyPrefix, taskID, name)
}

// prefixSink stores downloads under a fixed prefix without renaming them.
type prefixSink struct {
	storage storage.Storage
	prefix  string
}

func (p *prefixSink) Save(ctx context.Context, name, _ string, data []byte) (string, error) {
	return p.storage.Store(ctx, bytes.NewReader(data), path.Join(p.prefix, path.Base(name)))
}
