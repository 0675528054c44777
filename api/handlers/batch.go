package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pii-guardian/internal/service/batch"
	"github.com/feichai0017/pii-guardian/internal/utils/validator"
	"github.com/feichai0017/pii-guardian/pkg/logger"
)

var errBatchDisabled = errors.New("batch redaction is not configured")

type BatchHandler struct {
	redactor  batch.Redactor
	validator *validator.ImageValidator
	logger    logger.Logger
}

type SubmitResponse struct {
	TaskID    string `json:"taskId"`
	Status    string `json:"status"`
	Filename  string `json:"filename"`
	FileSize  int64  `json:"fileSize"`
	MediaType string `json:"mediaType"`
	CreatedAt string `json:"createdAt"`
}

func NewBatchHandler(redactor batch.Redactor, v *validator.ImageValidator, log logger.Logger) *BatchHandler {
	return &BatchHandler{
		redactor:  redactor,
		validator: v,
		logger:    log,
	}
}

// Submit enqueues every uploaded "file" part. Invalid files are reported
// alongside the accepted ones.
func (h *BatchHandler) Submit(c *gin.Context) {
	if !h.enabled(c) {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respond(c, h.logger, http.StatusBadRequest, "Invalid form data", err)
		return
	}
	headers := form.File["file"]
	if len(headers) == 0 {
		respond(c, h.logger, http.StatusBadRequest, "No files provided", nil)
		return
	}

	files, errs := h.validator.AcceptFiles(headers)
	tasks := make([]SubmitResponse, 0, len(files))
	rejected := make([]gin.H, 0)
	for i, file := range files {
		if errs[i] != nil {
			rejected = append(rejected, gin.H{
				"filename": headers[i].Filename,
				"error":    errs[i].Error(),
			})
			continue
		}

		status, err := h.redactor.Submit(c.Request.Context(), file)
		if err != nil {
			handleError(c, h.logger, "Failed to enqueue file", err)
			return
		}
		tasks = append(tasks, SubmitResponse{
			TaskID:    status.TaskID,
			Status:    status.Status,
			Filename:  file.Name,
			FileSize:  file.Size,
			MediaType: file.MediaType,
			CreatedAt: status.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	code := http.StatusAccepted
	if len(tasks) == 0 {
		code = http.StatusBadRequest
	}
	c.JSON(code, gin.H{
		"message":  fmt.Sprintf("Queued %d of %d images", len(tasks), len(headers)),
		"tasks":    tasks,
		"rejected": rejected,
	})
}

func (h *BatchHandler) GetStatus(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	status, err := h.redactor.GetStatus(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		handleError(c, h.logger, "Failed to get status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *BatchHandler) GetReport(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	report, err := h.redactor.GetReport(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		handleError(c, h.logger, "Failed to get report", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *BatchHandler) Cancel(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	taskID := c.Param("taskId")
	if err := h.redactor.CancelTask(c.Request.Context(), taskID); err != nil {
		handleError(c, h.logger, "Failed to cancel task", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Task cancelled successfully",
		"taskId":  taskID,
	})
}

func (h *BatchHandler) enabled(c *gin.Context) bool {
	if h.redactor == nil {
		respond(c, h.logger, http.StatusServiceUnavailable, "Batch redaction unavailable", errBatchDisabled)
		return false
	}
	return true
}
