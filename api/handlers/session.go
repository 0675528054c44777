package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pii-guardian/internal/models"
	"github.com/feichai0017/pii-guardian/internal/presenter"
	"github.com/feichai0017/pii-guardian/internal/service/session"
	"github.com/feichai0017/pii-guardian/pkg/converters"
	"github.com/feichai0017/pii-guardian/pkg/logger"
)

type SessionHandler struct {
	registry    *session.Registry
	converter   converters.ReportConverter
	maxFileSize int64
	logger      logger.Logger
}

// SessionResponse is the view of one session plus its raw call statuses.
type SessionResponse struct {
	SessionID  string            `json:"sessionId"`
	Generation uint64            `json:"generation"`
	Detect     models.CallStatus `json:"detect"`
	Mask       models.CallStatus `json:"mask"`
	Stale      bool              `json:"stale,omitempty"`
	presenter.View
}

func NewSessionHandler(registry *session.Registry, converter converters.ReportConverter, maxFileSize int64, log logger.Logger) *SessionHandler {
	return &SessionHandler{
		registry:    registry,
		converter:   converter,
		maxFileSize: maxFileSize,
		logger:      log,
	}
}

func (h *SessionHandler) Create(c *gin.Context) {
	s := h.registry.Create()
	c.JSON(http.StatusCreated, gin.H{
		"sessionId": s.ID,
		"createdAt": s.CreatedAt,
	})
}

func (h *SessionHandler) Get(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s.ID, s.Workflow.State()))
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.registry.Delete(c.Param("id")); err != nil {
		handleError(c, h.logger, "Failed to delete session", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SelectFile accepts a multipart "file" upload as the session's new image.
func (h *SessionHandler) SelectFile(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		respond(c, h.logger, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	if h.maxFileSize > 0 && header.Size > h.maxFileSize {
		respond(c, h.logger, http.StatusRequestEntityTooLarge, "File too large",
			fmt.Errorf("file size %d exceeds limit %d", header.Size, h.maxFileSize))
		return
	}

	file, err := header.Open()
	if err != nil {
		respond(c, h.logger, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond(c, h.logger, http.StatusBadRequest, "Failed to read file", err)
		return
	}

	ctx := h.context(c, s.ID)
	if err := s.Workflow.SelectFile(ctx, &models.SourceFile{
		Name:      header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Size:      int64(len(data)),
		Data:      data,
	}); err != nil {
		handleError(c, h.logger, "File rejected", err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(s.ID, s.Workflow.State()))
}

// Process runs detection and masking and answers once both have settled.
func (h *SessionHandler) Process(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	out, err := s.Workflow.Run(h.context(c, s.ID))
	if err != nil {
		handleError(c, h.logger, "Failed to process image", err)
		return
	}
	resp := sessionResponse(s.ID, out.State)
	resp.Stale = out.Stale
	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) Toggle(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Workflow.ToggleView()
	c.JSON(http.StatusOK, sessionResponse(s.ID, s.Workflow.State()))
}

// Download streams the masked image as an attachment, or 204 without one.
func (h *SessionHandler) Download(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	download, err := s.Workflow.DownloadTo(h.context(c, s.ID), &responseSink{c: c})
	if err != nil {
		handleError(c, h.logger, "Failed to download masked image", err)
		return
	}
	if download == nil {
		c.Status(http.StatusNoContent)
	}
}

// Save hands the masked image to the server-side download sink.
func (h *SessionHandler) Save(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	download, err := s.Workflow.RequestDownload(h.context(c, s.ID))
	if err != nil {
		handleError(c, h.logger, "Failed to save masked image", err)
		return
	}
	if download == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, download)
}

func (h *SessionHandler) Report(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	report, err := h.converter.Convert(s.Workflow.State())
	if err != nil {
		respond(c, h.logger, http.StatusConflict, "No result to report", err)
		return
	}
	report.SessionID = s.ID
	c.JSON(http.StatusOK, report)
}

func (h *SessionHandler) session(c *gin.Context) (*session.Session, bool) {
	s, err := h.registry.Get(c.Param("id"))
	if err != nil {
		handleError(c, h.logger, "Session not found", err)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) context(c *gin.Context, sessionID string) context.Context {
	return logger.ContextWithSessionID(c.Request.Context(), sessionID)
}

func sessionResponse(id string, state models.WorkflowState) SessionResponse {
	return SessionResponse{
		SessionID:  id,
		Generation: state.Generation,
		Detect:     state.Detect,
		Mask:       state.Mask,
		View:       presenter.Present(state),
	}
}

// responseSink writes a download straight into the HTTP response.
type responseSink struct {
	c *gin.Context
}

func (r *responseSink) Save(_ context.Context, name, contentType string, data []byte) (string, error) {
	r.c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	r.c.Data(http.StatusOK, contentType, data)
	return "attachment:" + name, nil
}
