package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/pii-guardian/internal/models"
	"github.com/feichai0017/pii-guardian/internal/normalizer"
	"github.com/feichai0017/pii-guardian/internal/preview"
	"github.com/feichai0017/pii-guardian/internal/remote"
	"github.com/feichai0017/pii-guardian/internal/utils/validator"
	"github.com/feichai0017/pii-guardian/pkg/logger"
)

const (
	DefaultRequestTimeout = 60 * time.Second
	DefaultDownloadName   = "masked_image"
)

var _ Workflow = (*Controller)(nil)

// Controller owns one WorkflowState. Every mutation happens under mu, so
// observers only ever see whole transitions.
type Controller struct {
	mu    sync.Mutex
	state models.WorkflowState

	backend   Backend
	renderer  preview.Renderer
	sink      Sink
	validator *validator.ImageValidator
	logger    logger.Logger
	config    *Config
}

type Config struct {
	MaskOptions remote.MaskOptions
	// RequestTimeout bounds a whole run, both calls included.
	RequestTimeout time.Duration
	MaxFileSize    int64
	DownloadName   string
}

func NewController(
	backend Backend,
	renderer preview.Renderer,
	sink Sink,
	log logger.Logger,
	cfg *Config,
) *Controller {
	if cfg == nil {
		cfg = &Config{MaskOptions: remote.DefaultMaskOptions()}
	}
	if cfg.MaskOptions.Style == "" {
		cfg.MaskOptions.Style = remote.DefaultMaskOptions().Style
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.DownloadName == "" {
		cfg.DownloadName = DefaultDownloadName
	}
	if renderer == nil {
		renderer = preview.Passthrough{}
	}
	if log == nil {
		log = logger.NewNop()
	}

	v := validator.NewImageValidator(log, &validator.ValidatorConfig{
		MaxFileSize:  cfg.MaxFileSize,
		SniffContent: true,
	})

	return &Controller{
		state:     models.NewWorkflowState(),
		backend:   backend,
		renderer:  renderer,
		sink:      sink,
		validator: v,
		logger:    log.Named("workflow"),
		config:    cfg,
	}
}

// SelectFile replaces the current file. It is valid in every phase; a run in
// flight for the previous file is detached and its results will be dropped.
// Rejected files leave the state untouched.
func (c *Controller) SelectFile(ctx context.Context, file *models.SourceFile) error {
	log := logger.FromContext(ctx, c.logger)

	var accepted *models.SourceFile
	var err error
	if file == nil {
		accepted, err = c.validator.Accept("", "", nil)
	} else {
		accepted, err = c.validator.Accept(file.Name, file.MediaType, file.Data)
	}
	if err != nil {
		log.Info("File rejected", logger.Error(err))
		return err
	}

	originalPreview, err := c.renderer.Render(ctx, accepted)
	if err != nil {
		return fmt.Errorf("failed to render preview: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.state
	c.state = models.NewWorkflowState()
	c.state.Generation = previous.Generation + 1
	c.state.File = accepted
	c.state.OriginalPreview = originalPreview
	c.state.Phase = models.PhaseReady

	log.Info("File selected",
		logger.String("filename", accepted.Name),
		logger.String("mediaType", accepted.MediaType),
		logger.Int64("size", accepted.Size),
		logger.Uint64("generation", c.state.Generation),
		logger.Bool("supersededRun", previous.Phase == models.PhaseProcessing),
	)
	return nil
}

// Start moves to Processing and dispatches detect and mask concurrently. The
// returned channel delivers exactly one Outcome once both calls settle.
func (c *Controller) Start(ctx context.Context) (<-chan Outcome, error) {
	c.mu.Lock()
	if c.state.File == nil || (c.state.Phase != models.PhaseReady && c.state.Phase != models.PhaseResult) {
		phase := c.state.Phase
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot process in phase %s", ErrInvalidTransition, phase)
	}
	c.state.Phase = models.PhaseProcessing
	file := c.state.File
	generation := c.state.Generation
	c.mu.Unlock()

	done := make(chan Outcome, 1)
	go func() {
		done <- c.process(ctx, file, generation)
		close(done)
	}()
	return done, nil
}

// Run is Start followed by waiting for the outcome.
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	done, err := c.Start(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return <-done, nil
}

// callResult holds what one remote call produced. Failures stay local to it.
type callResult struct {
	entities []models.DetectedEntity
	masked   *models.MaskedImage
	status   models.CallStatus
}

func (c *Controller) process(ctx context.Context, file *models.SourceFile, generation uint64) Outcome {
	log := logger.FromContext(ctx, c.logger).With(logger.Uint64("generation", generation))
	start := time.Now()

	// The caller going away does not abort the calls; only the run deadline does.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.RequestTimeout)
	defer cancel()

	var detected, masked callResult

	// Neither call can cancel the other; both are always awaited.
	var g errgroup.Group
	g.Go(func() error {
		detected = c.detect(runCtx, log, file)
		return nil
	})
	g.Go(func() error {
		masked = c.mask(runCtx, log, file)
		return nil
	})
	_ = g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Generation != generation {
		log.Warn("Discarding stale results",
			logger.Uint64("currentGeneration", c.state.Generation),
		)
		return Outcome{Generation: generation, Stale: true, State: c.state.Clone()}
	}

	c.state.Entities = detected.entities
	c.state.Detect = detected.status
	c.state.MaskedImage = masked.masked
	c.state.Mask = masked.status
	if c.state.MaskedImage == nil {
		c.state.ViewMode = models.ViewOriginal
	}
	c.state.Phase = models.PhaseResult
	c.state.CompletedAt = time.Now()

	log.Info("Processing completed",
		logger.Int("entities", len(c.state.Entities)),
		logger.Bool("masked", c.state.MaskedImage != nil),
		logger.String("detectStatus", string(c.state.Detect.State)),
		logger.String("maskStatus", string(c.state.Mask.State)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return Outcome{Generation: generation, State: c.state.Clone()}
}

func (c *Controller) detect(ctx context.Context, log logger.Logger, file *models.SourceFile) callResult {
	resp, err := c.backend.Detect(ctx, file)
	if err != nil {
		log.Warn("Detection failed", logger.Error(err))
		return callResult{
			entities: []models.DetectedEntity{},
			status:   failedStatus(err),
		}
	}

	var raw []remote.RawEntity
	if resp != nil {
		raw = resp.DetectedPII
	}
	entities := normalizer.NormalizeEntities(raw)
	status := models.CallStatus{State: models.CallSucceeded}
	if len(entities) == 0 {
		status.State = models.CallEmpty
	}
	return callResult{entities: entities, status: status}
}

func (c *Controller) mask(ctx context.Context, log logger.Logger, file *models.SourceFile) callResult {
	resp, err := c.backend.Mask(ctx, file, c.config.MaskOptions)
	if err != nil {
		log.Warn("Masking failed", logger.Error(err))
		return callResult{status: failedStatus(err)}
	}

	img := normalizer.NormalizeMask(resp)
	status := models.CallStatus{State: models.CallSucceeded}
	if img == nil {
		status.State = models.CallEmpty
	}
	return callResult{masked: img, status: status}
}

func failedStatus(err error) models.CallStatus {
	return models.CallStatus{
		State:      models.CallFailed,
		StatusCode: remote.StatusCode(err),
		Error:      err.Error(),
	}
}

// ToggleView flips between the original and masked view. Without a masked
// image it is a no-op.
func (c *Controller) ToggleView() models.ViewMode {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.MaskedImage == nil {
		return c.state.ViewMode
	}
	if c.state.ViewMode == models.ViewMasked {
		c.state.ViewMode = models.ViewOriginal
	} else {
		c.state.ViewMode = models.ViewMasked
	}
	return c.state.ViewMode
}

// RequestDownload saves the masked image to the configured sink. Without a
// masked image it does nothing and returns (nil, nil).
func (c *Controller) RequestDownload(ctx context.Context) (*Download, error) {
	if c.sink == nil {
		if c.maskedImage() == nil {
			return nil, nil
		}
		return nil, ErrNoSink
	}
	return c.DownloadTo(ctx, c.sink)
}

// DownloadTo is RequestDownload with an explicit sink. State is not modified.
func (c *Controller) DownloadTo(ctx context.Context, sink Sink) (*Download, error) {
	masked := c.maskedImage()
	if masked == nil {
		return nil, nil
	}
	if sink == nil {
		return nil, ErrNoSink
	}

	data, err := masked.Bytes()
	if err != nil {
		return nil, err
	}

	name := c.config.DownloadName + extensionFor(masked.ContentType)
	location, err := sink.Save(ctx, name, masked.ContentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to save masked image: %w", err)
	}

	logger.FromContext(ctx, c.logger).Info("Masked image downloaded",
		logger.String("name", name),
		logger.String("location", location),
		logger.Int("size", len(data)),
	)
	return &Download{
		Name:        name,
		ContentType: masked.ContentType,
		Size:        len(data),
		Location:    location,
	}, nil
}

// State returns a snapshot that shares no mutable slices with the controller.
func (c *Controller) State() models.WorkflowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

func (c *Controller) maskedImage() *models.MaskedImage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.MaskedImage
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".png"
}
