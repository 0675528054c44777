package workflow

import (
	"context"
	"errors"

	"github.com/feichai0017/pii-guardian/internal/models"
	"github.com/feichai0017/pii-guardian/internal/remote"
)

// ErrInvalidTransition is returned when an operation is not allowed in the
// current phase. The state is left untouched.
var ErrInvalidTransition = errors.New("invalid workflow transition")

// ErrNoSink is returned by RequestDownload when no download sink is configured.
var ErrNoSink = errors.New("no download sink configured")

// Workflow is one user's select → process → review session.
type Workflow interface {
	SelectFile(ctx context.Context, file *models.SourceFile) error
	Start(ctx context.Context) (<-chan Outcome, error)
	Run(ctx context.Context) (Outcome, error)
	ToggleView() models.ViewMode
	RequestDownload(ctx context.Context) (*Download, error)
	DownloadTo(ctx context.Context, sink Sink) (*Download, error)
	State() models.WorkflowState
}

// Backend runs the two remote operations. *remote.Client satisfies it.
type Backend interface {
	Detect(ctx context.Context, file *models.SourceFile) (*remote.DetectResponse, error)
	Mask(ctx context.Context, file *models.SourceFile, opts remote.MaskOptions) (*remote.MaskResponse, error)
}

// Sink saves a downloaded masked image and reports where it went.
type Sink interface {
	Save(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// Outcome is delivered once both remote calls of a run have settled.
type Outcome struct {
	Generation uint64
	// Stale is set when a new file was selected while the run was in flight;
	// its results were discarded and State reflects the newer selection.
	Stale bool
	State models.WorkflowState
}

// Download describes a masked image handed to a sink.
type Download struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	Location    string `json:"location"`
}
