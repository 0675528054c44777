package models

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Phase is the discrete state of a workflow session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseReady      Phase = "ready"
	PhaseProcessing Phase = "processing"
	PhaseResult     Phase = "result"
)

// ViewMode selects which image the display shows.
type ViewMode string

const (
	ViewOriginal ViewMode = "original"
	ViewMasked   ViewMode = "masked"
)

// SourceFile is an accepted input image. It is never mutated after acceptance;
// a new selection replaces it wholesale.
type SourceFile struct {
	Name      string    `json:"name"`
	MediaType string    `json:"mediaType"`
	Size      int64     `json:"size"`
	Data      []byte    `json:"-"`
	Hash      string    `json:"hash,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

// IsImage reports whether the declared media type is an image type.
func (f *SourceFile) IsImage() bool {
	return f != nil && strings.HasPrefix(strings.ToLower(f.MediaType), "image/")
}

// BoundingBox is an axis-aligned box (X0,Y0)-(X1,Y1) in image pixels.
type BoundingBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// IsZero reports whether the box is the (0,0,0,0) placeholder.
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

// DetectedEntity is a PII span reported by the detection backend.
type DetectedEntity struct {
	Type        string      `json:"type"`
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// ImageResource is an in-memory renderable image.
type ImageResource struct {
	MediaType string `json:"mediaType"`
	Data      []byte `json:"-"`
}

// DataURI renders the resource as a data: URI.
func (r *ImageResource) DataURI() string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("data:%s;base64,%s", r.MediaType, base64.StdEncoding.EncodeToString(r.Data))
}

// MaskedImage is the redacted image returned by the masking backend, kept in
// its base64 form so it can be embedded directly.
type MaskedImage struct {
	ContentType string `json:"contentType"`
	Encoded     string `json:"-"`
	MaskedCount int    `json:"maskedCount"`
}

// DataURI renders the masked image as a data: URI.
func (m *MaskedImage) DataURI() string {
	if m == nil {
		return ""
	}
	return "data:" + m.ContentType + ";base64," + m.Encoded
}

// Bytes decodes the image payload.
func (m *MaskedImage) Bytes() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(m.Encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode masked image: %w", err)
	}
	return data, nil
}

// Resource converts the masked image into a displayable resource.
func (m *MaskedImage) Resource() (*ImageResource, error) {
	data, err := m.Bytes()
	if err != nil || data == nil {
		return nil, err
	}
	return &ImageResource{MediaType: m.ContentType, Data: data}, nil
}

// CallState describes how a remote call of the last run ended.
type CallState string

const (
	CallNotRun    CallState = "not_run"
	CallSucceeded CallState = "succeeded"
	// CallEmpty means the call succeeded but returned nothing to show.
	CallEmpty  CallState = "empty"
	CallFailed CallState = "failed"
)

type CallStatus struct {
	State      CallState `json:"state"`
	StatusCode int       `json:"statusCode,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// WorkflowState is the aggregate owned by one workflow controller.
type WorkflowState struct {
	File            *SourceFile      `json:"file,omitempty"`
	OriginalPreview *ImageResource   `json:"-"`
	MaskedImage     *MaskedImage     `json:"maskedImage,omitempty"`
	Entities        []DetectedEntity `json:"entities"`
	Phase           Phase            `json:"phase"`
	ViewMode        ViewMode         `json:"viewMode"`
	Detect          CallStatus       `json:"detect"`
	Mask            CallStatus       `json:"mask"`
	// Generation changes on every file selection; results are only merged
	// into the generation they were dispatched for.
	Generation  uint64    `json:"generation"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
}

// NewWorkflowState returns the Idle state.
func NewWorkflowState() WorkflowState {
	return WorkflowState{
		Entities: []DetectedEntity{},
		Phase:    PhaseIdle,
		ViewMode: ViewOriginal,
		Detect:   CallStatus{State: CallNotRun},
		Mask:     CallStatus{State: CallNotRun},
	}
}

// Clone returns a copy that shares no mutable slices with s.
func (s WorkflowState) Clone() WorkflowState {
	out := s
	out.Entities = append([]DetectedEntity{}, s.Entities...)
	return out
}
