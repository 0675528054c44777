package converters

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/feichai0017/pii-guardian/internal/models"
)

const (
	ReportStatusCompleted = "completed"
	// ReportStatusPartial means exactly one of the two remote calls failed.
	ReportStatusPartial = "partial"
	ReportStatusFailed  = "failed"
)

// ReportConverter turns a finished workflow state into a redaction report.
type ReportConverter interface {
	Convert(state models.WorkflowState) (*RedactionReport, error)
}

type RedactionReport struct {
	SessionID   string            `json:"sessionId,omitempty"`
	Status      string            `json:"status"`
	File        FileMetadata      `json:"file"`
	Entities    []EntityRecord    `json:"entities"`
	Summary     RedactionSummary  `json:"summary"`
	Detect      models.CallStatus `json:"detect"`
	Mask        models.CallStatus `json:"mask"`
	ProcessedAt time.Time         `json:"processedAt"`
}

type FileMetadata struct {
	FileName  string `json:"fileName"`
	MediaType string `json:"mediaType"`
	FileSize  int64  `json:"fileSize"`
	Hash      string `json:"hash,omitempty"`
}

type EntityRecord struct {
	Position    int                `json:"position"`
	Type        string             `json:"type"`
	Text        string             `json:"text"`
	Confidence  float64            `json:"confidence"`
	BoundingBox models.BoundingBox `json:"boundingBox"`
}

type RedactionSummary struct {
	EntityCount       int            `json:"entityCount"`
	TypeCounts        map[string]int `json:"typeCounts"`
	Types             []string       `json:"types"`
	AverageConfidence float64        `json:"averageConfidence"`
	Masked            bool           `json:"masked"`
	MaskedCount       int            `json:"maskedCount,omitempty"`
}

// JSONReportConverter builds reports meant to be served or stored as JSON.
type JSONReportConverter struct {
	// IncludeText keeps the detected PII text; otherwise it is starred out.
	IncludeText bool
}

func NewJSONReportConverter(includeText bool) *JSONReportConverter {
	return &JSONReportConverter{IncludeText: includeText}
}

func (c *JSONReportConverter) Convert(state models.WorkflowState) (*RedactionReport, error) {
	if state.Phase != models.PhaseResult {
		return nil, fmt.Errorf("no result to convert in phase %s", state.Phase)
	}

	report := &RedactionReport{
		Status:      reportStatus(state),
		Entities:    make([]EntityRecord, 0, len(state.Entities)),
		Detect:      state.Detect,
		Mask:        state.Mask,
		ProcessedAt: state.CompletedAt,
		Summary: RedactionSummary{
			EntityCount: len(state.Entities),
			TypeCounts:  make(map[string]int),
			Types:       make([]string, 0),
			Masked:      state.MaskedImage != nil,
		},
	}
	if report.ProcessedAt.IsZero() {
		report.ProcessedAt = time.Now()
	}
	if state.File != nil {
		report.File = FileMetadata{
			FileName:  state.File.Name,
			MediaType: state.File.MediaType,
			FileSize:  state.File.Size,
			Hash:      state.File.Hash,
		}
	}
	if state.MaskedImage != nil {
		report.Summary.MaskedCount = state.MaskedImage.MaskedCount
	}

	var totalConfidence float64
	for i, e := range state.Entities {
		text := e.Text
		if !c.IncludeText {
			text = strings.Repeat("*", utf8.RuneCountInString(text))
		}
		report.Entities = append(report.Entities, EntityRecord{
			Position:    i + 1,
			Type:        e.Type,
			Text:        text,
			Confidence:  e.Confidence,
			BoundingBox: e.BoundingBox,
		})

		if report.Summary.TypeCounts[e.Type] == 0 {
			report.Summary.Types = append(report.Summary.Types, e.Type)
		}
		report.Summary.TypeCounts[e.Type]++
		totalConfidence += e.Confidence
	}
	sort.Strings(report.Summary.Types)

	if len(state.Entities) > 0 {
		report.Summary.AverageConfidence = totalConfidence / float64(len(state.Entities))
	}
	return report, nil
}

func reportStatus(state models.WorkflowState) string {
	failed := 0
	if state.Detect.State == models.CallFailed {
		failed++
	}
	if state.Mask.State == models.CallFailed {
		failed++
	}
	switch failed {
	case 0:
		return ReportStatusCompleted
	case 1:
		return ReportStatusPartial
	}
	return ReportStatusFailed
}
