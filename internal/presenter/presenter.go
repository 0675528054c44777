// Package presenter projects workflow state into what a display needs to draw.
package presenter

import (
	"math"
	"strings"

	"github.com/feichai0017/pii-guardian/internal/models"
)

// StyleCategory groups entity types that share a badge colour.
type StyleCategory string

const (
	StyleNeutral   StyleCategory = "neutral"
	StyleIdentity  StyleCategory = "identity"
	StyleNational  StyleCategory = "national-id"
	StyleTax       StyleCategory = "tax-id"
	StyleContact   StyleCategory = "contact"
	StyleEmail     StyleCategory = "email"
	StyleDate      StyleCategory = "date"
	StyleLocation  StyleCategory = "location"
	StyleLicense   StyleCategory = "license"
	StyleElectoral StyleCategory = "electoral"
)

// entityStyles maps backend entity types to their category. Types missing
// from the table render with StyleNeutral.
var entityStyles = map[string]StyleCategory{
	"PERSON":          StyleIdentity,
	"AADHAAR_NUMBER":  StyleNational,
	"AADHAAR":         StyleNational,
	"US_SSN":          StyleNational,
	"PAN_NUMBER":      StyleTax,
	"PAN":             StyleTax,
	"PHONE_NUMBER":    StyleContact,
	"INDIAN_PHONE":    StyleContact,
	"EMAIL":           StyleEmail,
	"EMAIL_ADDRESS":   StyleEmail,
	"DATE_OF_BIRTH":   StyleDate,
	"PIN_CODE":        StyleLocation,
	"ADDRESS":         StyleLocation,
	"DRIVING_LICENSE": StyleLicense,
	"VOTER_ID":        StyleElectoral,
}

// categoryClasses are the CSS classes a web display uses per category.
var categoryClasses = map[StyleCategory]string{
	StyleNeutral:   "bg-gray-100 text-gray-800",
	StyleIdentity:  "bg-blue-100 text-blue-800",
	StyleNational:  "bg-red-100 text-red-800",
	StyleTax:       "bg-rose-100 text-rose-800",
	StyleContact:   "bg-green-100 text-green-800",
	StyleEmail:     "bg-purple-100 text-purple-800",
	StyleDate:      "bg-amber-100 text-amber-800",
	StyleLocation:  "bg-yellow-100 text-yellow-800",
	StyleLicense:   "bg-indigo-100 text-indigo-800",
	StyleElectoral: "bg-teal-100 text-teal-800",
}

// Lookup returns the style category of an entity type.
func Lookup(entityType string) StyleCategory {
	if category, ok := entityStyles[strings.ToUpper(strings.TrimSpace(entityType))]; ok {
		return category
	}
	return StyleNeutral
}

// Class returns the CSS classes for a category.
func (s StyleCategory) Class() string {
	if class, ok := categoryClasses[s]; ok {
		return class
	}
	return categoryClasses[StyleNeutral]
}

type EntityBadge struct {
	Type              string        `json:"type"`
	Text              string        `json:"text"`
	ConfidencePercent int           `json:"confidencePercent"`
	Style             StyleCategory `json:"style"`
	StyleClass        string        `json:"styleClass"`
}

// VisibleImage is the image currently shown, as a data URI.
type VisibleImage struct {
	Kind    models.ViewMode `json:"kind"`
	DataURI string          `json:"dataUri"`
}

// View is everything a display renders for one workflow state.
type View struct {
	Phase         models.Phase  `json:"phase"`
	FileName      string        `json:"fileName,omitempty"`
	Title         string        `json:"title"`
	VisibleImage  *VisibleImage `json:"visibleImage,omitempty"`
	ShowingMasked bool          `json:"showingMasked"`
	CanProcess    bool          `json:"canProcess"`
	CanToggle     bool          `json:"canToggle"`
	CanDownload   bool          `json:"canDownload"`
	Entities      []EntityBadge `json:"entities"`
	Notices       []string      `json:"notices,omitempty"`
}

const (
	NoticeProcessing    = "Processing image..."
	NoticeNoEntities    = "No PII detected"
	NoticeDetectFailed  = "PII detection failed"
	NoticeMaskUnchanged = "Masking produced no visible change"
	NoticeMaskFailed    = "Masking failed; no masked image available"
)

// Present is a pure projection of state.
func Present(state models.WorkflowState) View {
	showMasked := state.ViewMode == models.ViewMasked && state.MaskedImage != nil

	view := View{
		Phase:         state.Phase,
		Title:         "Original Image",
		ShowingMasked: showMasked,
		CanProcess:    state.File != nil && (state.Phase == models.PhaseReady || state.Phase == models.PhaseResult),
		CanToggle:     state.MaskedImage != nil,
		CanDownload:   state.MaskedImage != nil,
		Entities:      Badges(state.Entities),
		Notices:       notices(state),
	}
	if state.File != nil {
		view.FileName = state.File.Name
	}

	switch {
	case showMasked:
		view.Title = "Masked Image"
		view.VisibleImage = &VisibleImage{Kind: models.ViewMasked, DataURI: state.MaskedImage.DataURI()}
	case state.OriginalPreview != nil:
		view.VisibleImage = &VisibleImage{Kind: models.ViewOriginal, DataURI: state.OriginalPreview.DataURI()}
	}
	return view
}

// Badges styles entities in their original order.
func Badges(entities []models.DetectedEntity) []EntityBadge {
	badges := make([]EntityBadge, 0, len(entities))
	for _, e := range entities {
		style := Lookup(e.Type)
		badges = append(badges, EntityBadge{
			Type:              e.Type,
			Text:              e.Text,
			ConfidencePercent: ConfidencePercent(e.Confidence),
			Style:             style,
			StyleClass:        style.Class(),
		})
	}
	return badges
}

// ConfidencePercent rounds half away from zero and does not clamp.
func ConfidencePercent(confidence float64) int {
	return int(math.Round(confidence * 100))
}

func notices(state models.WorkflowState) []string {
	switch state.Phase {
	case models.PhaseProcessing:
		return []string{NoticeProcessing}
	case models.PhaseResult:
	default:
		return nil
	}

	var out []string
	switch state.Detect.State {
	case models.CallFailed:
		out = append(out, NoticeDetectFailed)
	case models.CallEmpty:
		out = append(out, NoticeNoEntities)
	}
	switch state.Mask.State {
	case models.CallFailed:
		out = append(out, NoticeMaskFailed)
	case models.CallEmpty:
		out = append(out, NoticeMaskUnchanged)
	}
	return out
}
