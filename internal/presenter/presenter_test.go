package presenter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pii-guardian/internal/models"
)

func resultState() models.WorkflowState {
	s := models.NewWorkflowState()
	s.File = &models.SourceFile{Name: "card.png", MediaType: "image/png"}
	s.OriginalPreview = &models.ImageResource{MediaType: "image/png", Data: []byte("abc")}
	s.MaskedImage = &models.MaskedImage{ContentType: "image/png", Encoded: "Zm9v"}
	s.Entities = []models.DetectedEntity{
		{Type: "EMAIL_ADDRESS", Text: "a@b.com", Confidence: 0.974},
		{Type: "SOMETHING_NEW", Text: "x", Confidence: 0.125},
	}
	s.Phase = models.PhaseResult
	s.Detect = models.CallStatus{State: models.CallSucceeded}
	s.Mask = models.CallStatus{State: models.CallSucceeded}
	return s
}

func TestLookup(t *testing.T) {
	tests := []struct {
		entityType string
		want       StyleCategory
		class      string
	}{
		{"PERSON", StyleIdentity, "bg-blue-100 text-blue-800"},
		{"AADHAAR_NUMBER", StyleNational, "bg-red-100 text-red-800"},
		{"US_SSN", StyleNational, "bg-red-100 text-red-800"},
		{"PAN", StyleTax, "bg-rose-100 text-rose-800"},
		{"INDIAN_PHONE", StyleContact, "bg-green-100 text-green-800"},
		{"email_address", StyleEmail, "bg-purple-100 text-purple-800"},
		{"DATE_OF_BIRTH", StyleDate, "bg-amber-100 text-amber-800"},
		{"ADDRESS", StyleLocation, "bg-yellow-100 text-yellow-800"},
		{"DRIVING_LICENSE", StyleLicense, "bg-indigo-100 text-indigo-800"},
		{"VOTER_ID", StyleElectoral, "bg-teal-100 text-teal-800"},
		{"CREDIT_CARD", StyleNeutral, "bg-gray-100 text-gray-800"},
		{"", StyleNeutral, "bg-gray-100 text-gray-800"},
	}
	for _, tt := range tests {
		t.Run(tt.entityType, func(t *testing.T) {
			got := Lookup(tt.entityType)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.class, got.Class())
		})
	}
	assert.Equal(t, "bg-gray-100 text-gray-800", StyleCategory("bogus").Class())
}

func TestConfidencePercent(t *testing.T) {
	assert.Equal(t, 97, ConfidencePercent(0.97))
	assert.Equal(t, 13, ConfidencePercent(0.125))
	assert.Equal(t, 0, ConfidencePercent(0))
	assert.Equal(t, 100, ConfidencePercent(1))
	assert.Equal(t, 150, ConfidencePercent(1.5))
}

func TestPresentOriginalView(t *testing.T) {
	view := Present(resultState())

	require.NotNil(t, view.VisibleImage)
	assert.Equal(t, models.ViewOriginal, view.VisibleImage.Kind)
	assert.Equal(t, "data:image/png;base64,YWJj", view.VisibleImage.DataURI)
	assert.Equal(t, "Original Image", view.Title)
	assert.False(t, view.ShowingMasked)
	assert.True(t, view.CanToggle)
	assert.True(t, view.CanDownload)
	assert.True(t, view.CanProcess)
	assert.Equal(t, "card.png", view.FileName)
	assert.Empty(t, view.Notices)

	require.Len(t, view.Entities, 2)
	assert.Equal(t, EntityBadge{
		Type:              "EMAIL_ADDRESS",
		Text:              "a@b.com",
		ConfidencePercent: 97,
		Style:             StyleEmail,
		StyleClass:        "bg-purple-100 text-purple-800",
	}, view.Entities[0])
	assert.Equal(t, StyleNeutral, view.Entities[1].Style)
}

func TestPresentMaskedView(t *testing.T) {
	s := resultState()
	s.ViewMode = models.ViewMasked

	view := Present(s)
	require.NotNil(t, view.VisibleImage)
	assert.Equal(t, models.ViewMasked, view.VisibleImage.Kind)
	assert.Equal(t, "data:image/png;base64,Zm9v", view.VisibleImage.DataURI)
	assert.Equal(t, "Masked Image", view.Title)
	assert.True(t, view.ShowingMasked)
}

func TestPresentFallsBackToOriginalWithoutMask(t *testing.T) {
	s := resultState()
	s.ViewMode = models.ViewMasked
	s.MaskedImage = nil

	view := Present(s)
	require.NotNil(t, view.VisibleImage)
	assert.Equal(t, models.ViewOriginal, view.VisibleImage.Kind)
	assert.False(t, view.CanToggle)
	assert.False(t, view.CanDownload)
}

func TestPresentIdle(t *testing.T) {
	view := Present(models.NewWorkflowState())
	assert.Nil(t, view.VisibleImage)
	assert.False(t, view.CanProcess)
	assert.NotNil(t, view.Entities)
	assert.Empty(t, view.Entities)
	assert.Empty(t, view.Notices)
}

func TestPresentNotices(t *testing.T) {
	tests := []struct {
		name   string
		detect models.CallState
		mask   models.CallState
		want   []string
	}{
		{"both failed", models.CallFailed, models.CallFailed, []string{NoticeDetectFailed, NoticeMaskFailed}},
		{"both empty", models.CallEmpty, models.CallEmpty, []string{NoticeNoEntities, NoticeMaskUnchanged}},
		{"mask failed only", models.CallSucceeded, models.CallFailed, []string{NoticeMaskFailed}},
		{"all good", models.CallSucceeded, models.CallSucceeded, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := resultState()
			s.Detect.State = tt.detect
			s.Mask.State = tt.mask
			assert.Equal(t, tt.want, Present(s).Notices)
		})
	}

	s := resultState()
	s.Phase = models.PhaseProcessing
	view := Present(s)
	assert.Equal(t, []string{NoticeProcessing}, view.Notices)
	assert.False(t, view.CanProcess)
}
