// Package normalizer maps backend responses onto the workflow display model.
package normalizer

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
	"strings"

	"github.com/feichai0017/pii-guardian/internal/models"
	"github.com/feichai0017/pii-guardian/internal/remote"
)

// DefaultMaskContentType is assumed when the backend does not name one.
const DefaultMaskContentType = "image/png"

// NormalizeEntities renames the backend fields onto DetectedEntity. Order is
// preserved and nothing is filtered; confidence passes through unchanged.
func NormalizeEntities(raw []remote.RawEntity) []models.DetectedEntity {
	entities := make([]models.DetectedEntity, 0, len(raw))
	for _, r := range raw {
		entities = append(entities, models.DetectedEntity{
			Type:        r.EntityType,
			Text:        r.Text,
			Confidence:  r.Confidence,
			BoundingBox: ParseCoordinates(r.Coordinates),
		})
	}
	return entities
}

// NormalizeMask returns nil when the response carries no image payload.
func NormalizeMask(resp *remote.MaskResponse) *models.MaskedImage {
	if resp == nil {
		return nil
	}

	encoded := strings.TrimSpace(resp.ImageBase64)
	if encoded == "" && len(resp.Raw) > 0 {
		encoded = base64.StdEncoding.EncodeToString(resp.Raw)
	}
	if encoded == "" {
		return nil
	}

	return &models.MaskedImage{
		ContentType: contentType(resp.ContentType),
		Encoded:     encoded,
		MaskedCount: resp.MaskedCount,
	}
}

// contentType drops parameters and falls back to PNG for non-image types.
func contentType(ct string) string {
	ct = strings.TrimSpace(strings.ToLower(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if !strings.HasPrefix(ct, "image/") {
		return DefaultMaskContentType
	}
	return ct
}

// ParseCoordinates accepts a flat [x0,y0,x1,y1] list or a polygon of [x,y]
// points, reducing the polygon to its enclosing box. Anything else yields the
// zero box.
func ParseCoordinates(raw json.RawMessage) models.BoundingBox {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return models.BoundingBox{}
	}

	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		if len(flat) != 4 {
			return models.BoundingBox{}
		}
		return models.BoundingBox{X0: flat[0], Y0: flat[1], X1: flat[2], Y1: flat[3]}
	}

	var points [][]float64
	if err := json.Unmarshal(raw, &points); err != nil || len(points) == 0 {
		return models.BoundingBox{}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		if len(p) < 2 {
			return models.BoundingBox{}
		}
		minX = math.Min(minX, p[0])
		minY = math.Min(minY, p[1])
		maxX = math.Max(maxX, p[0])
		maxY = math.Max(maxY, p[1])
	}
	return models.BoundingBox{X0: minX, Y0: minY, X1: maxX, Y1: maxY}
}
