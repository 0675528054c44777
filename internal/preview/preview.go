// Package preview renders the local preview of a selected image.
package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/feichai0017/pii-guardian/internal/models"
)

// Renderer produces the original-image preview for a selected file.
type Renderer interface {
	Render(ctx context.Context, file *models.SourceFile) (*models.ImageResource, error)
}

// Passthrough shows the uploaded bytes as they are.
type Passthrough struct{}

func (Passthrough) Render(ctx context.Context, file *models.SourceFile) (*models.ImageResource, error) {
	if file == nil {
		return nil, fmt.Errorf("no file to preview")
	}
	return &models.ImageResource{MediaType: file.MediaType, Data: file.Data}, nil
}

// Downscaler shrinks images larger than MaxDimension on their longer side.
// Images it cannot decode fall back to the raw bytes.
type Downscaler struct {
	MaxDimension int
}

func NewDownscaler(maxDimension int) *Downscaler {
	return &Downscaler{MaxDimension: maxDimension}
}

func (d *Downscaler) Render(ctx context.Context, file *models.SourceFile) (*models.ImageResource, error) {
	raw, err := Passthrough{}.Render(ctx, file)
	if err != nil || d.MaxDimension <= 0 {
		return raw, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(file.Data), imaging.AutoOrientation(true))
	if err != nil {
		return raw, nil
	}
	bounds := img.Bounds()
	if bounds.Dx() <= d.MaxDimension && bounds.Dy() <= d.MaxDimension {
		return raw, nil
	}

	var scaled image.Image
	if bounds.Dx() >= bounds.Dy() {
		scaled = imaging.Resize(img, d.MaxDimension, 0, imaging.Lanczos)
	} else {
		scaled = imaging.Resize(img, 0, d.MaxDimension, imaging.Lanczos)
	}

	format, mediaType := imaging.PNG, "image/png"
	if file.MediaType == "image/jpeg" {
		format, mediaType = imaging.JPEG, "image/jpeg"
	}

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, scaled, format, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return &models.ImageResource{MediaType: mediaType, Data: buf.Bytes()}, nil
}
