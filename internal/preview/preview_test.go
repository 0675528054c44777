package preview

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pii-guardian/internal/models"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	buf := &bytes.Buffer{}
	require.NoError(t, imaging.Encode(buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestPassthrough(t *testing.T) {
	file := &models.SourceFile{MediaType: "image/png", Data: []byte("abc")}

	res, err := Passthrough{}.Render(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.MediaType)
	assert.Equal(t, []byte("abc"), res.Data)
	assert.Equal(t, "data:image/png;base64,YWJj", res.DataURI())

	_, err = Passthrough{}.Render(context.Background(), nil)
	assert.Error(t, err)
}

func TestDownscalerShrinksLargeImages(t *testing.T) {
	file := &models.SourceFile{MediaType: "image/png", Data: encodePNG(t, 400, 100)}

	res, err := NewDownscaler(100).Render(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.MediaType)

	img, _, err := image.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 25, img.Bounds().Dy())
}

func TestDownscalerTallImage(t *testing.T) {
	file := &models.SourceFile{MediaType: "image/png", Data: encodePNG(t, 50, 200)}

	res, err := NewDownscaler(100).Render(context.Background(), file)
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, 25, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
}

func TestDownscalerKeepsSmallAndUndecodable(t *testing.T) {
	small := &models.SourceFile{MediaType: "image/png", Data: encodePNG(t, 20, 20)}
	res, err := NewDownscaler(100).Render(context.Background(), small)
	require.NoError(t, err)
	assert.Equal(t, small.Data, res.Data)

	junk := &models.SourceFile{MediaType: "image/png", Data: []byte("not an image")}
	res, err = NewDownscaler(100).Render(context.Background(), junk)
	require.NoError(t, err)
	assert.Equal(t, junk.Data, res.Data)
}

func TestDownscalerDisabled(t *testing.T) {
	file := &models.SourceFile{MediaType: "image/png", Data: encodePNG(t, 400, 100)}
	res, err := NewDownscaler(0).Render(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, file.Data, res.Data)
}
