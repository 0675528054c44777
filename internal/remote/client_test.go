package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pii-guardian/internal/models"
)

func testFile() *models.SourceFile {
	return &models.SourceFile{
		Name:      "id-card.png",
		MediaType: "image/png",
		Data:      []byte("\x89PNG fake"),
		Size:      9,
	}
}

// readUpload asserts the request carries the file as multipart field "file".
func readUpload(t *testing.T, r *http.Request) []byte {
	t.Helper()
	require.NoError(t, r.ParseMultipartForm(1<<20))
	f, header, err := r.FormFile("file")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "id-card.png", header.Filename)
	assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}

func TestDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/detect", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("min_confidence"))
		assert.Equal(t, []byte("\x89PNG fake"), readUpload(t, r))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"detected_pii":[
			{"entity_type":"EMAIL_ADDRESS","text":"a@b.com","confidence":0.97},
			{"entity_type":"PERSON","text":"Asha Rao","confidence":0.81,"coordinates":[[1,2],[10,2],[10,8],[1,8]]}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL + "/"}, nil)
	resp, err := c.Detect(context.Background(), testFile())
	require.NoError(t, err)
	require.Len(t, resp.DetectedPII, 2)
	assert.Equal(t, "EMAIL_ADDRESS", resp.DetectedPII[0].EntityType)
	assert.Equal(t, "a@b.com", resp.DetectedPII[0].Text)
	assert.InDelta(t, 0.97, resp.DetectedPII[0].Confidence, 1e-9)
	assert.Empty(t, resp.DetectedPII[0].Coordinates)
	assert.NotEmpty(t, resp.DetectedPII[1].Coordinates)
}

func TestDetectSendsMinConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0.45", r.URL.Query().Get("min_confidence"))
		_, _ = io.WriteString(w, `{"detected_pii":[]}`)
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL, MinConfidence: 0.45}, nil)
	resp, err := c.Detect(context.Background(), testFile())
	require.NoError(t, err)
	assert.Empty(t, resp.DetectedPII)
}

func TestDetectErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Invalid image"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL}, nil)
	resp, err := c.Detect(context.Background(), testFile())
	require.Error(t, err)
	assert.Nil(t, resp)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, OpDetect, te.Op)
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Contains(t, te.Body, "Invalid image")
	assert.Equal(t, 500, StatusCode(err))
}

func TestDetectMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	}))
	defer srv.Close()

	_, err := NewClient(&Config{BaseURL: srv.URL}, nil).Detect(context.Background(), testFile())
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusOK, te.StatusCode)
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := NewClient(&Config{BaseURL: base}, nil).Mask(context.Background(), testFile(), DefaultMaskOptions())
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, OpMask, te.Op)
	assert.Zero(t, te.StatusCode)
	assert.Error(t, te.Unwrap())
}

func TestMaskJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mask", r.URL.Path)
		assert.Equal(t, "blur", r.URL.Query().Get("style"))
		assert.Equal(t, "true", r.URL.Query().Get("as_json"))
		readUpload(t, r)
		_, _ = io.WriteString(w, `{"content_type":"image/png","image_base64":"Zm9v","masked_count":2,
			"detections":[{"box":[[0,0],[4,0],[4,4],[0,4]],"text":"x","score":0.9,"types":["PERSON"]}]}`)
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL}, nil)
	resp, err := c.Mask(context.Background(), testFile(), MaskOptions{Style: "blur", ReturnAsJSON: true})
	require.NoError(t, err)
	assert.Equal(t, "Zm9v", resp.ImageBase64)
	assert.Equal(t, "image/png", resp.ContentType)
	assert.Equal(t, 2, resp.MaskedCount)
	require.Len(t, resp.Detections, 1)
	assert.Equal(t, []string{"PERSON"}, resp.Detections[0].Types)
	assert.Nil(t, resp.Raw)
}

func TestMaskRawImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "box", r.URL.Query().Get("style"))
		assert.Equal(t, "false", r.URL.Query().Get("as_json"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL}, nil)
	resp, err := c.Mask(context.Background(), testFile(), MaskOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), resp.Raw)
	assert.Equal(t, "image/png", resp.ContentType)
	assert.Empty(t, resp.ImageBase64)
}

func TestEachCallIssuesOneRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL}, nil)
	_, err := c.Detect(context.Background(), testFile())
	require.Error(t, err)
	_, err = c.Mask(context.Background(), testFile(), DefaultMaskOptions())
	require.Error(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(&Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := c.Detect(context.Background(), testFile())
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Zero(t, te.StatusCode)
}

func TestHealth(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL}, nil)
	assert.NoError(t, c.Health(context.Background()))

	healthy = false
	err := c.Health(context.Background())
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
}
