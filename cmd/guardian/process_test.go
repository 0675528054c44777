package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pii-guardian/pkg/converters"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func backend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/detect", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"detected_pii":[{"entity_type":"PAN_NUMBER","text":"ABCDE1234F","confidence":0.97,"coordinates":[1,2,3,4]}]}`)
	})
	mux.HandleFunc("/mask", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "blur", r.URL.Query().Get("style"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"image_base64":"Zm9v"}`)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	for _, key := range []string{"PII_API_BASE_URL", "PII_MASK_STYLE", "DOWNLOAD_SINK", "DOWNLOAD_DIR"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "guardian.yaml")
	content := fmt.Sprintf("api:\n  baseUrl: %s\ndownload:\n  sink: local\n  dir: %s\n", baseURL, dir)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pan.png")
	require.NoError(t, os.WriteFile(path, pngBytes, 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(func() {
		cfgFile = ""
		verbose = false
	})
	cmd := NewRootCmd()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestProcessSavesMaskedImage(t *testing.T) {
	srv := backend(t)
	cfg := writeConfig(t, srv.URL)
	out := t.TempDir()

	stdout, stderr, err := execute(t, "--config", cfg, "process", writeImage(t), "--style", "blur", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "pan.png: 1 entities")
	assert.Contains(t, stdout, "PAN_NUMBER")
	assert.Contains(t, stdout, "97%")
	assert.NotContains(t, stdout, "ABCDE1234F")
	assert.Contains(t, stderr, "masked_image.png")

	data, err := os.ReadFile(filepath.Join(out, "masked_image.png"))
	require.NoError(t, err)
	assert.Equal(t, "foo", string(data))
}

func TestProcessPrintsReport(t *testing.T) {
	srv := backend(t)
	cfg := writeConfig(t, srv.URL)

	stdout, _, err := execute(t, "--config", cfg, "process", writeImage(t), "-s", "blur", "--report", "--show-text")
	require.NoError(t, err)

	var report converters.RedactionReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, converters.ReportStatusCompleted, report.Status)
	require.Len(t, report.Entities, 1)
	assert.Equal(t, "ABCDE1234F", report.Entities[0].Text)
	assert.Equal(t, 3.0, report.Entities[0].BoundingBox.X1)
}

func TestProcessRejectsNonImage(t *testing.T) {
	srv := backend(t)
	cfg := writeConfig(t, srv.URL)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	_, _, err := execute(t, "--config", cfg, "process", path)
	assert.Error(t, err)
}

func TestHealthCommand(t *testing.T) {
	srv := backend(t)
	cfg := writeConfig(t, srv.URL)

	stdout, _, err := execute(t, "--config", cfg, "health")
	require.NoError(t, err)
	assert.Contains(t, stdout, "is healthy")
}

func TestReadSourceFileDetectsType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan")
	require.NoError(t, os.WriteFile(path, pngBytes, 0644))

	file, err := readSourceFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", file.MediaType)
	assert.Equal(t, "scan", file.Name)
}
