package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PII_API_BASE_URL", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DefaultRequestTimeout, cfg.API.RequestTimeout)
	assert.Equal(t, "box", cfg.API.MaskStyle)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.Workflow.MaxFileSize)
	assert.Equal(t, DefaultCORSOrigins, cfg.Server.CORSOrigins)
	assert.Equal(t, "local", cfg.Download.Sink)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PII_API_BASE_URL", "http://pii.internal:9000/")
	t.Setenv("PII_API_TIMEOUT", "15s")
	t.Setenv("PII_MASK_STYLE", "blur")
	t.Setenv("PII_MIN_CONFIDENCE", "0.5")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://pii.internal:9000", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.RequestTimeout)
	assert.Equal(t, "blur", cfg.API.MaskStyle)
	assert.InDelta(t, 0.5, cfg.API.MinConfidence, 1e-9)
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Minio.UseSSL)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardian.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  baseUrl: http://from-file:8000
  requestTimeout: 5s
workflow:
  previewMaxDimension: 800
download:
  sink: minio
minio:
  bucketName: masked
`), 0644))
	t.Setenv("PII_API_TIMEOUT", "7s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-file:8000", cfg.API.BaseURL)
	assert.Equal(t, 7*time.Second, cfg.API.RequestTimeout)
	assert.Equal(t, 800, cfg.Workflow.PreviewMaxDimension)
	assert.Equal(t, "minio", cfg.Download.Sink)
	assert.Equal(t, "masked", cfg.Minio.BucketName)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad timeout", "PII_API_TIMEOUT", "soon"},
		{"bad style", "PII_MASK_STYLE", "paint"},
		{"bad sink", "DOWNLOAD_SINK", "ftp"},
		{"confidence out of range", "PII_MIN_CONFIDENCE", "1.5"},
		{"bad redis db", "REDIS_DB", "zero"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
