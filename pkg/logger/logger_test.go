package logger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "logs", "app.log")
	errOut := filepath.Join(dir, "logs", "error.log")

	log, err := NewLogger(
		WithLevel("debug"),
		WithOutputPaths([]string{out}),
		WithErrorPaths([]string{errOut}),
	)
	require.NoError(t, err)

	log.Info("session created", String("sessionId", "abc"))
	log.Error("detect failed", Int("status", 500))
	_ = log.Sync()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "session created", entry["message"])
	assert.Equal(t, "abc", entry["sessionId"])
	assert.Equal(t, "info", entry["level"])

	errData, err := os.ReadFile(errOut)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(string(errData)), "\n")+1)
	assert.Contains(t, string(errData), "detect failed")
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(WithLevel("loud"), WithOutputPaths([]string{"stdout"}))
	require.Error(t, err)
}

func TestFromContextAddsSessionID(t *testing.T) {
	rec := NewTestLogger()
	ctx := ContextWithSessionID(context.Background(), "s-1")

	FromContext(ctx, rec).Info("hello")
	FromContext(context.Background(), rec).Info("plain")

	entries := rec.GetEntries()
	require.Len(t, entries, 2)
	require.Len(t, entries[0].Fields, 1)
	assert.Equal(t, "sessionId", entries[0].Fields[0].Key)
	assert.Equal(t, "s-1", entries[0].Fields[0].String)
	assert.Empty(t, entries[1].Fields)
}

func TestTestLoggerChildrenShareBuffer(t *testing.T) {
	rec := NewTestLogger()
	child := rec.Named("workflow").With(String("k", "v"))
	child.Warn("stale")

	assert.True(t, rec.HasMessage("WARN", "stale"))
	entries := rec.GetEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "workflow", entries[0].Name)

	rec.Clear()
	assert.Empty(t, rec.GetEntries())
}
