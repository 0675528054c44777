package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pii-guardian/config"
	"github.com/feichai0017/pii-guardian/pkg/storage/local"
)

func TestNewStorageLocal(t *testing.T) {
	cfg := &config.GuardianConfig{}
	cfg.Download.Dir = t.TempDir()

	store, err := NewStorage(context.Background(), StorageTypeLocal, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &local.LocalStorage{}, store)

	_, err = NewStorage(context.Background(), StorageType("ftp"), cfg, nil)
	assert.Error(t, err)
}

func TestStorageSinkWritesUniqueKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := local.NewLocalStorage(dir, nil)
	require.NoError(t, err)
	sink := NewStorageSink(store, "downloads")
	ctx := context.Background()

	first, err := sink.Save(ctx, "masked_image.png", "image/png", []byte("one"))
	require.NoError(t, err)
	second, err := sink.Save(ctx, "masked_image.png", "image/png", []byte("two"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(first, "downloads/"))
	assert.True(t, strings.HasSuffix(first, "/masked_image.png"))

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(first)))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	r, err := store.Get(ctx, second)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
}

func TestStorageSinkIgnoresDirectoriesInName(t *testing.T) {
	store, err := local.NewLocalStorage(t.TempDir(), nil)
	require.NoError(t, err)

	key, err := NewStorageSink(store, "").Save(context.Background(), "../../etc/masked.png", "image/png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "masked.png", filepath.Base(key))
	assert.NotContains(t, key, "..")
}

func TestLocalCleanupBefore(t *testing.T) {
	dir := t.TempDir()
	store, err := local.NewLocalStorage(dir, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Store(ctx, strings.NewReader("old"), "a/old.png")
	require.NoError(t, err)
	_, err = store.Store(ctx, strings.NewReader("new"), "a/new.png")
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a", "old.png"), past, past))

	require.NoError(t, store.CleanupBefore(ctx, time.Now().Add(-time.Hour)))

	_, err = os.Stat(filepath.Join(dir, "a", "old.png"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "a", "new.png"))
	assert.NoError(t, err)
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	store, err := local.NewLocalStorage(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.Store(context.Background(), strings.NewReader("x"), "../outside.png")
	assert.Error(t, err)
	_, err = store.Get(context.Background(), "")
	assert.Error(t, err)
}

func TestLocalDelete(t *testing.T) {
	store, err := local.NewLocalStorage(t.TempDir(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Store(ctx, strings.NewReader("x"), "k.png")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "k.png"))
	assert.Error(t, store.Delete(ctx, "k.png"))
}
