package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"
)

// StorageSink saves downloaded masked images into a Storage. Each save gets
// its own key so repeated downloads never overwrite each other.
type StorageSink struct {
	storage Storage
	prefix  string
}

func NewStorageSink(storage Storage, prefix string) *StorageSink {
	return &StorageSink{storage: storage, prefix: prefix}
}

func (s *StorageSink) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := path.Join(s.prefix, uuid.New().String(), path.Base(name))
	stored, err := s.storage.Store(ctx, bytes.NewReader(data), key)
	if err != nil {
		return "", fmt.Errorf("failed to save %s: %w", contentType, err)
	}
	return stored, nil
}
