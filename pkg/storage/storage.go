package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/feichai0017/pii-guardian/config"
	"github.com/feichai0017/pii-guardian/pkg/logger"
	"github.com/feichai0017/pii-guardian/pkg/storage/local"
	"github.com/feichai0017/pii-guardian/pkg/storage/minio"
	"github.com/feichai0017/pii-guardian/pkg/storage/s3"
)

type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// Storage holds uploaded images, masked images and reports by key.
type Storage interface {
	// Store writes reader under key and returns the key it was stored as.
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// CleanupBefore removes objects last modified before threshold.
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// NewStorage builds the backend selected by storageType from cfg.
func NewStorage(ctx context.Context, storageType StorageType, cfg *config.GuardianConfig, log logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeLocal:
		return local.NewLocalStorage(cfg.Download.Dir, log)
	case StorageTypeS3:
		return s3.NewS3Storage(ctx, cfg.S3, log)
	case StorageTypeMinio:
		return minio.NewMinioStorage(ctx, cfg.Minio, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
