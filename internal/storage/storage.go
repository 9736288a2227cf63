package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/sketchcode/backend/internal/config"
)

// ObjectStore is the narrow contract the handlers and services depend
// on: store a blob, get back a public URL; delete a blob by object name.
type ObjectStore interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, objectName string) error
	EnsureBucket(ctx context.Context) error
}

// New builds the configured backend.
func New(cfg *config.Config) (ObjectStore, error) {
	switch cfg.Storage.Backend {
	case "minio":
		return NewMinIOClient(cfg.MinIO)
	case "s3":
		return NewS3Client(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
