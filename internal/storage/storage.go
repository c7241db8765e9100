package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	cfg "github.com/templui/authapi/internal/config"
)

// ErrInvalidName is returned for names that would escape the storage root.
var ErrInvalidName = errors.New("invalid file name")

// Storage defines the interface for avatar file storage
type Storage interface {
	// Save stores the content under name, replacing any existing file.
	// contentType may be empty when unknown.
	Save(ctx context.Context, name, contentType string, r io.Reader) error

	// Delete removes the file; deleting a missing file is not an error
	Delete(ctx context.Context, name string) error

	// URL returns where clients can fetch the file
	URL(name string) string
}

// New picks the storage backend configured by STORAGE_DRIVER.
func New(c *cfg.Config) (Storage, error) {
	switch c.StorageDriver {
	case "", "local":
		slog.Info("initializing local storage", "dir", c.UploadDir)
		return NewLocalStorage(c.UploadDir, LocalURLPrefix)
	case "s3":
		slog.Info("initializing S3 storage",
			"bucket", c.S3Bucket,
			"region", c.S3Region,
			"endpoint", c.S3Endpoint,
		)
		return NewS3Storage(context.Background(), S3Config{
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Endpoint:  c.S3Endpoint,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
}
