// Package storage keeps uploaded blobs such as avatars. Paths are opaque,
// slash separated keys relative to the store root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-accounts/config"
)

const (
	DriverLocal = "local"
	DriverS3    = "s3"
	DriverGCS   = "gcs"
)

var ErrInvalidPath = errors.New("invalid blob path")

type BlobStore interface {
	Store(ctx context.Context, dir string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	URL(path string) string
}

func New(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Driver {
	case "", DriverLocal:
		return NewLocal(cfg.LocalDir, cfg.PublicURL)
	case DriverS3:
		return NewS3(ctx, cfg)
	case DriverGCS:
		return NewGCS(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// objectKey names a new blob inside dir.
func objectKey(dir, contentType string) string {
	return path.Join(dir, uuid.NewString()+extensions[contentType])
}

// cleanKey rejects absolute keys and keys escaping the store root.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + key)[1:]
	if key == "" || cleaned == "" || cleaned != strings.TrimPrefix(key, "./") || strings.HasPrefix(key, "/") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}
