package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/vibast-solutions/ms-go-accounts/config"
	"google.golang.org/api/option"
)

// GCS stores blobs in a Google Cloud Storage bucket. Without a credentials
// file the client uses application default credentials.
type GCS struct {
	client *storage.Client
	bucket string
}

func NewGCS(ctx context.Context, cfg config.StorageConfig) (*GCS, error) {
	if cfg.GCSBucket == "" {
		return nil, errors.New("GCS_BUCKET is required for the gcs storage driver")
	}

	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCS{client: client, bucket: cfg.GCSBucket}, nil
}

func (g *GCS) Store(ctx context.Context, dir string, data []byte, contentType string) (string, error) {
	key := objectKey(dir, contentType)
	wc := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ChunkSize = 0 // small files, single request
	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", err
	}
	return key, nil
}

func (g *GCS) Delete(ctx context.Context, path string) error {
	key, err := cleanKey(path)
	if err != nil {
		return err
	}
	err = g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (g *GCS) Exists(ctx context.Context, path string) (bool, error) {
	key, err := cleanKey(path)
	if err != nil {
		return false, err
	}
	_, err = g.client.Bucket(g.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (g *GCS) URL(path string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, strings.TrimLeft(path, "/"))
}

func (g *GCS) Close() error {
	return g.client.Close()
}
