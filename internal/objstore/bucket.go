// Package objstore stores uploaded files in named buckets on S3-compatible
// storage or the local filesystem.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/Surfinbird-star/aas2/internal/config"
)

// ErrNotFound is returned by Open when the object does not exist.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that are empty or escape the bucket.
var ErrInvalidKey = errors.New("invalid object key")

// Bucket is a flat namespace of objects addressed by slash-separated keys.
type Bucket interface {
	Name() string
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// New creates a bucket with the configured driver.
func New(ctx context.Context, cfg config.StorageConfig, name string) (Bucket, error) {
	switch cfg.Driver {
	case config.StorageLocal:
		return NewDiskBucket(cfg.LocalRoot, name)
	case config.StorageS3:
		return NewS3Bucket(ctx, S3Options{
			Bucket:    name,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Timeout:   cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("objstore: unknown driver %q", cfg.Driver)
	}
}

// CleanKey validates a key and returns its canonical form.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

// withTimeout bounds ctx when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// cancelOnClose releases a context when the wrapped body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
