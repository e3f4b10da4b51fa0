package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskBucket stores objects as files under root/name.
type DiskBucket struct {
	name string
	dir  string
}

// NewDiskBucket creates the bucket directory if needed.
func NewDiskBucket(root, name string) (*DiskBucket, error) {
	if name == "" {
		return nil, errors.New("objstore/disk: bucket name is required")
	}
	dir, err := filepath.Abs(filepath.Join(root, name))
	if err != nil {
		return nil, fmt.Errorf("objstore/disk: resolve %s: %w", root, err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("objstore/disk: mkdir %s: %w", dir, err)
	}
	return &DiskBucket{name: name, dir: dir}, nil
}

func (b *DiskBucket) Name() string { return b.name }

func (b *DiskBucket) abs(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.dir, filepath.FromSlash(cleaned)), nil
}

// Put writes the object atomically through a temp file and rename.
func (b *DiskBucket) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) error {
	full, err := b.abs(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("objstore/disk: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("objstore/disk: create %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("objstore/disk: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("objstore/disk: close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("objstore/disk: rename %s: %w", key, err)
	}
	return nil
}

func (b *DiskBucket) Open(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := b.abs(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", b.name, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("objstore/disk: open %s: %w", key, err)
	}
	return f, nil
}

func (b *DiskBucket) Delete(_ context.Context, key string) error {
	full, err := b.abs(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("objstore/disk: delete %s: %w", key, err)
	}
	return nil
}
