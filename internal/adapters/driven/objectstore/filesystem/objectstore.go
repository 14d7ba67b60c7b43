// Package filesystem stores objects as files under a root directory,
// laid out as <root>/<bucket>/<key>. It stands in for a remote object
// store in single-host deployments and backs the drop-folder watcher.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
)

// Ensure ObjectStore implements the interface.
var _ driven.ObjectStore = (*ObjectStore)(nil)

// ObjectStore reads and writes objects below root.
type ObjectStore struct {
	root string
}

// New creates an object store rooted at root, creating the directory.
func New(root string) (*ObjectStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: object store root is required", domain.ErrInvalidInput)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating object store root: %w", err)
	}
	return &ObjectStore{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *ObjectStore) Root() string {
	return s.root
}

// BucketDir returns the directory holding a bucket's objects.
func (s *ObjectStore) BucketDir(bucket string) (string, error) {
	if !validSegment(bucket) {
		return "", fmt.Errorf("%w: bucket %q", domain.ErrInvalidInput, bucket)
	}
	return filepath.Join(s.root, bucket), nil
}

// KeyFor converts a path inside a bucket directory to its object key.
func (s *ObjectStore) KeyFor(bucket, path string) (string, error) {
	dir, err := s.BucketDir(bucket)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s is outside bucket %s", domain.ErrInvalidInput, path, bucket)
	}
	return filepath.ToSlash(rel), nil
}

// Get reads an object.
func (s *ObjectStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %s/%s: %w", bucket, key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: reading %s/%s: %v", domain.ErrObjectStoreUnavailable, bucket, key, err)
	}
	return data, nil
}

// Put writes an object atomically: readers see the old bytes or the new ones.
func (s *ObjectStore) Put(ctx context.Context, bucket, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.path(bucket, key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrObjectStoreUnavailable, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrObjectStoreUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: writing %s/%s: %v", domain.ErrObjectStoreUnavailable, bucket, key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrObjectStoreUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrObjectStoreUnavailable, err)
	}
	return domain.ObjectURL(bucket, key), nil
}

// Delete removes an object. Missing objects are ignored.
func (s *ObjectStore) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: deleting %s/%s: %v", domain.ErrObjectStoreUnavailable, bucket, key, err)
	}
	return nil
}

// path maps bucket and key to a file, refusing keys that escape the bucket.
func (s *ObjectStore) path(bucket, key string) (string, error) {
	dir, err := s.BucketDir(bucket)
	if err != nil {
		return "", err
	}
	rel := filepath.FromSlash(strings.TrimPrefix(key, "/"))
	if key == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: key %q", domain.ErrInvalidInput, key)
	}
	return filepath.Join(dir, rel), nil
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
