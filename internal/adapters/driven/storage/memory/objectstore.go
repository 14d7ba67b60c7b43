package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
)

// Ensure ObjectStore implements the interface.
var _ driven.ObjectStore = (*ObjectStore)(nil)

// ObjectStore keeps objects in memory, keyed by bucket and key.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewObjectStore creates an empty object store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte)}
}

// Get returns a copy of the object.
func (s *ObjectStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[domain.ObjectURL(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("object %s/%s: %w", bucket, key, domain.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Put stores a copy of data and returns the object URL.
func (s *ObjectStore) Put(ctx context.Context, bucket, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if bucket == "" || key == "" {
		return "", domain.ErrInvalidInput
	}
	url := domain.ObjectURL(bucket, key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[url] = append([]byte(nil), data...)
	return url, nil
}

// Delete removes an object.
func (s *ObjectStore) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, domain.ObjectURL(bucket, key))
	return nil
}

// URLs lists stored object URLs in sorted order.
func (s *ObjectStore) URLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	urls := make([]string, 0, len(s.objects))
	for u := range s.objects {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}
