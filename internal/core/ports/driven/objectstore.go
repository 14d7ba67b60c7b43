package driven

import "context"

// ObjectStore gives byte access to objects addressed by bucket and key.
type ObjectStore interface {
	// Get reads an object. Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Put writes an object and returns its URL.
	Put(ctx context.Context, bucket, key string, data []byte) (string, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, bucket, key string) error
}
