package storage

import "context"

// Storage is a handle on one index's storage location. Handles are shared and
// safe for concurrent use.
type Storage interface {
	// URI returns the location this handle was resolved from.
	URI() string

	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
