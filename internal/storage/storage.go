package storage

import (
	"context"
	"errors"
)

// Storage is a string key-value store used to persist cart snapshots.
// Consumers define this interface, not the backend implementations.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

var ErrNotFound = errors.New("key not found")
