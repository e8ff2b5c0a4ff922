// Package kv provides the string key-value store that holds all
// cross-invocation scheduler state and per-ticker metadata.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: key not found")

// Store is a minimal string key-value store with list-by-prefix.
// Implementations provide last-writer-wins semantics; callers must not
// assume read-modify-write atomicity across keys.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put writes the value for key, overwriting any previous value.
	Put(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all keys starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
