// Package blob provides the byte store that holds cached logo images.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an object does not exist in the store.
var ErrNotFound = errors.New("blob: object not found")

// Object is a stored blob with its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is a content-addressable byte store keyed by string.
type Store interface {
	// Put writes data under key with the given content type, overwriting any
	// previous object.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns the object stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Object, error)

	// Delete removes the object under key. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, key string) error
}
