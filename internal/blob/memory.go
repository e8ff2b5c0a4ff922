package blob

import (
	"context"
	"sync"
)

var _ Store = (*memoryStore)(nil)

// memoryStore is an in-process Store used in tests and local development.
type memoryStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
}

// NewMemory creates an empty in-memory store.
func NewMemory() Store {
	return &memoryStore{objects: make(map[string]*Object)}
}

// Put implements Store.
func (s *memoryStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = &Object{Data: buf, ContentType: contentType}
	return nil
}

// Get implements Store.
func (s *memoryStore) Get(_ context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return obj, nil
}

// Delete implements Store.
func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}
