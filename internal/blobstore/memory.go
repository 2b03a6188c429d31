package blobstore

import (
	"context"
	"sync"

	"github.com/buralog/etl-healthcare/internal/adapter"
)

// MemoryStore is an in-memory blob store for tests and single-process runs.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]Blob)}
}

// Put stages the payload under its content-addressed key.
func (s *MemoryStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	key := blobKeyPrefix + adapter.ContentHash(data)

	copied := make([]byte, len(data))
	copy(copied, data)

	s.mu.Lock()
	s.blobs[key] = Blob{Data: copied, ContentType: contentType}
	s.mu.Unlock()

	return key, nil
}

// Get retrieves a staged blob by key.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Blob, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &blob, nil
}
