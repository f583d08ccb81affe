package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemoryStore is a trivial in-process FileStore implementation useful for
// tests, examples and single-process prototypes. It keeps all objects in a
// map guarded by an RWMutex. Data is copied on upload / download to avoid
// accidental external mutation of internal buffers.
//
// This implementation is intentionally minimal; it does not enforce retention
// limits, size quotas, or eviction. For production, prefer the Supabase or S3
// backed stores which can scale and survive process restarts.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewInMemoryStore returns an empty in-memory file store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{objects: make(map[string][]byte)}
}

// Download returns a copy of the stored object bytes or ErrNotFound.
func (s *InMemoryStore) Download(_ context.Context, objectPath string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[objectPath]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Upload stores (or overwrites) the object bytes at the given path.
// The input slice is copied before storage.
func (s *InMemoryStore) Upload(_ context.Context, objectPath string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[objectPath] = cp
	return nil
}

// List returns sorted object paths beginning with prefix.
func (s *InMemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.objects))
	for p := range s.objects {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
