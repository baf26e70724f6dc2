package kvstore

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used in unit tests and local
// development. A single mutex serializes all writes, which satisfies the
// per-key atomicity the conditional verbs require.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		namespaces: make(map[string]map[string][]byte),
	}
}

// Get returns the value at key, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, namespace string, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.namespaces[namespace][string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(value), nil
}

// Create installs produce()'s result if the key is absent.
func (s *MemoryStore) Create(_ context.Context, namespace string, key []byte, produce ProduceFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string][]byte)
		s.namespaces[namespace] = ns
	}

	if _, exists := ns[string(key)]; exists {
		return ErrExists
	}

	value, err := produce()
	if err != nil {
		return err
	}

	ns[string(key)] = bytes.Clone(value)
	return nil
}

// Update replaces the record at key with transform(existing) if present.
func (s *MemoryStore) Update(_ context.Context, namespace string, key []byte, transform TransformFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.namespaces[namespace]
	existing, ok := ns[string(key)]
	if !ok {
		return ErrNotFound
	}

	next, err := transform(bytes.Clone(existing))
	if err != nil {
		return err
	}

	ns[string(key)] = bytes.Clone(next)
	return nil
}

// Keys returns up to limit keys in ascending byte order, strictly after
// startAfter when non-nil.
func (s *MemoryStore) Keys(_ context.Context, namespace string, startAfter []byte, limit int) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := s.namespaces[namespace]
	sorted := make([]string, 0, len(ns))
	for k := range ns {
		if startAfter != nil && k <= string(startAfter) {
			continue
		}
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	keys := make([][]byte, len(sorted))
	for i, k := range sorted {
		keys[i] = []byte(k)
	}
	return keys, nil
}
