package cache

import (
	"context"
	"sync"
)

// MemoryStore keeps cache buckets in process memory. It is the default
// backend for single-instance deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]map[string]Entry)}
}

// Put writes an entry into the given generation's bucket.
func (s *MemoryStore) Put(_ context.Context, generation, key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.buckets[generation]
	if !ok {
		bucket = make(map[string]Entry)
		s.buckets[generation] = bucket
	}
	bucket[key] = entry
	return nil
}

// Get returns the entry stored under key in the given generation's bucket.
func (s *MemoryStore) Get(_ context.Context, generation, key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, ok := s.buckets[generation]
	if !ok {
		return Entry{}, false, nil
	}
	entry, ok := bucket[key]
	return entry, ok, nil
}

// Generations lists the ids of all existing buckets.
func (s *MemoryStore) Generations(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.buckets))
	for id := range s.buckets {
		ids = append(ids, id)
	}
	return ids, nil
}

// Drop deletes a generation's bucket.
func (s *MemoryStore) Drop(_ context.Context, generation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.buckets, generation)
	return nil
}
