package cache

import (
	"context"
	"sync"

	"PolyLedger/internal/period"
)

// MemoryStore is a map-backed Store for tests and single-process runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

func (s *MemoryStore) Get(_ context.Context, wallet string, p period.Period) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[resultKey(wallet, p)]
	if !ok {
		return nil, nil
	}
	copied := *e
	return &copied, nil
}

func (s *MemoryStore) PutAll(_ context.Context, entries []*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		copied := *e
		s.entries[resultKey(e.Wallet, e.Period)] = &copied
	}
	return nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
