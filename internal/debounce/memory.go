package debounce

import (
	"context"
	"sync"
)

// MemoryStore implements watch.DebounceStore in process memory, for tests
// and single-node development runs.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryStore constructs an empty marker set.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

// MarkOnce implements watch.DebounceStore.
func (s *MemoryStore) MarkOnce(_ context.Context, fingerprint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[fingerprint]; ok {
		return false, nil
	}
	s.seen[fingerprint] = struct{}{}
	return true, nil
}
