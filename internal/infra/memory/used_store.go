package memory

import (
	"context"
	"sync"
)

// UsedStore keeps used question ids in memory; it lives as long as the process.
type UsedStore struct {
	mu  sync.RWMutex
	ids []string
	set map[string]struct{}
}

func NewUsedStore() *UsedStore {
	return &UsedStore{set: make(map[string]struct{})}
}

func (s *UsedStore) FetchUsedIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.ids...), nil
}

func (s *UsedStore) AppendUsedIDs(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.set[id]; ok {
			continue
		}
		s.set[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
	return nil
}

func (s *UsedStore) ClearUsedIDs(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = nil
	s.set = make(map[string]struct{})
	return nil
}
