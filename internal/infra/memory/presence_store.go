package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trivia-sync/internal/domain"
)

// PresenceStore remembers the last snapshot acknowledgment of each display.
// Entries older than ttl are hidden from List and pruned on the next Touch.
type PresenceStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	displays map[string]domain.DisplayPresence
}

func NewPresenceStore(ttl time.Duration) *PresenceStore {
	return &PresenceStore{
		ttl:      ttl,
		now:      time.Now,
		displays: make(map[string]domain.DisplayPresence),
	}
}

func (s *PresenceStore) Touch(_ context.Context, p domain.DisplayPresence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displays[p.DisplayID] = p
	for id, existing := range s.displays {
		if s.expired(existing) {
			delete(s.displays, id)
		}
	}
	return nil
}

func (s *PresenceStore) List(_ context.Context) ([]domain.DisplayPresence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DisplayPresence, 0, len(s.displays))
	for _, p := range s.displays {
		if !s.expired(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayID < out[j].DisplayID })
	return out, nil
}

func (s *PresenceStore) expired(p domain.DisplayPresence) bool {
	if s.ttl <= 0 {
		return false
	}
	return time.UnixMilli(p.AckedAt).Add(s.ttl).Before(s.now())
}
