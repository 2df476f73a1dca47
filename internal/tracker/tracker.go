// Package tracker keeps the durable record of questions already served.
package tracker

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store persists used question ids outside the session (memory, Redis, Postgres).
type Store interface {
	FetchUsedIDs(ctx context.Context) ([]string, error)
	AppendUsedIDs(ctx context.Context, ids []string) error
	ClearUsedIDs(ctx context.Context) error
}

// Tracker fronts a Store with a local set. Store failures are logged and degrade to
// "nothing used yet" on read and a no-op on write; callers never see them.
type Tracker struct {
	store Store

	mu     sync.Mutex
	used   map[string]struct{}
	loaded bool
}

func New(store Store) *Tracker {
	return &Tracker{store: store, used: make(map[string]struct{})}
}

// Used returns the ids recorded so far. The store is read once, then the local set is authoritative.
func (t *Tracker) Used(ctx context.Context) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loaded {
		ids, err := t.store.FetchUsedIDs(ctx)
		if err != nil {
			log.Error().Err(err).Msg("fetch used questions failed, treating all as unused")
		} else {
			for _, id := range ids {
				t.used[id] = struct{}{}
			}
			t.loaded = true
		}
	}

	out := make([]string, 0, len(t.used))
	for id := range t.used {
		out = append(out, id)
	}
	return out
}

// Record appends ids that are not already recorded. It returns how many were new.
func (t *Tracker) Record(ctx context.Context, ids ...string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := t.used[id]; ok {
			continue
		}
		t.used[id] = struct{}{}
		fresh = append(fresh, id)
	}
	if len(fresh) == 0 {
		return 0
	}
	if err := t.store.AppendUsedIDs(ctx, fresh); err != nil {
		log.Error().Err(err).Strs("question_ids", fresh).Msg("persist used questions failed")
	}
	return len(fresh)
}

// Reset bulk-clears the history; ids are never removed individually.
func (t *Tracker) Reset(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.used = make(map[string]struct{})
	t.loaded = true
	if err := t.store.ClearUsedIDs(ctx); err != nil {
		log.Error().Err(err).Msg("clear used questions failed")
	}
}
