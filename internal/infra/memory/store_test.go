package memory

import (
	"context"
	"testing"
	"time"

	"trivia-sync/internal/domain"
)

func TestUsedStoreAppendsUniqueAndClears(t *testing.T) {
	ctx := context.Background()
	s := NewUsedStore()

	_ = s.AppendUsedIDs(ctx, []string{"q1", "q2"})
	_ = s.AppendUsedIDs(ctx, []string{"q2", "q3"})
	ids, _ := s.FetchUsedIDs(ctx)
	if len(ids) != 3 {
		t.Fatalf("expected 3 unique ids, got %v", ids)
	}

	_ = s.ClearUsedIDs(ctx)
	if ids, _ := s.FetchUsedIDs(ctx); len(ids) != 0 {
		t.Fatalf("expected empty store, got %v", ids)
	}
}

func TestPresenceStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewPresenceStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	_ = store.Touch(ctx, domain.DisplayPresence{DisplayID: "b", Version: 3, AckedAt: now.UnixMilli()})
	_ = store.Touch(ctx, domain.DisplayPresence{DisplayID: "a", Version: 2, AckedAt: now.UnixMilli()})
	_ = store.Touch(ctx, domain.DisplayPresence{DisplayID: "a", Version: 5, AckedAt: now.UnixMilli()})

	list, _ := store.List(ctx)
	if len(list) != 2 || list[0].DisplayID != "a" || list[0].Version != 5 {
		t.Fatalf("unexpected presence list %+v", list)
	}

	now = now.Add(2 * time.Minute)
	if list, _ := store.List(ctx); len(list) != 0 {
		t.Fatalf("expected stale displays hidden, got %+v", list)
	}
}
