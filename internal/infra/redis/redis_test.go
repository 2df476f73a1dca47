package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"trivia-sync/internal/domain"
	"trivia-sync/internal/infra/memory"
	"trivia-sync/internal/protocol"
)

func TestBankRepositoryCachesInRedis(t *testing.T) {
	mr := runMiniredis(t)
	client := newClient(mr)

	loader := &countingLoader{
		BankLoader: memory.NewStaticBankLoader(map[string]domain.QuestionBank{
			"default": sampleBank(),
		}),
	}
	repo := NewBankRepository(client, loader, time.Minute)

	bank, err := repo.GetBank(context.Background(), "default")
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("trivia:bank:default") {
		t.Fatalf("expected bank cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	cached, _ := repo.GetBank(context.Background(), "default")
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(cached.Questions) != len(bank.Questions) || cached.Questions[0].Answer != "4" {
		t.Fatalf("cached bank differs: %+v", cached)
	}
}

func TestUsedStoreRoundTrip(t *testing.T) {
	mr := runMiniredis(t)
	store := NewUsedStore(newClient(mr), "room")
	ctx := context.Background()

	if err := store.AppendUsedIDs(ctx, []string{"q1", "q2", "q1"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	ids, err := store.FetchUsedIDs(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("expected 2 used ids, got %v (%v)", ids, err)
	}

	if err := store.ClearUsedIDs(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("trivia:room:used") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestPresenceStoreSetsExpiry(t *testing.T) {
	mr := runMiniredis(t)
	store := NewPresenceStore(newClient(mr), "room", time.Minute)
	ctx := context.Background()
	now := time.Now()
	store.now = func() time.Time { return now }

	_ = store.Touch(ctx, domain.DisplayPresence{DisplayID: "d1", Version: 4, AckedAt: now.UnixMilli()})
	if ttl := mr.TTL("trivia:room:displays"); ttl != time.Minute {
		t.Fatalf("expected hash ttl of a minute, got %v", ttl)
	}

	list, err := store.List(ctx)
	if err != nil || len(list) != 1 || list[0].Version != 4 {
		t.Fatalf("unexpected presence %+v (%v)", list, err)
	}

	now = now.Add(2 * time.Minute)
	if list, _ := store.List(ctx); len(list) != 0 {
		t.Fatalf("expected stale display filtered, got %+v", list)
	}
}

func TestChannelDeliversAcrossClients(t *testing.T) {
	mr := runMiniredis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	displaySide := NewChannel(newClient(mr), "room")
	controlSide := NewChannel(newClient(mr), "room")
	defer displaySide.Close()
	defer controlSide.Close()

	sub, unsubscribe, err := displaySide.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	points := 200
	msg := protocol.Message{Type: protocol.TypeMarkCorrect, Sender: domain.RoleControl, Version: 7, TeamID: "t1", Points: &points, ActionID: "a-1"}
	if err := controlSide.Publish(ctx, msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-sub:
		if got.Type != protocol.TypeMarkCorrect || got.Version != 7 || *got.Points != 200 {
			t.Fatalf("unexpected message %+v", got)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for message")
	}
}

func TestChannelCancelReleasesStalledSubscriber(t *testing.T) {
	mr := runMiniredis(t)
	ctx := context.Background()

	ch := NewChannel(newClient(mr), "room")
	defer ch.Close()

	sub, unsubscribe, err := ch.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	const published = subscriberBuffer + 44
	for i := 1; i <= published; i++ {
		if err := ch.Publish(ctx, protocol.Message{Type: protocol.TypeUpdateTimer, Sender: domain.RoleControl, Version: uint64(i)}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(sub) < subscriberBuffer {
		if time.Now().After(deadline) {
			t.Fatalf("buffer never filled, have %d", len(sub))
		}
		time.Sleep(10 * time.Millisecond)
	}

	unsubscribe()
	time.Sleep(100 * time.Millisecond)

	received := 0
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-sub:
			if !ok {
				if received >= published {
					t.Fatalf("expected delivery to stop at cancel, got all %d", received)
				}
				return
			}
			received++
		case <-timeout:
			t.Fatalf("subscription not closed after cancel, read %d", received)
		}
	}
}

type countingLoader struct {
	memory.BankLoader
	calls int
}

func (l *countingLoader) LoadBank(ctx context.Context, bankID string) (domain.QuestionBank, error) {
	l.calls++
	return l.BankLoader.LoadBank(ctx, bankID)
}

func sampleBank() domain.QuestionBank {
	return domain.QuestionBank{
		ID:         "default",
		Categories: []domain.Category{{ID: "c1", Name: "Math"}},
		Questions: []domain.Question{
			{ID: "q1", CategoryID: "c1", Text: "What is 2 + 2?", Answer: "4", Points: 100},
		},
	}
}

func runMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
