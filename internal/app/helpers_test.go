package app_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"trivia-sync/internal/app"
	"trivia-sync/internal/domain"
	"trivia-sync/internal/infra/memory"
	"trivia-sync/internal/protocol"
	"trivia-sync/internal/tracker"
)

type harness struct {
	ctx      context.Context
	clock    *clockwork.FakeClock
	channel  *memory.Channel
	store    *recordingStore
	presence *memory.PresenceStore
	ctrl     *app.Controller
}

func newHarness(t *testing.T, settings domain.Settings, questions int, teams ...string) *harness {
	t.Helper()
	h := &harness{
		ctx:      context.Background(),
		clock:    clockwork.NewFakeClockAt(time.Now()),
		channel:  memory.NewChannel(),
		store:    &recordingStore{UsedStore: memory.NewUsedStore()},
		presence: memory.NewPresenceStore(time.Minute),
	}
	t.Cleanup(func() { _ = h.channel.Close() })

	h.ctrl = app.NewController(h.channel, tracker.New(h.store), h.presence, app.Options{
		Clock:        h.clock,
		Rand:         rand.New(rand.NewSource(1)),
		SenderID:     "control-test",
		AdvanceDelay: 3 * time.Second,
	})
	h.ctrl.LoadData(h.ctx, gameData(settings, teams...), bank(questions))
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.ctrl.Tick(h.ctx)
}

func gameData(settings domain.Settings, teams ...string) domain.GameData {
	game := domain.GameData{Settings: settings}
	for _, id := range teams {
		game.Teams = append(game.Teams, domain.Team{ID: id, Name: id})
	}
	return game
}

func bank(n int) domain.QuestionBank {
	b := domain.QuestionBank{
		ID: "test",
		Categories: []domain.Category{
			{ID: "c-1", Name: "Science"},
			{ID: "c-2", Name: "History"},
		},
	}
	for i := 1; i <= n; i++ {
		b.Questions = append(b.Questions, domain.Question{
			ID:         fmt.Sprintf("q-%d", i),
			CategoryID: fmt.Sprintf("c-%d", (i-1)%2+1),
			Text:       fmt.Sprintf("Question %d", i),
			Answer:     "x",
			Points:     100,
		})
	}
	return b
}

func settings(timeLimit, buzzerLimit, sample int) domain.Settings {
	return domain.Settings{
		DefaultTimeLimit: timeLimit,
		BuzzerTimeLimit:  buzzerLimit,
		SampleSize:       sample,
		SampleRandomized: false,
	}
}

func teamScore(s protocol.Snapshot, id string) int {
	for _, t := range s.Teams {
		if t.ID == id {
			return t.Score
		}
	}
	return -1
}

func drain(ch <-chan protocol.Message) []protocol.Message {
	var out []protocol.Message
	for {
		select {
		case msg := <-ch:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func types(msgs []protocol.Message) []protocol.MessageType {
	out := make([]protocol.MessageType, 0, len(msgs))
	for _, m := range msgs {
		if m.Type != protocol.TypeStateSnapshot {
			out = append(out, m.Type)
		}
	}
	return out
}

// recordingStore counts how often each id is appended.
type recordingStore struct {
	*memory.UsedStore
	mu       sync.Mutex
	appended map[string]int
}

func (s *recordingStore) AppendUsedIDs(ctx context.Context, ids []string) error {
	s.mu.Lock()
	if s.appended == nil {
		s.appended = make(map[string]int)
	}
	for _, id := range ids {
		s.appended[id]++
	}
	s.mu.Unlock()
	return s.UsedStore.AppendUsedIDs(ctx, ids)
}

func (s *recordingStore) count(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appended[id]
}
