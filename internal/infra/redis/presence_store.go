package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-sync/internal/domain"
)

// PresenceStore records display acknowledgments in a Redis hash so any process can list
// connected displays.
//
//	HSET trivia:{name}:displays {displayID} <json>
//
// The whole hash expires ttl after the last acknowledgment; individual stale entries are
// filtered on read.
type PresenceStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	now    func() time.Time
}

func NewPresenceStore(client *redis.Client, name string, ttl time.Duration) *PresenceStore {
	return &PresenceStore{
		client: client,
		key:    "trivia:" + name + ":displays",
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *PresenceStore) Touch(ctx context.Context, p domain.DisplayPresence) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key, p.DisplayID, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("touch display %s: %w", p.DisplayID, err)
	}
	return nil
}

func (s *PresenceStore) List(ctx context.Context) ([]domain.DisplayPresence, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list displays: %w", err)
	}
	out := make([]domain.DisplayPresence, 0, len(raw))
	for _, v := range raw {
		var p domain.DisplayPresence
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			continue
		}
		if s.ttl > 0 && time.UnixMilli(p.AckedAt).Add(s.ttl).Before(s.now()) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayID < out[j].DisplayID })
	return out, nil
}
