package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// UsedStore persists the used-question set as a Redis SET so it survives restarts of the
// control process.
type UsedStore struct {
	client *redis.Client
	key    string
}

func NewUsedStore(client *redis.Client, name string) *UsedStore {
	return &UsedStore{client: client, key: "trivia:" + name + ":used"}
}

func (s *UsedStore) FetchUsedIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch used ids: %w", err)
	}
	return ids, nil
}

func (s *UsedStore) AppendUsedIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		members = append(members, id)
	}
	if err := s.client.SAdd(ctx, s.key, members...).Err(); err != nil {
		return fmt.Errorf("append used ids: %w", err)
	}
	return nil
}

func (s *UsedStore) ClearUsedIDs(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear used ids: %w", err)
	}
	return nil
}
