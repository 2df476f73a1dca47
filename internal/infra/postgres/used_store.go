package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// UsedStore keeps the used-question set in the used_questions table, scoped by game name.
type UsedStore struct {
	pool *pgxpool.Pool
	game string
}

func NewUsedStore(pool *pgxpool.Pool, game string) *UsedStore {
	return &UsedStore{pool: pool, game: game}
}

func (s *UsedStore) FetchUsedIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT question_id FROM used_questions WHERE game=$1 ORDER BY used_at`, s.game)
	if err != nil {
		return nil, fmt.Errorf("fetch used ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan used id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *UsedStore) AppendUsedIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO used_questions (game, question_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING`, s.game, ids)
	if err != nil {
		return fmt.Errorf("append used ids: %w", err)
	}
	return nil
}

func (s *UsedStore) ClearUsedIDs(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM used_questions WHERE game=$1`, s.game); err != nil {
		return fmt.Errorf("clear used ids: %w", err)
	}
	return nil
}
