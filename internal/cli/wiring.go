package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"trivia-sync/internal/app"
	"trivia-sync/internal/config"
	"trivia-sync/internal/domain"
	"trivia-sync/internal/infra/memory"
	natschannel "trivia-sync/internal/infra/nats"
	"trivia-sync/internal/infra/postgres"
	infraredis "trivia-sync/internal/infra/redis"
	"trivia-sync/internal/protocol"
	"trivia-sync/internal/tracker"
)

// backends holds the shared connections a process opened from its config.
type backends struct {
	redis *goredis.Client
	pool  *pgxpool.Pool
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Redis.Addr != "" {
		b.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
	}
	return b, nil
}

func (b *backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func (b *backends) requireRedis(what string) error {
	if b.redis == nil {
		return fmt.Errorf("%s needs redis.addr", what)
	}
	return nil
}

func (b *backends) requirePostgres(what string) error {
	if b.pool == nil {
		return fmt.Errorf("%s needs postgres.url", what)
	}
	return nil
}

func openChannel(cfg config.Config, b *backends) (protocol.Channel, error) {
	switch cfg.Channel.Driver {
	case "memory":
		return memory.NewChannel(), nil
	case "redis":
		if err := b.requireRedis("redis channel"); err != nil {
			return nil, err
		}
		return infraredis.NewChannel(b.redis, cfg.Channel.Name), nil
	case "nats":
		natsCfg := natschannel.DefaultConfig()
		if cfg.NATS.URL != "" {
			natsCfg.URL = cfg.NATS.URL
		}
		natsCfg.Subject = "trivia." + cfg.Channel.Name
		if cfg.NATS.Subject != "" {
			natsCfg.Subject = cfg.NATS.Subject
		}
		return natschannel.Connect(natsCfg)
	}
	return nil, fmt.Errorf("unknown channel driver %q", cfg.Channel.Driver)
}

func openUsedStore(cfg config.Config, b *backends) (tracker.Store, error) {
	switch cfg.UsedStore.Driver {
	case "memory":
		return memory.NewUsedStore(), nil
	case "redis":
		if err := b.requireRedis("redis used store"); err != nil {
			return nil, err
		}
		return infraredis.NewUsedStore(b.redis, cfg.Channel.Name), nil
	case "postgres":
		if err := b.requirePostgres("postgres used store"); err != nil {
			return nil, err
		}
		return postgres.NewUsedStore(b.pool, cfg.Channel.Name), nil
	}
	return nil, fmt.Errorf("unknown used store driver %q", cfg.UsedStore.Driver)
}

// openBankRepository caches banks in redis when it is configured and in process otherwise.
func openBankRepository(cfg config.Config, b *backends) (app.BankRepository, error) {
	var loader memory.BankLoader
	switch cfg.Bank.Driver {
	case "file":
		loader = memory.NewFileBankLoader(cfg.Bank.Dir)
	case "postgres":
		if err := b.requirePostgres("postgres bank loader"); err != nil {
			return nil, err
		}
		loader = postgres.NewBankLoader(b.pool)
	default:
		return nil, fmt.Errorf("unknown bank driver %q", cfg.Bank.Driver)
	}

	ttl := config.Duration(cfg.Bank.TTL, 10*time.Minute)
	if b.redis != nil {
		return infraredis.NewBankRepository(b.redis, loader, ttl), nil
	}
	return memory.NewBankRepository(loader, ttl), nil
}

func openPresenceStore(cfg config.Config, b *backends) app.PresenceStore {
	ttl := config.Duration(cfg.Timing.PresenceTTL, time.Minute)
	if b.redis != nil {
		return infraredis.NewPresenceStore(b.redis, cfg.Channel.Name, ttl)
	}
	return memory.NewPresenceStore(ttl)
}

func loadGame(cfg config.Config) (domain.GameData, error) {
	if cfg.Game.Path == "" {
		log.Info().Msg("no game.path configured, using default teams")
		return defaultGame(), nil
	}
	return config.LoadGameData(cfg.Game.Path)
}

func defaultGame() domain.GameData {
	return domain.GameData{
		Teams: []domain.Team{
			{ID: "t-azules", Name: "Azules", Color: "#3b82f6"},
			{ID: "t-rojos", Name: "Rojos", Color: "#ef4444"},
			{ID: "t-verdes", Name: "Verdes", Color: "#22c55e"},
			{ID: "t-amarillos", Name: "Amarillos", Color: "#f59e0b"},
		},
		Settings: domain.DefaultSettings(),
	}
}
