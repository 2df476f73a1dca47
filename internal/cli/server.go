package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"trivia-sync/internal/app"
	"trivia-sync/internal/config"
	transport "trivia-sync/internal/transport/http"
	"trivia-sync/internal/tracker"
)

// NewStartCmd builds the CLI subcommand that runs the control process.
func NewStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the control process and its HTTP/websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), opts)
		},
	}
}

func runServer(ctx context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	channel, err := openChannel(cfg, b)
	if err != nil {
		return err
	}
	defer channel.Close()

	used, err := openUsedStore(cfg, b)
	if err != nil {
		return err
	}
	banks, err := openBankRepository(cfg, b)
	if err != nil {
		return err
	}
	game, err := loadGame(cfg)
	if err != nil {
		return err
	}
	bank, err := banks.GetBank(ctx, cfg.Bank.ID)
	if err != nil {
		return err
	}

	ctrl := app.NewController(channel, tracker.New(used), openPresenceStore(cfg, b), app.Options{
		TickInterval:     config.Duration(cfg.Timing.Tick, 0),
		SnapshotInterval: config.Duration(cfg.Timing.Snapshot, 0),
		AdvanceDelay:     config.Duration(cfg.Timing.AdvanceDelay, 0),
		PickDebounce:     config.Duration(cfg.Timing.PickDebounce, 0),
	})
	ctrl.LoadData(ctx, game, bank)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           transport.NewRouter(channel, ctrl, cfg.Server.PublicURL),
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ctrl.Run(gctx)
	})
	g.Go(func() error {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("channel", cfg.Channel.Driver).
			Str("bank", bank.ID).
			Int("questions", len(bank.Questions)).
			Msg("starting trivia control")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
