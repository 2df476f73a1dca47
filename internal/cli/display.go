package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"trivia-sync/internal/app"
	"trivia-sync/internal/config"
	"trivia-sync/internal/protocol"
)

// NewDisplayCmd runs a headless display that mirrors control over a shared channel and logs
// every state change.
func NewDisplayCmd(opts *rootOptions) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "display",
		Short: "Mirror a running control process and log its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisplay(cmd.Context(), opts, id)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "display instance id (default: random)")
	return cmd
}

func runDisplay(ctx context.Context, opts *rootOptions, id string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Channel.Driver == "memory" {
		return errors.New("display needs a shared channel, set channel.driver to redis or nats")
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	display := app.NewDisplay(channel, app.DisplayOptions{
		ID:            id,
		TickInterval:  config.Duration(cfg.Timing.Tick, 0),
		HelloInterval: config.Duration(cfg.Timing.Hello, 0),
		OnChange:      logState,
	})
	log.Info().Str("display_id", display.ID()).Str("channel", cfg.Channel.Driver).Msg("starting display")
	return display.Run(ctx)
}

func logState(s protocol.Snapshot) {
	ev := log.Info().
		Uint64("version", s.Version).
		Str("status", string(s.Status)).
		Str("mode", string(s.DisplayMode)).
		Str("question_id", s.CurrentQuestionID).
		Int("time_remaining", s.TimeRemaining)
	if s.ActiveTeamID != "" {
		ev = ev.Str("team_id", s.ActiveTeamID).Int("buzzer_remaining", s.BuzzerTimeRemaining)
	}
	ev.Msg("display state")
}
