package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"trivia-sync/internal/config"
)

type rootOptions struct {
	configPath string
	port       string
	logLevel   string
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	v := viper.New()
	v.SetEnvPrefix("TRIVIA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "trivia-sync",
		Short:         "Live trivia control and display synchronizer",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Msg("could not load .env file")
			}
			bindEnv(v, cmd.Flags())
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&opts.configPath, "config", "config/config.yaml", "path to YAML config (env: TRIVIA_CONFIG)")
	fs.StringVar(&opts.port, "port", "", "port to listen on, overrides server.port (env: TRIVIA_PORT)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level, overrides log.level (env: TRIVIA_LOG_LEVEL)")

	cmd.AddCommand(NewStartCmd(opts))
	cmd.AddCommand(NewDisplayCmd(opts))
	cmd.AddCommand(NewMigrateCmd(opts))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

// bindEnv lets TRIVIA_* variables fill any flag not set on the command line.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

// loadConfig reads the config file and configures the global logger from it.
func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	if opts.port != "" {
		cfg.Server.Port = opts.port
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	setupLogging(cfg.Log.Level, cfg.Log.Pretty)
	return cfg, nil
}

func setupLogging(level string, pretty bool) {
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
