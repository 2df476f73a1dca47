package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"trivia-sync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Error().Err(err).Msg("trivia-sync failed")
		os.Exit(1)
	}
}
