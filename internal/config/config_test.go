package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
channel:
  driver: redis
redis:
  addr: localhost:6379
timing:
  advanceDelay: 5s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Channel.Driver != "redis" || cfg.Channel.Name != "main" {
		t.Fatalf("unexpected channel config %+v", cfg.Channel)
	}
	if cfg.Server.Port != "8080" || cfg.Bank.ID != "default" || cfg.Bank.Driver != "file" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if got := Duration(cfg.Timing.AdvanceDelay, time.Second); got != 5*time.Second {
		t.Fatalf("expected 5s advance delay, got %v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDurationFallback(t *testing.T) {
	if got := Duration("", time.Minute); got != time.Minute {
		t.Fatalf("empty: got %v", got)
	}
	if got := Duration("soon", time.Minute); got != time.Minute {
		t.Fatalf("malformed: got %v", got)
	}
	if got := Duration("250ms", time.Minute); got != 250*time.Millisecond {
		t.Fatalf("valid: got %v", got)
	}
}

func TestLoadGameDataKeepsDefaultSettings(t *testing.T) {
	path := writeFile(t, "game.yaml", `
teams:
  - id: t-1
    name: Azules
  - id: t-2
    name: Rojos
settings:
  sampleSize: 4
`)
	game, err := LoadGameData(path)
	if err != nil {
		t.Fatalf("load game: %v", err)
	}
	if len(game.Teams) != 2 || game.Teams[1].Name != "Rojos" {
		t.Fatalf("unexpected teams %+v", game.Teams)
	}
	s := game.Settings
	if s.SampleSize != 4 || s.DefaultTimeLimit != 30 || s.BuzzerTimeLimit != 10 || !s.SampleRandomized {
		t.Fatalf("unexpected settings %+v", s)
	}
}

func TestLoadGameDataAcceptsJSON(t *testing.T) {
	path := writeFile(t, "game.json", `{"teams":[{"id":"t-1","name":"Verdes"}],"settings":{"defaultTimeLimit":0}}`)
	game, err := LoadGameData(path)
	if err != nil {
		t.Fatalf("load game: %v", err)
	}
	if game.Settings.DefaultTimeLimit != 0 || game.Settings.BuzzerTimeLimit != 10 {
		t.Fatalf("unexpected settings %+v", game.Settings)
	}
}
