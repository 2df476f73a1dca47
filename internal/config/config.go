package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"trivia-sync/internal/domain"
)

type Config struct {
	Server struct {
		Port      string `yaml:"port"`
		PublicURL string `yaml:"publicURL"`
	} `yaml:"server"`
	Channel struct {
		Driver string `yaml:"driver"` // memory | redis | nats
		Name   string `yaml:"name"`
	} `yaml:"channel"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Bank struct {
		ID     string `yaml:"id"`
		Dir    string `yaml:"dir"`
		Driver string `yaml:"driver"` // file | postgres
		TTL    string `yaml:"ttl"`
	} `yaml:"bank"`
	Game struct {
		Path string `yaml:"path"`
	} `yaml:"game"`
	UsedStore struct {
		Driver string `yaml:"driver"` // memory | redis | postgres
	} `yaml:"usedStore"`
	Timing struct {
		Tick         string `yaml:"tick"`
		Snapshot     string `yaml:"snapshot"`
		Hello        string `yaml:"hello"`
		AdvanceDelay string `yaml:"advanceDelay"`
		PickDebounce string `yaml:"pickDebounce"`
		PresenceTTL  string `yaml:"presenceTTL"`
	} `yaml:"timing"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Load reads YAML config from path and fills in defaults for anything left empty.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Channel.Driver == "" {
		c.Channel.Driver = "memory"
	}
	if c.Channel.Name == "" {
		c.Channel.Name = "main"
	}
	if c.Bank.ID == "" {
		c.Bank.ID = "default"
	}
	if c.Bank.Driver == "" {
		c.Bank.Driver = "file"
	}
	if c.Bank.Dir == "" {
		c.Bank.Dir = "data/banks"
	}
	if c.UsedStore.Driver == "" {
		c.UsedStore.Driver = "memory"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Duration parses a duration string or returns the fallback if empty or malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// LoadGameData reads teams and settings from a YAML (or JSON) file. Settings keys that are
// absent keep their defaults.
func LoadGameData(path string) (domain.GameData, error) {
	game := domain.GameData{Settings: domain.DefaultSettings()}
	data, err := os.ReadFile(path)
	if err != nil {
		return game, err
	}
	if err := yaml.Unmarshal(data, &game); err != nil {
		return game, fmt.Errorf("parse game data %s: %w", path, err)
	}
	return game, nil
}
