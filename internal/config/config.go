package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the daemon configuration, loaded from the environment.
type Config struct {
	ListenAddr string `env:"FAIRDECK_ADDR" envDefault:":8440"`

	LogLevel  string `env:"FAIRDECK_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"FAIRDECK_LOG_FORMAT" envDefault:"json"`

	// ArchivePath points at the SQLite hand-history database. Empty disables
	// archiving entirely.
	ArchivePath string `env:"FAIRDECK_ARCHIVE_PATH"`

	RoomCodeLength int `env:"FAIRDECK_ROOM_CODE_LENGTH" envDefault:"6"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.RoomCodeLength < 4 {
		return Config{}, fmt.Errorf("room code length %d too short", cfg.RoomCodeLength)
	}
	return cfg, nil
}
