package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the server configuration, loaded from the environment.
// Addresses can be overridden by flags.
type Config struct {
	TCPAddr      string        `envconfig:"TCP_ADDR" default:":7454"`
	WSAddr       string        `envconfig:"WS_ADDR" default:":8080"`
	SinglePort   bool          `envconfig:"SINGLE_PORT"`
	StoreBackend string        `envconfig:"STORE_BACKEND" default:"sqlite"`
	SQLitePath   string        `envconfig:"SQLITE_PATH" default:"chatchum.db"`
	BadgerPath   string        `envconfig:"BADGER_PATH" default:"chatchum-badger"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"220s"`
	SendBuffer   int           `envconfig:"SEND_BUFFER" default:"16"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig reads the configuration from CHATCHUM_-prefixed environment
// variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("chatchum", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	switch cfg.StoreBackend {
	case "sqlite", "badger":
	default:
		return Config{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	return cfg, nil
}
