// Package config holds the terminal client's configuration.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	APIURL      string `env:"COMPANION_API_URL,      default=http://localhost:8080"`
	SessionFile string `env:"COMPANION_SESSION_FILE"`
	DeviceID    string `env:"COMPANION_DEVICE_ID"`
	Quota       int    `env:"ANONYMOUS_CHAT_QUOTA,   default=2"`
	LogLevel    string `env:"LOG_LEVEL,              default=warn"`
}

// Load reads the client configuration from the environment (and .env).
// SessionFile defaults to companion/session.json under the user config dir.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if cfg.SessionFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("config: locate config dir: %w", err)
		}
		cfg.SessionFile = filepath.Join(dir, "companion", "session.json")
	}
	return &cfg, nil
}
