/*
Package config loads runtime settings from the environment.

PURPOSE:
  One struct for everything the binary needs at startup. Values come from
  environment variables, optionally seeded from a .env file; command-line
  flags override them in cmd/fuelcast.

ENVIRONMENT:
  FUELCAST_ADDR          HTTP listen address (default ":8080")
  FUELCAST_DB            SQLite path, ":memory:" for a throwaway database
                         (default "fuelcast.db")
  FUELCAST_LOG_LEVEL     zerolog level name (default "info")
  FUELCAST_LOG_FORMAT    "console" or "json" (default "console")
  FUELCAST_DRIVER_TABLE  Driver table file; empty uses the embedded catalog
  FUELCAST_CORS_ORIGINS  Comma-separated allowed origins (default "*")

SEE ALSO:
  - cmd/fuelcast/main.go: Flag overrides
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds the runtime settings.
type Config struct {
	Addr            string        `env:"FUELCAST_ADDR" envDefault:":8080"`
	DBPath          string        `env:"FUELCAST_DB" envDefault:"fuelcast.db"`
	LogLevel        string        `env:"FUELCAST_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"FUELCAST_LOG_FORMAT" envDefault:"console"`
	DriverTable     string        `env:"FUELCAST_DRIVER_TABLE"`
	CORSOrigins     []string      `env:"FUELCAST_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	ShutdownTimeout time.Duration `env:"FUELCAST_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load reads the given .env files, skipping any that do not exist, then
// parses the environment. Variables already set win over the files.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that env parsing cannot.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("config: listen address is empty")
	}
	if c.DBPath == "" {
		return errors.New("config: database path is empty")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

// Level returns the parsed log level.
func (c Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("config: log level: %w", err)
	}
	return lvl, nil
}
