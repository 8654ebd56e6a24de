/*
main.go - Application entry point

PURPOSE:
  Command-line front end of the fuel cost forecasting engine. Serves the
  HTTP API, validates driver tables and prints projections.

COMMANDS:
  serve               Start the HTTP server
  drivers validate    Check a driver table (or the embedded catalog)
  project             Print the cost projection of a stored scenario

CONFIGURATION:
  Settings come from FUELCAST_* environment variables, optionally seeded
  from a .env file in the working directory (see package config).
  Persistent flags override them:
    --db          SQLite database path, ":memory:" for a throwaway database
    --drivers     Driver table file; empty uses the embedded catalog
    --log-level   zerolog level name
    --log-format  console or json

EXAMPLES:
  # Run the server on port 3000 with a file database
  fuelcast serve --addr :3000 --db ./data/fuel.db

  # Validate a custom table
  fuelcast drivers validate ./plant-drivers.yaml

  # Annual costs of a budget over five years
  fuelcast project --scenario budget-2025 --years 5 --rollup annual

SEE ALSO:
  - serve.go: Server startup and graceful shutdown
  - api/server.go: Router configuration
  - config/config.go: Environment settings
*/
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/warp/fuel-engine/config"
	"github.com/warp/fuel-engine/engine"
	"github.com/warp/fuel-engine/factory"
	"github.com/warp/fuel-engine/fuelcost"
)

// Version information (set via ldflags during build)
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app carries the loaded configuration into subcommands.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var envFile string

	root := &cobra.Command{
		Use:           "fuelcast",
		Short:         "Driver-based fuel cost forecasting",
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("db") {
				cfg.DBPath, _ = flags.GetString("db")
			}
			if flags.Changed("drivers") {
				cfg.DriverTable, _ = flags.GetString("drivers")
			}
			if flags.Changed("log-level") {
				cfg.LogLevel, _ = flags.GetString("log-level")
			}
			if flags.Changed("log-format") {
				cfg.LogFormat, _ = flags.GetString("log-format")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a.cfg = cfg
			a.logger, err = newLogger(cfg, cmd.ErrOrStderr())
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file to seed the environment from")
	pf.String("db", "", "SQLite database path (overrides FUELCAST_DB)")
	pf.String("drivers", "", "driver table file (overrides FUELCAST_DRIVER_TABLE)")
	pf.String("log-level", "", "log level (overrides FUELCAST_LOG_LEVEL)")
	pf.String("log-format", "", "console or json (overrides FUELCAST_LOG_FORMAT)")

	root.AddCommand(
		newServeCommand(a),
		newDriversCommand(a),
		newProjectCommand(a),
	)
	return root
}

func newLogger(cfg config.Config, w io.Writer) (zerolog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return zerolog.Nop(), err
	}
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "fuelcast").Logger(), nil
}

// registry builds the configured driver catalog and its cost calculator.
func (a *app) registry() (*engine.Registry, *fuelcost.Calculator, error) {
	var (
		reg *engine.Registry
		err error
	)
	if a.cfg.DriverTable != "" {
		reg, err = factory.NewDriverFactory().LoadRegistryFile(a.cfg.DriverTable)
	} else {
		reg, err = fuelcost.DefaultRegistry()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("driver table: %w", err)
	}
	calc, err := fuelcost.NewCalculator(reg, fuelcost.DefaultCategoryMap())
	if err != nil {
		return nil, nil, fmt.Errorf("cost categories: %w", err)
	}
	return reg, calc, nil
}
