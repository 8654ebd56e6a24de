package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/fuel-engine/api"
	"github.com/warp/fuel-engine/store/sqlite"
)

func newServeCommand(a *app) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

On SIGINT/SIGTERM the server stops accepting connections, waits for active
requests up to the shutdown timeout, then closes the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Addr, _ = cmd.Flags().GetString("addr")
			}
			return a.serve(cmd.Context(), !noScheduler)
		},
	}

	cmd.Flags().String("addr", "", "listen address (overrides FUELCAST_ADDR)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "disable the scenario inventory scheduler")
	return cmd
}

func (a *app) serve(ctx context.Context, scheduler bool) error {
	log := a.logger

	reg, calc, err := a.registry()
	if err != nil {
		return err
	}

	store, err := sqlite.New(a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics := api.NewMetrics()
	handler := api.NewHandler(reg, store, calc, metrics, log)
	router := api.NewRouter(handler, api.RouterOptions{CORSOrigins: a.cfg.CORSOrigins})

	sched := api.NewInventoryScheduler(store, metrics, log.With().Str("component", "scheduler").Logger())
	sched.Enabled = scheduler
	sched.Start()
	defer sched.Stop()

	server := &http.Server{
		Addr:         a.cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", a.cfg.Addr).
			Str("db", a.cfg.DBPath).
			Int("drivers", reg.Len()).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
