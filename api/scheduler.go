/*
scheduler.go - Periodic scenario inventory refresh

PURPOSE:
  Periodically counts stored scenarios by type and lock state and publishes
  the counts as the fuelcast_scenarios gauge.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Refreshes once immediately on Start
  - Resets the gauge on each pass so deleted types drop to zero
  - Store errors are logged and retried on the next tick

CONFIGURATION:
  - CheckInterval: How often to refresh (default: 1 minute)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  sched := NewInventoryScheduler(store, metrics, logger)
  sched.Start()
  // ... later
  sched.Stop()

SEE ALSO:
  - metrics.go: Gauge definition
*/
package api

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/fuel-engine/engine"
)

// InventoryScheduler refreshes the scenario gauge.
type InventoryScheduler struct {
	Store         engine.ScenarioStore
	Metrics       *Metrics
	Logger        zerolog.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewInventoryScheduler creates a new scheduler.
func NewInventoryScheduler(store engine.ScenarioStore, metrics *Metrics, logger zerolog.Logger) *InventoryScheduler {
	return &InventoryScheduler{
		Store:         store,
		Metrics:       metrics,
		Logger:        logger,
		CheckInterval: time.Minute,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (s *InventoryScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info().Msg("inventory scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run()

	s.Logger.Info().Dur("interval", s.CheckInterval).Msg("inventory scheduler started")
}

// Stop stops the scheduler and waits for the current pass.
func (s *InventoryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info().Msg("inventory scheduler stopped")
}

func (s *InventoryScheduler) run() {
	defer s.wg.Done()

	s.Refresh(context.Background())
	for {
		select {
		case <-s.ticker.C:
			s.Refresh(context.Background())
		case <-s.stop:
			return
		}
	}
}

// Refresh recounts scenarios once.
func (s *InventoryScheduler) Refresh(ctx context.Context) {
	list, err := s.Store.ListScenarios(ctx)
	if err != nil {
		s.Logger.Error().Err(err).Msg("scenario inventory failed")
		return
	}

	counts := make(map[[2]string]int)
	for _, sc := range list {
		counts[[2]string{string(sc.Type), strconv.FormatBool(sc.Locked)}]++
	}

	s.Metrics.scenarios.Reset()
	for k, n := range counts {
		s.Metrics.scenarios.WithLabelValues(k[0], k[1]).Set(float64(n))
	}
	s.Logger.Debug().Int("scenarios", len(list)).Msg("scenario inventory refreshed")
}
