package api

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fuel-engine/engine"
	"github.com/warp/fuel-engine/engine/store"
)

func TestInventoryScheduler_Refresh(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	reg, err := engine.NewRegistry(engine.Driver{Name: "a", Kind: engine.KindInput})
	require.NoError(t, err)
	mgr := engine.NewScenarioManager(reg, st)
	asOf := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	// GIVEN: two budgets, one locked, and a forecast
	for _, id := range []engine.ScenarioID{"b1", "b2"} {
		_, err := mgr.Create(ctx, engine.CreateRequest{ID: id, Type: engine.ScenarioBudget, AsOf: asOf})
		require.NoError(t, err)
	}
	_, err = mgr.Create(ctx, engine.CreateRequest{ID: "f1", Type: engine.ScenarioInternalForecast, AsOf: asOf})
	require.NoError(t, err)
	_, err = mgr.Lock(ctx, "b1")
	require.NoError(t, err)

	m := NewMetrics()
	sched := NewInventoryScheduler(st, m, zerolog.Nop())

	// WHEN: refreshing
	sched.Refresh(ctx)

	// THEN: the gauge counts by type and lock state
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scenarios.WithLabelValues("budget", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scenarios.WithLabelValues("budget", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scenarios.WithLabelValues("internal_forecast", "false")))

	// Deleted scenarios drop out on the next pass
	require.NoError(t, mgr.Delete(ctx, "f1"))
	sched.Refresh(ctx)
	assert.Equal(t, 2, testutil.CollectAndCount(m.scenarios))
}

func TestInventoryScheduler_StartStop(t *testing.T) {
	m := NewMetrics()
	sched := NewInventoryScheduler(store.NewMemory(), m, zerolog.Nop())
	sched.CheckInterval = 10 * time.Millisecond

	sched.Start()
	sched.Start()
	time.Sleep(30 * time.Millisecond)
	sched.Stop()
	sched.Stop()

	disabled := NewInventoryScheduler(store.NewMemory(), m, zerolog.Nop())
	disabled.Enabled = false
	disabled.Start()
	assert.Nil(t, disabled.ticker)
}
