package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fuel-engine/engine"
	"github.com/warp/fuel-engine/fuelcost"
	"github.com/warp/fuel-engine/store/sqlite"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env"), "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDriversValidate(t *testing.T) {
	out, err := run(t, "drivers", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "embedded catalog")
	assert.Contains(t, out, "OK")

	// A table without the cost drivers parses but fails the category check
	path := filepath.Join(t.TempDir(), "tiny.yaml")
	require.NoError(t, os.WriteFile(path, []byte("drivers:\n  - {name: a, kind: input, default: \"1\"}\n"), 0o600))
	_, err = run(t, "drivers", "validate", path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("drivers:\n  - {name: a, kind: derived}\n"), 0o600))
	_, err = run(t, "drivers", "validate", path)
	assert.ErrorIs(t, err, engine.ErrInvalidDefinition)
}

func TestProject_TotalAsJSON(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "fuel.db")

	// GIVEN: a stored budget
	st, err := sqlite.New(db)
	require.NoError(t, err)
	reg, err := fuelcost.DefaultRegistry()
	require.NoError(t, err)
	_, err = engine.NewScenarioManager(reg, st).Create(ctx, engine.CreateRequest{
		ID: "budget", Type: engine.ScenarioBudget, AsOf: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// WHEN: projecting two years as a single total
	out, err := run(t, "project", "--db", db, "--scenario", "budget", "--years", "2", "--rollup", "total", "--json")
	require.NoError(t, err)

	// THEN: one summary covering 24 months
	var rows []fuelcost.CostSummary
	require.NoError(t, json.Unmarshal([]byte(out), &rows), out)
	require.Len(t, rows, 1)
	assert.Equal(t, 24, rows[0].Periods)
	assert.Equal(t, engine.Monthly(2026, time.December), rows[0].To)

	out, err = run(t, "project", "--db", db, "--scenario", "budget", "--rollup", "annual")
	require.NoError(t, err)
	assert.Contains(t, out, "coal_procurement")
	assert.Contains(t, out, "2025")

	_, err = run(t, "project", "--db", db, "--scenario", "ghost")
	assert.Error(t, err)
	_, err = run(t, "project", "--db", db, "--scenario", "budget", "--rollup", "weekly")
	assert.Error(t, err)
}
