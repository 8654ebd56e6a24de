/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  The engine never assumes a storage technology. It reads overrides and
  scenarios through these interfaces and treats every call as a synchronous
  boundary: it neither manages connections nor retries.

KEY INTERFACES:
  ValueStore:    Per-scenario, per-period driver overrides
  ScenarioStore: Scenario records and lineage lookup
  AuditLog:      Append-only history of lifecycle events and value changes
  Store:         All three plus WithTx for atomic multi-row writes

WRITE DISCIPLINE:
  set-override, lock and roll-forward must run with at most one writer per
  scenario, otherwise a write could race a lock. The engine expresses this
  by running those operations inside Store.WithTx; implementations serialize
  transactions (memory: mutex, sqlite: single writer connection).

IMPLEMENTATIONS:
  - engine/store/memory.go: In-memory for tests and dev
  - store/sqlite/sqlite.go: SQLite with versioned migrations

SEE ALSO:
  - scenario.go: The only writer
  - evaluator.go: Reads through ValueStore
*/
package engine

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores for missing rows. The engine converts it
// to the structured error of the operation.
var ErrNotFound = errors.New("not found")

// =============================================================================
// DRIVER VALUE (override)
// =============================================================================

// DriverValue is one stored override. (ScenarioID, Driver, Period) is unique.
type DriverValue struct {
	ScenarioID ScenarioID
	Driver     DriverName
	Period     Period
	Value      Value
	Source     Source
	UpdatedAt  time.Time
}

// ValueStore handles per-scenario override rows.
type ValueStore interface {
	// Overrides returns every override of a scenario for exactly one period.
	Overrides(ctx context.Context, id ScenarioID, p Period) ([]DriverValue, error)

	// ScenarioValues returns every override of a scenario ordered by
	// (driver, period).
	ScenarioValues(ctx context.Context, id ScenarioID) ([]DriverValue, error)

	// PutValues upserts rows atomically.
	PutValues(ctx context.Context, values []DriverValue) error

	// DeleteValue removes one override. Missing rows are not an error.
	DeleteValue(ctx context.Context, id ScenarioID, driver DriverName, p Period) error

	// DeleteScenarioValues removes every override owned by a scenario.
	DeleteScenarioValues(ctx context.Context, id ScenarioID) error
}

// ScenarioStore handles scenario rows. Lineage is an id, never a join.
type ScenarioStore interface {
	CreateScenario(ctx context.Context, s Scenario) error
	// GetScenario returns ErrNotFound for unknown ids.
	GetScenario(ctx context.Context, id ScenarioID) (Scenario, error)
	UpdateScenario(ctx context.Context, s Scenario) error
	DeleteScenario(ctx context.Context, id ScenarioID) error
	ListScenarios(ctx context.Context) ([]Scenario, error)
}

// =============================================================================
// AUDIT LOG - Separate from values, tracks who did what when
// =============================================================================

type AuditAction string

const (
	AuditScenarioCreated AuditAction = "scenario_created"
	AuditScenarioCloned  AuditAction = "scenario_cloned"
	AuditScenarioRolled  AuditAction = "scenario_rolled_forward"
	AuditScenarioLocked  AuditAction = "scenario_locked"
	AuditScenarioDeleted AuditAction = "scenario_deleted"
	AuditOverrideSet     AuditAction = "override_set"
	AuditOverrideCleared AuditAction = "override_cleared"
	AuditDriverSetImport AuditAction = "driver_set_imported"
)

// AuditEntry records one change. Value fields are set for override changes.
type AuditEntry struct {
	ID         string
	Timestamp  time.Time
	ScenarioID ScenarioID
	Action     AuditAction
	Driver     DriverName
	Period     Period
	OldValue   *Value
	NewValue   *Value
	Detail     string
}

// AuditLog is append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	// Audit returns a scenario's entries oldest first.
	Audit(ctx context.Context, id ScenarioID) ([]AuditEntry, error)
}

// =============================================================================
// STORE - Everything the scenario manager writes through
// =============================================================================

// Store combines the persistence interfaces with transaction support.
type Store interface {
	ValueStore
	ScenarioStore
	AuditLog

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back. Transactions are serialized.
	WithTx(ctx context.Context, fn func(Store) error) error
}
