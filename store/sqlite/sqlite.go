/*
Package sqlite provides a SQLite-backed implementation of engine.Store.

PURPOSE:
  Persists scenarios, driver overrides and the audit log. Only overrides are
  stored: evaluated values are always recomputed from the registry, so the
  database never holds a stale calculated number.

INTERFACES IMPLEMENTED:
  engine.ValueStore:    Override rows keyed by (scenario, driver, period)
  engine.ScenarioStore: Scenario metadata, lock state, lineage
  engine.AuditLog:      Append-only change history
  engine.Store:         All of the above plus WithTx

KEY TABLES:
  scenarios:      One row per forecast version
  driver_values:  Overrides; decimals stored as exact text
  audit_log:      Lifecycle and override events, kept after deletes

INDEXES:
  - idx_driver_values_scenario_period: Evaluation reads one period (hot path)
  - idx_audit_log_scenario: History in append order

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction, so engine-level check-then-write sequences (lock state,
  frozen periods) cannot interleave.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on.
  ":memory:" databases are pinned to one connection, since every new
  connection would otherwise see an empty database.

MIGRATION:
  Versioned migrations are embedded from migrations/ and applied with
  golang-migrate on New().

USAGE:
  st, err := sqlite.New("./data/fuel.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  mgr := engine.NewScenarioManager(reg, st)

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlite3migrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/fuel-engine/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeLayout = time.RFC3339Nano

// Store implements engine.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
	q  queries
}

var _ engine.Store = (*Store)(nil)

// New opens the database at dbPath and migrates it to the latest schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db, q: queries{db: db}}, nil
}

// migrateUp applies every embedded migration. The migrate instance is not
// closed because that would close db.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	drv, err := sqlite3migrate.WithInstance(db, &sqlite3migrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// VALUE STORE (engine.ValueStore interface)
// =============================================================================

func (s *Store) Overrides(ctx context.Context, id engine.ScenarioID, p engine.Period) ([]engine.DriverValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.Overrides(ctx, id, p)
}

func (s *Store) ScenarioValues(ctx context.Context, id engine.ScenarioID) ([]engine.DriverValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ScenarioValues(ctx, id)
}

// PutValues upserts rows atomically.
func (s *Store) PutValues(ctx context.Context, values []engine.DriverValue) error {
	return s.WithTx(ctx, func(tx engine.Store) error {
		return tx.PutValues(ctx, values)
	})
}

func (s *Store) DeleteValue(ctx context.Context, id engine.ScenarioID, driver engine.DriverName, p engine.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeleteValue(ctx, id, driver, p)
}

func (s *Store) DeleteScenarioValues(ctx context.Context, id engine.ScenarioID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeleteScenarioValues(ctx, id)
}

// =============================================================================
// SCENARIO STORE (engine.ScenarioStore interface)
// =============================================================================

func (s *Store) CreateScenario(ctx context.Context, sc engine.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.CreateScenario(ctx, sc)
}

func (s *Store) GetScenario(ctx context.Context, id engine.ScenarioID) (engine.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetScenario(ctx, id)
}

func (s *Store) UpdateScenario(ctx context.Context, sc engine.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.UpdateScenario(ctx, sc)
}

func (s *Store) DeleteScenario(ctx context.Context, id engine.ScenarioID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.DeleteScenario(ctx, id)
}

func (s *Store) ListScenarios(ctx context.Context) ([]engine.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListScenarios(ctx)
}

// =============================================================================
// AUDIT LOG (engine.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e engine.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.AppendAudit(ctx, e)
}

func (s *Store) Audit(ctx context.Context, id engine.ScenarioID) ([]engine.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.Audit(ctx, id)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes fn within a database transaction. fn's error rolls every
// write back.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries{db: sqlTx}}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore runs every call on the open transaction.
type txStore struct {
	queries
}

// Nested transactions run inline in the outer one.
func (ts *txStore) WithTx(_ context.Context, fn func(engine.Store) error) error {
	return fn(ts)
}

// =============================================================================
// QUERIES
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the SQL, shared by the Store and its transactions.
type queries struct {
	db dbtx
}

const valueColumns = `scenario_id, driver, period, value, source, updated_at`

func (q queries) Overrides(ctx context.Context, id engine.ScenarioID, p engine.Period) ([]engine.DriverValue, error) {
	return q.queryValues(ctx,
		`SELECT `+valueColumns+` FROM driver_values WHERE scenario_id = ? AND period = ?`,
		string(id), p.String())
}

func (q queries) ScenarioValues(ctx context.Context, id engine.ScenarioID) ([]engine.DriverValue, error) {
	return q.queryValues(ctx,
		`SELECT `+valueColumns+` FROM driver_values WHERE scenario_id = ?`,
		string(id))
}

func (q queries) PutValues(ctx context.Context, values []engine.DriverValue) error {
	query := `
		INSERT INTO driver_values (` + valueColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (scenario_id, driver, period) DO UPDATE SET
			value = excluded.value,
			source = excluded.source,
			updated_at = excluded.updated_at
	`
	for _, v := range values {
		_, err := q.db.ExecContext(ctx, query,
			string(v.ScenarioID),
			string(v.Driver),
			v.Period.String(),
			v.Value.String(),
			string(v.Source),
			v.UpdatedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("failed to store %s %s: %w", v.Driver, v.Period, err)
		}
	}
	return nil
}

func (q queries) DeleteValue(ctx context.Context, id engine.ScenarioID, driver engine.DriverName, p engine.Period) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM driver_values WHERE scenario_id = ? AND driver = ? AND period = ?`,
		string(id), string(driver), p.String())
	return err
}

func (q queries) DeleteScenarioValues(ctx context.Context, id engine.ScenarioID) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM driver_values WHERE scenario_id = ?`, string(id))
	return err
}

func (q queries) queryValues(ctx context.Context, query string, args ...any) ([]engine.DriverValue, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query driver values: %w", err)
	}
	defer rows.Close()

	var out []engine.DriverValue
	for rows.Next() {
		var (
			v                                   engine.DriverValue
			id, driver, period, value, src, upd string
		)
		if err := rows.Scan(&id, &driver, &period, &value, &src, &upd); err != nil {
			return nil, err
		}
		v.ScenarioID = engine.ScenarioID(id)
		v.Driver = engine.DriverName(driver)
		v.Source = engine.Source(src)
		if v.Period, err = engine.ParsePeriod(period); err != nil {
			return nil, fmt.Errorf("stored period %q: %w", period, err)
		}
		if v.Value, err = engine.ParseValue(value); err != nil {
			return nil, fmt.Errorf("stored value %q: %w", value, err)
		}
		if v.UpdatedAt, err = time.Parse(timeLayout, upd); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Driver != out[j].Driver {
			return out[i].Driver < out[j].Driver
		}
		return out[i].Period.Before(out[j].Period)
	})
	return out, nil
}

const scenarioColumns = `id, name, type, lineage, lineage_kind, locked, as_of, frozen_before, created_at, locked_at`

func (q queries) CreateScenario(ctx context.Context, s engine.Scenario) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO scenarios (`+scenarioColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scenarioArgs(s)...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %q", engine.ErrScenarioExists, s.ID)
		}
		return fmt.Errorf("failed to create scenario: %w", err)
	}
	return nil
}

func (q queries) GetScenario(ctx context.Context, id engine.ScenarioID) (engine.Scenario, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+scenarioColumns+` FROM scenarios WHERE id = ?`, string(id))
	if err != nil {
		return engine.Scenario{}, fmt.Errorf("failed to query scenario: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return engine.Scenario{}, err
		}
		return engine.Scenario{}, engine.ErrNotFound
	}
	return scanScenario(rows)
}

func (q queries) UpdateScenario(ctx context.Context, s engine.Scenario) error {
	args := scenarioArgs(s)
	res, err := q.db.ExecContext(ctx, `
		UPDATE scenarios SET name = ?, type = ?, lineage = ?, lineage_kind = ?, locked = ?,
			as_of = ?, frozen_before = ?, created_at = ?, locked_at = ?
		WHERE id = ?`,
		append(args[1:], args[0])...)
	if err != nil {
		return fmt.Errorf("failed to update scenario: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func (q queries) DeleteScenario(ctx context.Context, id engine.ScenarioID) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM scenarios WHERE id = ?`, string(id))
	return err
}

func (q queries) ListScenarios(ctx context.Context) ([]engine.Scenario, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+scenarioColumns+` FROM scenarios ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	var out []engine.Scenario
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scenarioArgs(s engine.Scenario) []any {
	var lineage sql.NullString
	if s.Lineage != nil {
		lineage = nullString(string(*s.Lineage))
	}
	var frozen sql.NullString
	if !s.FrozenBefore.IsZero() {
		frozen = nullString(s.FrozenBefore.String())
	}
	var lockedAt sql.NullString
	if s.LockedAt != nil {
		lockedAt = nullString(s.LockedAt.UTC().Format(timeLayout))
	}
	return []any{
		string(s.ID),
		s.Name,
		string(s.Type),
		lineage,
		nullString(string(s.LineageKind)),
		s.Locked,
		s.AsOf.UTC().Format(timeLayout),
		frozen,
		s.CreatedAt.UTC().Format(timeLayout),
		lockedAt,
	}
}

func scanScenario(rows *sql.Rows) (engine.Scenario, error) {
	var (
		s                               engine.Scenario
		id, name, typ, asOf, createdAt  string
		lineage, kind, frozen, lockedAt sql.NullString
	)
	if err := rows.Scan(&id, &name, &typ, &lineage, &kind, &s.Locked, &asOf, &frozen, &createdAt, &lockedAt); err != nil {
		return s, err
	}
	s.ID = engine.ScenarioID(id)
	s.Name = name
	s.Type = engine.ScenarioType(typ)
	s.LineageKind = engine.LineageKind(kind.String)
	if lineage.Valid {
		parent := engine.ScenarioID(lineage.String)
		s.Lineage = &parent
	}

	var err error
	if s.AsOf, err = time.Parse(timeLayout, asOf); err != nil {
		return s, err
	}
	if s.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return s, err
	}
	if frozen.Valid {
		if s.FrozenBefore, err = engine.ParsePeriod(frozen.String); err != nil {
			return s, err
		}
	}
	if lockedAt.Valid {
		t, err := time.Parse(timeLayout, lockedAt.String)
		if err != nil {
			return s, err
		}
		s.LockedAt = &t
	}
	return s, nil
}

func (q queries) AppendAudit(ctx context.Context, e engine.AuditEntry) error {
	var period sql.NullString
	if !e.Period.IsZero() {
		period = nullString(e.Period.String())
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, ts, scenario_id, action, driver, period, old_value, new_value, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Timestamp.UTC().Format(timeLayout),
		string(e.ScenarioID),
		string(e.Action),
		nullString(string(e.Driver)),
		period,
		nullValue(e.OldValue),
		nullValue(e.NewValue),
		nullString(e.Detail),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (q queries) Audit(ctx context.Context, id engine.ScenarioID) ([]engine.AuditEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, ts, scenario_id, action, driver, period, old_value, new_value, detail
		FROM audit_log WHERE scenario_id = ? ORDER BY seq ASC`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	out := []engine.AuditEntry{}
	for rows.Next() {
		var (
			e                                  engine.AuditEntry
			ts, scenario, action               string
			driver, period, oldV, newV, detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &scenario, &action, &driver, &period, &oldV, &newV, &detail); err != nil {
			return nil, err
		}
		e.ScenarioID = engine.ScenarioID(scenario)
		e.Action = engine.AuditAction(action)
		e.Driver = engine.DriverName(driver.String)
		e.Detail = detail.String
		if e.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, err
		}
		if period.Valid {
			if e.Period, err = engine.ParsePeriod(period.String); err != nil {
				return nil, err
			}
		}
		if e.OldValue, err = parseNullValue(oldV); err != nil {
			return nil, err
		}
		if e.NewValue, err = parseNullValue(newV); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullValue(v *engine.Value) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

func parseNullValue(s sql.NullString) (*engine.Value, error) {
	if !s.Valid {
		return nil, nil
	}
	v, err := engine.ParseValue(s.String)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}
