/*
scenario.go - Scenario lifecycle: create, clone, roll-forward, lock

PURPOSE:
  A scenario is a named, versioned set of driver overrides. The manager is
  the only component that writes scenarios or overrides, and it enforces the
  two write locks:

    Scenario lock:  UNLOCKED → LOCKED, one way, set by Lock
    Period freeze:  EDITABLE → ROLLED_FORWARD_LOCKED, set by RollForward for
                    every period strictly before the new as-of month

LINEAGE:
  Clone and RollForward record the source id on the new scenario. Lineage is a
  plain identifier used for audit and display. Deleting a scenario never
  touches its ancestors or descendants.

WRITE DISCIPLINE:
  Every write runs inside Store.WithTx. Stores serialize transactions, so a
  SetOverride can never interleave with a Lock on the same scenario.

AUDIT:
  Each lifecycle event and override change appends an AuditEntry. History
  reads them back, optionally filtered by driver.

SEE ALSO:
  - store.go: Persistence interfaces
  - interchange.go: Driver-set import/export
*/
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// SCENARIO
// =============================================================================

// LineageKind says how a scenario was derived from its lineage source.
type LineageKind string

const (
	LineageNone          LineageKind = ""
	LineageCloned        LineageKind = "cloned"
	LineageRolledForward LineageKind = "rolled_forward"
)

// Scenario is one forecast version.
type Scenario struct {
	ID          ScenarioID
	Name        string
	Type        ScenarioType
	Lineage     *ScenarioID
	LineageKind LineageKind
	Locked      bool

	// AsOf is the first day of the month before which values are actuals.
	AsOf time.Time

	// FrozenBefore is set by roll-forward. Periods ending before it reject
	// writes. Zero for scenarios created fresh or cloned.
	FrozenBefore Period

	CreatedAt time.Time
	LockedAt  *time.Time
}

// IsFrozen reports whether writes to p are refused by roll-forward.
func (s Scenario) IsFrozen(p Period) bool {
	return IsFrozen(p, s.FrozenBefore)
}

// =============================================================================
// SCENARIO MANAGER
// =============================================================================

// ScenarioManager governs scenario versions and their overrides.
type ScenarioManager struct {
	Registry *Registry
	Store    Store
	Logger   *zerolog.Logger

	// NewID and Now are replaceable for deterministic tests.
	NewID func() ScenarioID
	Now   func() time.Time
}

func NewScenarioManager(reg *Registry, store Store) *ScenarioManager {
	return &ScenarioManager{
		Registry: reg,
		Store:    store,
		NewID:    func() ScenarioID { return ScenarioID(uuid.NewString()) },
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *ScenarioManager) log() *zerolog.Logger {
	if m.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return m.Logger
}

// CreateRequest describes a scenario started fresh.
type CreateRequest struct {
	ID   ScenarioID // optional; generated when empty
	Name string
	Type ScenarioType
	AsOf time.Time
}

// Create starts a scenario with no overrides.
func (m *ScenarioManager) Create(ctx context.Context, req CreateRequest) (Scenario, error) {
	if !req.Type.Valid() {
		return Scenario{}, fmt.Errorf("%w %q", ErrUnknownType, req.Type)
	}
	if req.AsOf.IsZero() {
		return Scenario{}, fmt.Errorf("%w: as-of date is required", ErrInvalidPeriod)
	}
	id := req.ID
	if id == "" {
		id = m.NewID()
	}
	s := Scenario{
		ID:        id,
		Name:      req.Name,
		Type:      req.Type,
		AsOf:      NewCalendar(req.AsOf).AsOf,
		CreatedAt: m.Now(),
	}
	if s.Name == "" {
		s.Name = string(id)
	}

	err := m.Store.WithTx(ctx, func(tx Store) error {
		if _, err := tx.GetScenario(ctx, id); err == nil {
			return fmt.Errorf("%w: %q", ErrScenarioExists, id)
		} else if !isNotFound(err) {
			return err
		}
		if err := tx.CreateScenario(ctx, s); err != nil {
			return err
		}
		return m.audit(ctx, tx, AuditEntry{ScenarioID: id, Action: AuditScenarioCreated,
			Detail: fmt.Sprintf("type=%s as_of=%s", s.Type, MonthOf(s.AsOf))})
	})
	if err != nil {
		return Scenario{}, err
	}

	m.log().Info().Str("scenario", string(id)).Str("type", string(s.Type)).Msg("scenario created")
	return s, nil
}

// Clone deep-copies every override of src into a new unlocked scenario of
// type newType. Sources are kept as they are, so frozen actuals copied from a
// rolled-forward scenario stay marked rolled_forward, but the clone itself
// has no frozen periods.
func (m *ScenarioManager) Clone(ctx context.Context, src ScenarioID, newType ScenarioType) (Scenario, error) {
	if !newType.Valid() {
		return Scenario{}, fmt.Errorf("%w %q", ErrUnknownType, newType)
	}

	var out Scenario
	err := m.Store.WithTx(ctx, func(tx Store) error {
		source, err := lookupScenario(ctx, tx, src)
		if err != nil {
			return err
		}
		out = m.derive(source, newType, LineageCloned, source.AsOf)
		out.Name = source.Name + " (copy)"

		n, err := m.copyValues(ctx, tx, source, out, func(v DriverValue) ([]DriverValue, error) {
			return []DriverValue{v}, nil
		})
		if err != nil {
			return err
		}
		return m.audit(ctx, tx, AuditEntry{ScenarioID: out.ID, Action: AuditScenarioCloned,
			Detail: fmt.Sprintf("from=%s values=%d", src, n)})
	})
	if err != nil {
		return Scenario{}, err
	}

	m.log().Info().Str("scenario", string(out.ID)).Str("source", string(src)).Msg("scenario cloned")
	return out, nil
}

// RollForward copies src into a new scenario anchored at asOf. Every period
// strictly before the as-of month is frozen: copied rows for those periods
// become rolled_forward and later writes fail with LockedPeriodError.
//
// Moving the as-of date moves the monthly window. An annual row whose year
// is now inside the window is copied to each of its twelve months, unless
// the source already holds that month. A monthly row past the new window
// fails the roll-forward with GranularityError.
func (m *ScenarioManager) RollForward(ctx context.Context, src ScenarioID, asOf time.Time) (Scenario, error) {
	if asOf.IsZero() {
		return Scenario{}, fmt.Errorf("%w: as-of date is required", ErrInvalidPeriod)
	}
	cal := NewCalendar(asOf)

	var out Scenario
	err := m.Store.WithTx(ctx, func(tx Store) error {
		source, err := lookupScenario(ctx, tx, src)
		if err != nil {
			return err
		}
		out = m.derive(source, source.Type, LineageRolledForward, cal.AsOf)
		out.FrozenBefore = cal.AsOfPeriod()
		out.Name = fmt.Sprintf("%s (rolled forward %s)", source.Name, out.FrozenBefore)

		n, err := m.copyValues(ctx, tx, source, out, func(v DriverValue) ([]DriverValue, error) {
			rows, err := rebucket(cal, out.ID, v)
			if err != nil {
				return nil, err
			}
			for i := range rows {
				if out.IsFrozen(rows[i].Period) {
					rows[i].Source = SourceRolledForward
				}
			}
			return rows, nil
		})
		if err != nil {
			return err
		}
		return m.audit(ctx, tx, AuditEntry{ScenarioID: out.ID, Action: AuditScenarioRolled,
			Detail: fmt.Sprintf("from=%s frozen_before=%s values=%d", src, out.FrozenBefore, n)})
	})
	if err != nil {
		return Scenario{}, err
	}

	m.log().Info().
		Str("scenario", string(out.ID)).
		Str("source", string(src)).
		Str("frozen_before", out.FrozenBefore.String()).
		Msg("scenario rolled forward")
	return out, nil
}

func (m *ScenarioManager) derive(source Scenario, typ ScenarioType, kind LineageKind, asOf time.Time) Scenario {
	parent := source.ID
	return Scenario{
		ID:          m.NewID(),
		Type:        typ,
		Lineage:     &parent,
		LineageKind: kind,
		AsOf:        asOf,
		CreatedAt:   m.Now(),
	}
}

// copyValues creates dst and copies the overrides of src into it, passing
// each through adapt. Rows are new values owned by dst, never shared with
// src. A row stored by src for a period wins over one produced by adapt from
// another row.
func (m *ScenarioManager) copyValues(ctx context.Context, tx Store, src, dst Scenario, adapt func(DriverValue) ([]DriverValue, error)) (int, error) {
	if err := tx.CreateScenario(ctx, dst); err != nil {
		return 0, err
	}
	rows, err := tx.ScenarioValues(ctx, src.ID)
	if err != nil {
		return 0, fmt.Errorf("load values of %s: %w", src.ID, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	type key struct {
		d DriverName
		p Period
	}
	stored := make(map[key]bool, len(rows))
	for _, row := range rows {
		stored[key{row.Driver, row.Period}] = true
	}

	now := m.Now()
	seen := make(map[key]bool, len(rows))
	copied := make([]DriverValue, 0, len(rows))
	for _, row := range rows {
		adapted, err := adapt(row)
		if err != nil {
			return 0, err
		}
		for _, a := range adapted {
			k := key{a.Driver, a.Period}
			if seen[k] || (a.Period != row.Period && stored[k]) {
				continue
			}
			seen[k] = true
			copied = append(copied, DriverValue{
				ScenarioID: dst.ID,
				Driver:     a.Driver,
				Period:     a.Period,
				Value:      a.Value,
				Source:     a.Source,
				UpdatedAt:  now,
			})
		}
	}
	if len(copied) == 0 {
		return 0, nil
	}
	if err := tx.PutValues(ctx, copied); err != nil {
		return 0, err
	}
	return len(copied), nil
}

// rebucket maps a stored row onto the periods cal uses for it.
func rebucket(cal Calendar, id ScenarioID, v DriverValue) ([]DriverValue, error) {
	b := cal.Bucket(v.Period)
	if b == v.Period {
		return []DriverValue{v}, nil
	}
	if v.Period.IsMonthly() {
		return nil, &GranularityError{ScenarioID: id, Driver: v.Driver, Period: v.Period, Bucket: b}
	}
	out := make([]DriverValue, 0, 12)
	for month := time.January; month <= time.December; month++ {
		row := v
		row.Period = Monthly(v.Period.Year, month)
		out = append(out, row)
	}
	return out, nil
}

// Lock makes a scenario read-only. Locking is permanent; locking a locked
// scenario returns it unchanged.
func (m *ScenarioManager) Lock(ctx context.Context, id ScenarioID) (Scenario, error) {
	var out Scenario
	err := m.Store.WithTx(ctx, func(tx Store) error {
		s, err := lookupScenario(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.Locked {
			out = s
			return nil
		}
		now := m.Now()
		s.Locked = true
		s.LockedAt = &now
		if err := tx.UpdateScenario(ctx, s); err != nil {
			return err
		}
		out = s
		return m.audit(ctx, tx, AuditEntry{ScenarioID: id, Action: AuditScenarioLocked})
	})
	if err != nil {
		return Scenario{}, err
	}

	m.log().Info().Str("scenario", string(id)).Msg("scenario locked")
	return out, nil
}

// SetOverride writes one override. Fails with UnknownScenarioError,
// ScenarioLockedError, UnknownDriverError, LockedPeriodError or
// TypeMismatchError, checked in that order.
func (m *ScenarioManager) SetOverride(ctx context.Context, id ScenarioID, driver DriverName, p Period, v Value) (DriverValue, error) {
	row := DriverValue{ScenarioID: id, Driver: driver, Period: p, Value: v, Source: SourceOverride}
	err := m.Store.WithTx(ctx, func(tx Store) error {
		s, err := m.writable(ctx, tx, id, driver, p)
		if err != nil {
			return err
		}
		d, _ := m.Registry.lookup(driver)
		if err := d.CheckValue(v); err != nil {
			mismatch := err.(*TypeMismatchError)
			mismatch.ScenarioID = s.ID
			mismatch.Period = p
			return mismatch
		}

		old, err := currentValue(ctx, tx, id, driver, p)
		if err != nil {
			return err
		}
		row.UpdatedAt = m.Now()
		if err := tx.PutValues(ctx, []DriverValue{row}); err != nil {
			return err
		}
		nv := v
		return m.audit(ctx, tx, AuditEntry{ScenarioID: id, Action: AuditOverrideSet,
			Driver: driver, Period: p, OldValue: old, NewValue: &nv})
	})
	if err != nil {
		return DriverValue{}, err
	}

	m.log().Debug().
		Str("scenario", string(id)).
		Str("driver", string(driver)).
		Str("period", p.String()).
		Str("value", v.String()).
		Msg("override set")
	return row, nil
}

// ClearOverride removes one override so the driver falls back to its
// formula, escalation or default. The same locks as SetOverride apply.
func (m *ScenarioManager) ClearOverride(ctx context.Context, id ScenarioID, driver DriverName, p Period) error {
	return m.Store.WithTx(ctx, func(tx Store) error {
		if _, err := m.writable(ctx, tx, id, driver, p); err != nil {
			return err
		}
		old, err := currentValue(ctx, tx, id, driver, p)
		if err != nil {
			return err
		}
		if old == nil {
			return nil
		}
		if err := tx.DeleteValue(ctx, id, driver, p); err != nil {
			return err
		}
		return m.audit(ctx, tx, AuditEntry{ScenarioID: id, Action: AuditOverrideCleared,
			Driver: driver, Period: p, OldValue: old})
	})
}

// writable runs the lock checks shared by every override write.
func (m *ScenarioManager) writable(ctx context.Context, tx Store, id ScenarioID, driver DriverName, p Period) (Scenario, error) {
	s, err := lookupScenario(ctx, tx, id)
	if err != nil {
		return Scenario{}, err
	}
	if s.Locked {
		return Scenario{}, &ScenarioLockedError{ScenarioID: id}
	}
	if !m.Registry.Has(driver) {
		return Scenario{}, &UnknownDriverError{Driver: driver}
	}
	if p.IsZero() || !p.Valid() {
		return Scenario{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	if s.IsFrozen(p) {
		return Scenario{}, &LockedPeriodError{ScenarioID: id, Driver: driver, Period: p, FrozenBefore: s.FrozenBefore}
	}
	if b := NewCalendar(s.AsOf).Bucket(p); b != p {
		return Scenario{}, &GranularityError{ScenarioID: id, Driver: driver, Period: p, Bucket: b}
	}
	return s, nil
}

func currentValue(ctx context.Context, tx ValueStore, id ScenarioID, driver DriverName, p Period) (*Value, error) {
	rows, err := tx.Overrides(ctx, id, p)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.Driver == driver {
			v := row.Value
			return &v, nil
		}
	}
	return nil, nil
}

// Delete removes a scenario and every override it owns. Locked scenarios are
// permanent versions and cannot be deleted.
func (m *ScenarioManager) Delete(ctx context.Context, id ScenarioID) error {
	err := m.Store.WithTx(ctx, func(tx Store) error {
		s, err := lookupScenario(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.Locked {
			return &ScenarioLockedError{ScenarioID: id}
		}
		if err := tx.DeleteScenarioValues(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteScenario(ctx, id); err != nil {
			return err
		}
		return m.audit(ctx, tx, AuditEntry{ScenarioID: id, Action: AuditScenarioDeleted})
	})
	if err != nil {
		return err
	}
	m.log().Info().Str("scenario", string(id)).Msg("scenario deleted")
	return nil
}

func (m *ScenarioManager) Get(ctx context.Context, id ScenarioID) (Scenario, error) {
	return lookupScenario(ctx, m.Store, id)
}

// List returns every scenario, oldest first.
func (m *ScenarioManager) List(ctx context.Context) ([]Scenario, error) {
	list, err := m.Store.ListScenarios(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

// Overrides returns the stored overrides of a scenario.
func (m *ScenarioManager) Overrides(ctx context.Context, id ScenarioID) ([]DriverValue, error) {
	if _, err := lookupScenario(ctx, m.Store, id); err != nil {
		return nil, err
	}
	return m.Store.ScenarioValues(ctx, id)
}

// Lineage returns the scenario followed by its ancestors, nearest first. The
// walk stops quietly at an ancestor that has since been deleted.
func (m *ScenarioManager) Lineage(ctx context.Context, id ScenarioID) ([]Scenario, error) {
	s, err := lookupScenario(ctx, m.Store, id)
	if err != nil {
		return nil, err
	}
	chain := []Scenario{s}
	seen := map[ScenarioID]bool{id: true}
	for s.Lineage != nil && !seen[*s.Lineage] {
		parent, err := m.Store.GetScenario(ctx, *s.Lineage)
		if err != nil {
			if isNotFound(err) {
				break
			}
			return nil, err
		}
		seen[parent.ID] = true
		chain = append(chain, parent)
		s = parent
	}
	return chain, nil
}

// History returns the audit trail of a scenario, oldest first. A non-empty
// driver restricts it to that driver's override changes.
func (m *ScenarioManager) History(ctx context.Context, id ScenarioID, driver DriverName) ([]AuditEntry, error) {
	entries, err := m.Store.Audit(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		if _, err := lookupScenario(ctx, m.Store, id); err != nil {
			return nil, err
		}
	}
	if driver == "" {
		return entries, nil
	}
	var out []AuditEntry
	for _, e := range entries {
		if e.Driver == driver {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *ScenarioManager) audit(ctx context.Context, tx AuditLog, e AuditEntry) error {
	e.ID = uuid.NewString()
	e.Timestamp = m.Now()
	return tx.AppendAudit(ctx, e)
}

// =============================================================================
// COMPARISON
// =============================================================================

type DiffStatus string

const (
	DiffSame      DiffStatus = "same"
	DiffDifferent DiffStatus = "different"
	DiffOnlyInA   DiffStatus = "only_in_a"
	DiffOnlyInB   DiffStatus = "only_in_b"
)

// DiffEntry compares one (driver, period) override between two scenarios.
type DiffEntry struct {
	Driver DriverName
	Period Period
	A      *Value
	B      *Value
	Status DiffStatus
}

// Comparison is the override-level difference of two scenarios.
type Comparison struct {
	A       ScenarioID
	B       ScenarioID
	Entries []DiffEntry
	Counts  map[DiffStatus]int
}

// Compare lines up the stored overrides of a and b, ordered by driver
// registration then period.
func (m *ScenarioManager) Compare(ctx context.Context, a, b ScenarioID) (*Comparison, error) {
	rowsA, err := m.Overrides(ctx, a)
	if err != nil {
		return nil, err
	}
	rowsB, err := m.Overrides(ctx, b)
	if err != nil {
		return nil, err
	}

	type key struct {
		d DriverName
		p Period
	}
	index := make(map[key]*DiffEntry)
	var keys []key
	for _, r := range rowsA {
		k := key{r.Driver, r.Period}
		v := r.Value
		index[k] = &DiffEntry{Driver: r.Driver, Period: r.Period, A: &v, Status: DiffOnlyInA}
		keys = append(keys, k)
	}
	for _, r := range rowsB {
		k := key{r.Driver, r.Period}
		v := r.Value
		if e, ok := index[k]; ok {
			e.B = &v
			if e.A.Equal(v) {
				e.Status = DiffSame
			} else {
				e.Status = DiffDifferent
			}
			continue
		}
		index[k] = &DiffEntry{Driver: r.Driver, Period: r.Period, B: &v, Status: DiffOnlyInB}
		keys = append(keys, k)
	}

	rank := make(map[DriverName]int, m.Registry.Len())
	for i, d := range m.Registry.drivers {
		rank[d.Name] = i
	}
	sort.SliceStable(keys, func(i, j int) bool {
		ri, rj := rank[keys[i].d], rank[keys[j].d]
		if ri != rj {
			return ri < rj
		}
		if keys[i].d != keys[j].d {
			return keys[i].d < keys[j].d
		}
		return keys[i].p.Before(keys[j].p)
	})

	out := &Comparison{A: a, B: b, Counts: make(map[DiffStatus]int)}
	for _, k := range keys {
		e := index[k]
		out.Entries = append(out.Entries, *e)
		out.Counts[e.Status]++
	}
	return out, nil
}
