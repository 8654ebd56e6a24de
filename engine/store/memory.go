// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/fuel-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	scenarios map[engine.ScenarioID]engine.Scenario
	values    map[engine.ScenarioID]map[valueKey]engine.DriverValue
	audit     map[engine.ScenarioID][]engine.AuditEntry
}

type valueKey struct {
	Driver engine.DriverName
	Period engine.Period
}

var _ engine.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		scenarios: make(map[engine.ScenarioID]engine.Scenario),
		values:    make(map[engine.ScenarioID]map[valueKey]engine.DriverValue),
		audit:     make(map[engine.ScenarioID][]engine.AuditEntry),
	}
}

// =============================================================================
// VALUES
// =============================================================================

func (m *Memory) Overrides(_ context.Context, id engine.ScenarioID, p engine.Period) ([]engine.DriverValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overridesLocked(id, p), nil
}

func (m *Memory) overridesLocked(id engine.ScenarioID, p engine.Period) []engine.DriverValue {
	var out []engine.DriverValue
	for k, v := range m.values[id] {
		if k.Period == p {
			out = append(out, v)
		}
	}
	sortValues(out)
	return out
}

func (m *Memory) ScenarioValues(_ context.Context, id engine.ScenarioID) ([]engine.DriverValue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scenarioValuesLocked(id), nil
}

func (m *Memory) scenarioValuesLocked(id engine.ScenarioID) []engine.DriverValue {
	out := make([]engine.DriverValue, 0, len(m.values[id]))
	for _, v := range m.values[id] {
		out = append(out, v)
	}
	sortValues(out)
	return out
}

// PutValues upserts rows atomically.
func (m *Memory) PutValues(_ context.Context, values []engine.DriverValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(values)
	return nil
}

func (m *Memory) putLocked(values []engine.DriverValue) {
	for _, v := range values {
		byKey := m.values[v.ScenarioID]
		if byKey == nil {
			byKey = make(map[valueKey]engine.DriverValue)
			m.values[v.ScenarioID] = byKey
		}
		byKey[valueKey{Driver: v.Driver, Period: v.Period}] = v
	}
}

func (m *Memory) DeleteValue(_ context.Context, id engine.ScenarioID, driver engine.DriverName, p engine.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values[id], valueKey{Driver: driver, Period: p})
	return nil
}

func (m *Memory) DeleteScenarioValues(_ context.Context, id engine.ScenarioID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, id)
	return nil
}

func sortValues(vs []engine.DriverValue) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].Driver != vs[j].Driver {
			return vs[i].Driver < vs[j].Driver
		}
		return vs[i].Period.Before(vs[j].Period)
	})
}

// =============================================================================
// SCENARIOS
// =============================================================================

func (m *Memory) CreateScenario(_ context.Context, s engine.Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[s.ID] = s
	return nil
}

func (m *Memory) GetScenario(_ context.Context, id engine.ScenarioID) (engine.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getScenarioLocked(id)
}

func (m *Memory) getScenarioLocked(id engine.ScenarioID) (engine.Scenario, error) {
	s, ok := m.scenarios[id]
	if !ok {
		return engine.Scenario{}, engine.ErrNotFound
	}
	return s, nil
}

func (m *Memory) UpdateScenario(_ context.Context, s engine.Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateScenarioLocked(s)
}

func (m *Memory) updateScenarioLocked(s engine.Scenario) error {
	if _, ok := m.scenarios[s.ID]; !ok {
		return engine.ErrNotFound
	}
	m.scenarios[s.ID] = s
	return nil
}

func (m *Memory) DeleteScenario(_ context.Context, id engine.ScenarioID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scenarios, id)
	return nil
}

func (m *Memory) ListScenarios(_ context.Context) ([]engine.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(), nil
}

func (m *Memory) listLocked() []engine.Scenario {
	out := make([]engine.Scenario, 0, len(m.scenarios))
	for _, s := range m.scenarios {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// =============================================================================
// AUDIT
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, e engine.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit[e.ScenarioID] = append(m.audit[e.ScenarioID], e)
	return nil
}

func (m *Memory) Audit(_ context.Context, id engine.ScenarioID) ([]engine.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.AuditEntry, len(m.audit[id]))
	copy(out, m.audit[id])
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole call, so transactions are serialized.
func (m *Memory) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	view := &txView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	scenarios map[engine.ScenarioID]engine.Scenario
	values    map[engine.ScenarioID]map[valueKey]engine.DriverValue
	audit     map[engine.ScenarioID][]engine.AuditEntry
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		scenarios: make(map[engine.ScenarioID]engine.Scenario, len(m.scenarios)),
		values:    make(map[engine.ScenarioID]map[valueKey]engine.DriverValue, len(m.values)),
		audit:     make(map[engine.ScenarioID][]engine.AuditEntry, len(m.audit)),
	}
	for k, v := range m.scenarios {
		s.scenarios[k] = v
	}
	for id, byKey := range m.values {
		cp := make(map[valueKey]engine.DriverValue, len(byKey))
		for k, v := range byKey {
			cp[k] = v
		}
		s.values[id] = cp
	}
	for id, entries := range m.audit {
		s.audit[id] = append([]engine.AuditEntry{}, entries...)
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.scenarios = s.scenarios
	m.values = s.values
	m.audit = s.audit
}

// txView gives fn lock-free access while WithTx holds the write lock.
type txView struct {
	parent *Memory
}

func (tv *txView) Overrides(_ context.Context, id engine.ScenarioID, p engine.Period) ([]engine.DriverValue, error) {
	return tv.parent.overridesLocked(id, p), nil
}

func (tv *txView) ScenarioValues(_ context.Context, id engine.ScenarioID) ([]engine.DriverValue, error) {
	return tv.parent.scenarioValuesLocked(id), nil
}

func (tv *txView) PutValues(_ context.Context, values []engine.DriverValue) error {
	tv.parent.putLocked(values)
	return nil
}

func (tv *txView) DeleteValue(_ context.Context, id engine.ScenarioID, driver engine.DriverName, p engine.Period) error {
	delete(tv.parent.values[id], valueKey{Driver: driver, Period: p})
	return nil
}

func (tv *txView) DeleteScenarioValues(_ context.Context, id engine.ScenarioID) error {
	delete(tv.parent.values, id)
	return nil
}

func (tv *txView) CreateScenario(_ context.Context, s engine.Scenario) error {
	tv.parent.scenarios[s.ID] = s
	return nil
}

func (tv *txView) GetScenario(_ context.Context, id engine.ScenarioID) (engine.Scenario, error) {
	return tv.parent.getScenarioLocked(id)
}

func (tv *txView) UpdateScenario(_ context.Context, s engine.Scenario) error {
	return tv.parent.updateScenarioLocked(s)
}

func (tv *txView) DeleteScenario(_ context.Context, id engine.ScenarioID) error {
	delete(tv.parent.scenarios, id)
	return nil
}

func (tv *txView) ListScenarios(_ context.Context) ([]engine.Scenario, error) {
	return tv.parent.listLocked(), nil
}

func (tv *txView) AppendAudit(_ context.Context, e engine.AuditEntry) error {
	tv.parent.audit[e.ScenarioID] = append(tv.parent.audit[e.ScenarioID], e)
	return nil
}

func (tv *txView) Audit(_ context.Context, id engine.ScenarioID) ([]engine.AuditEntry, error) {
	return append([]engine.AuditEntry{}, tv.parent.audit[id]...), nil
}

// Nested transactions run inline in the outer one.
func (tv *txView) WithTx(_ context.Context, fn func(engine.Store) error) error {
	return fn(tv)
}
