package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// =============================================================================
// DRIVER SET - Flat (driver, period) → value interchange
// =============================================================================

// DriverSet is the portable form of a scenario's overrides, used by
// spreadsheet import and scenario copy tooling:
//
//	{
//	  "scenario_id": "budget-2025",
//	  "exported_at": "2025-03-01T00:00:00Z",
//	  "values": {
//	    "coal_price_eastern": {"2025-01": "55.25", "2027": "58.10"}
//	  }
//	}
//
// Values are decimal strings so a round trip never loses precision.
type DriverSet struct {
	ScenarioID ScenarioID                      `json:"scenario_id,omitempty"`
	ExportedAt time.Time                       `json:"exported_at,omitempty"`
	Values     map[DriverName]map[Period]Value `json:"values"`
}

// ImportMode selects how an import treats existing overrides.
type ImportMode string

const (
	// ImportMerge upserts the imported values and keeps everything else.
	ImportMerge ImportMode = "merge"
	// ImportReplace also clears editable overrides absent from the set.
	// Rolled-forward actuals are never cleared.
	ImportReplace ImportMode = "replace"
)

// NewDriverSet builds a set from stored rows.
func NewDriverSet(id ScenarioID, rows []DriverValue) *DriverSet {
	set := &DriverSet{ScenarioID: id, Values: make(map[DriverName]map[Period]Value)}
	for _, r := range rows {
		set.Put(r.Driver, r.Period, r.Value)
	}
	return set
}

func (s *DriverSet) Put(d DriverName, p Period, v Value) {
	if s.Values == nil {
		s.Values = make(map[DriverName]map[Period]Value)
	}
	if s.Values[d] == nil {
		s.Values[d] = make(map[Period]Value)
	}
	s.Values[d][p] = v
}

// Len returns the number of (driver, period) entries.
func (s *DriverSet) Len() int {
	n := 0
	for _, byPeriod := range s.Values {
		n += len(byPeriod)
	}
	return n
}

// Rows flattens the set for a scenario, ordered by (driver, period).
func (s *DriverSet) Rows(id ScenarioID) []DriverValue {
	rows := make([]DriverValue, 0, s.Len())
	for d, byPeriod := range s.Values {
		for p, v := range byPeriod {
			rows = append(rows, DriverValue{ScenarioID: id, Driver: d, Period: p, Value: v, Source: SourceOverride})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Driver != rows[j].Driver {
			return rows[i].Driver < rows[j].Driver
		}
		return rows[i].Period.Before(rows[j].Period)
	})
	return rows
}

// WriteJSON encodes the set with indentation.
func (s *DriverSet) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// ReadDriverSet decodes a set, rejecting unknown top-level fields.
func ReadDriverSet(r io.Reader) (*DriverSet, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var set DriverSet
	if err := dec.Decode(&set); err != nil {
		return nil, fmt.Errorf("decode driver set: %w", err)
	}
	if set.Values == nil {
		set.Values = make(map[DriverName]map[Period]Value)
	}
	return &set, nil
}

// =============================================================================
// IMPORT / EXPORT
// =============================================================================

// ExportDriverSet returns every stored override of a scenario.
func (m *ScenarioManager) ExportDriverSet(ctx context.Context, id ScenarioID) (*DriverSet, error) {
	rows, err := m.Overrides(ctx, id)
	if err != nil {
		return nil, err
	}
	set := NewDriverSet(id, rows)
	set.ExportedAt = m.Now()
	return set, nil
}

// ImportDriverSet writes a set into a scenario. Every entry is validated
// before anything is written, and the write is a single transaction, so a
// failed import leaves the scenario untouched. Returns the number of
// overrides written.
func (m *ScenarioManager) ImportDriverSet(ctx context.Context, id ScenarioID, set *DriverSet, mode ImportMode) (int, error) {
	if mode == "" {
		mode = ImportMerge
	}
	if mode != ImportMerge && mode != ImportReplace {
		return 0, fmt.Errorf("unknown import mode %q", mode)
	}
	rows := set.Rows(id)

	err := m.Store.WithTx(ctx, func(tx Store) error {
		for i := range rows {
			r := &rows[i]
			if _, err := m.writable(ctx, tx, id, r.Driver, r.Period); err != nil {
				return err
			}
			d, _ := m.Registry.lookup(r.Driver)
			if err := d.CheckValue(r.Value); err != nil {
				mismatch := err.(*TypeMismatchError)
				mismatch.ScenarioID = id
				mismatch.Period = r.Period
				return mismatch
			}
			r.UpdatedAt = m.Now()
		}
		// An empty set still has to pass the scenario checks.
		if len(rows) == 0 {
			s, err := lookupScenario(ctx, tx, id)
			if err != nil {
				return err
			}
			if s.Locked {
				return &ScenarioLockedError{ScenarioID: id}
			}
		}

		if mode == ImportReplace {
			if err := m.clearEditable(ctx, tx, id, set); err != nil {
				return err
			}
		}
		if len(rows) > 0 {
			if err := tx.PutValues(ctx, rows); err != nil {
				return err
			}
		}
		return m.audit(ctx, tx, AuditEntry{ScenarioID: id, Action: AuditDriverSetImport,
			Detail: fmt.Sprintf("mode=%s values=%d source=%s", mode, len(rows), set.ScenarioID)})
	})
	if err != nil {
		return 0, err
	}

	m.log().Info().
		Str("scenario", string(id)).
		Str("mode", string(mode)).
		Int("values", len(rows)).
		Msg("driver set imported")
	return len(rows), nil
}

func (m *ScenarioManager) clearEditable(ctx context.Context, tx Store, id ScenarioID, keep *DriverSet) error {
	s, err := lookupScenario(ctx, tx, id)
	if err != nil {
		return err
	}
	existing, err := tx.ScenarioValues(ctx, id)
	if err != nil {
		return err
	}
	for _, r := range existing {
		if s.IsFrozen(r.Period) {
			continue
		}
		if _, ok := keep.Values[r.Driver][r.Period]; ok {
			continue
		}
		if err := tx.DeleteValue(ctx, id, r.Driver, r.Period); err != nil {
			return err
		}
	}
	return nil
}
