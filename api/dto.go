/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's Go types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Wrappers around several DTOs

DECIMALS:
  Every driver value travels as a JSON string ("55.125"), never a number, so
  no client JSON parser can round it.

VALIDATION:
  Request types carry go-playground/validator tags. Handlers call
  Handler.decode, which rejects unknown fields and failed rules with 400.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/interchange.go: Driver-set document (used as-is)
*/
package api

import (
	"time"

	"github.com/warp/fuel-engine/engine"
)

const dateLayout = "2006-01-02"

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a scenario in API responses.
type ScenarioDTO struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Lineage      *string `json:"lineage,omitempty"`
	LineageKind  string  `json:"lineage_kind,omitempty"`
	Locked       bool    `json:"locked"`
	AsOf         string  `json:"as_of"`
	FrozenBefore string  `json:"frozen_before,omitempty"`
	CreatedAt    string  `json:"created_at"`
	LockedAt     *string `json:"locked_at,omitempty"`
}

func toScenarioDTO(s engine.Scenario) ScenarioDTO {
	dto := ScenarioDTO{
		ID:          string(s.ID),
		Name:        s.Name,
		Type:        string(s.Type),
		LineageKind: string(s.LineageKind),
		Locked:      s.Locked,
		AsOf:        s.AsOf.Format(dateLayout),
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
	}
	if s.Lineage != nil {
		parent := string(*s.Lineage)
		dto.Lineage = &parent
	}
	if !s.FrozenBefore.IsZero() {
		dto.FrozenBefore = s.FrozenBefore.String()
	}
	if s.LockedAt != nil {
		at := s.LockedAt.Format(time.RFC3339)
		dto.LockedAt = &at
	}
	return dto
}

// CreateScenarioRequest is the request to create a scenario. ID is generated
// when empty.
type CreateScenarioRequest struct {
	ID   string `json:"id" validate:"omitempty,max=64,excludesall=/?#"`
	Name string `json:"name" validate:"max=200"`
	Type string `json:"type" validate:"required,oneof=budget internal_forecast external_forecast"`
	AsOf string `json:"as_of" validate:"required,datetime=2006-01-02"`
}

// CloneScenarioRequest clones a scenario. An empty type keeps the source's.
type CloneScenarioRequest struct {
	Type string `json:"type" validate:"omitempty,oneof=budget internal_forecast external_forecast"`
}

// RollForwardRequest rolls a scenario forward to a new as-of date.
type RollForwardRequest struct {
	AsOf string `json:"as_of" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// DRIVERS AND OVERRIDES
// =============================================================================

// DriverDTO describes one catalog entry.
type DriverDTO struct {
	Name          string        `json:"name"`
	Kind          string        `json:"kind"`
	Unit          string        `json:"unit,omitempty"`
	Category      string        `json:"category"`
	Description   string        `json:"description,omitempty"`
	Default       *engine.Value `json:"default,omitempty"`
	Min           *engine.Value `json:"min,omitempty"`
	Max           *engine.Value `json:"max,omitempty"`
	EscalatesWith string        `json:"escalates_with,omitempty"`
	DependsOn     []string      `json:"depends_on,omitempty"`
	DisplayOrder  int           `json:"display_order"`
}

func toDriverDTO(d *engine.Driver) DriverDTO {
	dto := DriverDTO{
		Name:          string(d.Name),
		Kind:          string(d.Kind),
		Unit:          string(d.Unit),
		Category:      string(d.Category),
		Description:   d.Description,
		Min:           d.Min,
		Max:           d.Max,
		EscalatesWith: string(d.EscalatesWith),
		DisplayOrder:  d.DisplayOrder,
	}
	if d.Kind == engine.KindInput {
		def := d.Default
		dto.Default = &def
	}
	for _, dep := range d.Dependencies() {
		dto.DependsOn = append(dto.DependsOn, string(dep))
	}
	return dto
}

// SetOverrideRequest writes one override.
type SetOverrideRequest struct {
	Driver string `json:"driver" validate:"required"`
	Period string `json:"period" validate:"required,period"`
	Value  string `json:"value" validate:"required,decimal"`
}

// OverrideDTO is one stored override row.
type OverrideDTO struct {
	Driver    string       `json:"driver"`
	Period    string       `json:"period"`
	Value     engine.Value `json:"value"`
	Source    string       `json:"source"`
	UpdatedAt string       `json:"updated_at,omitempty"`
}

func toOverrideDTO(v engine.DriverValue) OverrideDTO {
	dto := OverrideDTO{
		Driver: string(v.Driver),
		Period: v.Period.String(),
		Value:  v.Value,
		Source: string(v.Source),
	}
	if !v.UpdatedAt.IsZero() {
		dto.UpdatedAt = v.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// EVALUATION
// =============================================================================

// DriverValueDTO is one resolved value.
type DriverValueDTO struct {
	Driver     string       `json:"driver"`
	Value      engine.Value `json:"value"`
	Unit       string       `json:"unit,omitempty"`
	Overridden bool         `json:"overridden,omitempty"`
}

// EvaluatedSetDTO is the full driver set of one period, in evaluation order.
type EvaluatedSetDTO struct {
	ScenarioID string           `json:"scenario_id"`
	Period     string           `json:"period"`
	Values     []DriverValueDTO `json:"values"`
}

func toEvaluatedSetDTO(reg *engine.Registry, set *engine.EvaluatedSet) EvaluatedSetDTO {
	dto := EvaluatedSetDTO{
		ScenarioID: string(set.ScenarioID),
		Period:     set.Period.String(),
		Values:     make([]DriverValueDTO, 0, len(set.Order)),
	}
	for _, name := range set.Order {
		v := DriverValueDTO{
			Driver:     string(name),
			Value:      set.Get(name),
			Overridden: set.Overridden[name],
		}
		if d, err := reg.Get(name); err == nil {
			v.Unit = string(d.Unit)
		}
		dto.Values = append(dto.Values, v)
	}
	return dto
}

// ProjectionDTO is a fully evaluated projection.
type ProjectionDTO struct {
	ScenarioID   string            `json:"scenario_id"`
	Start        string            `json:"start"`
	HorizonYears int               `json:"horizon_years"`
	Boundary     string            `json:"annual_from"`
	Periods      []EvaluatedSetDTO `json:"periods"`
}

// =============================================================================
// COMPARISON AND HISTORY
// =============================================================================

// DiffEntryDTO is one differing or matching override.
type DiffEntryDTO struct {
	Driver string        `json:"driver"`
	Period string        `json:"period"`
	A      *engine.Value `json:"a,omitempty"`
	B      *engine.Value `json:"b,omitempty"`
	Status string        `json:"status"`
}

// ComparisonDTO compares the overrides of two scenarios.
type ComparisonDTO struct {
	A       string         `json:"a"`
	B       string         `json:"b"`
	Counts  map[string]int `json:"counts"`
	Entries []DiffEntryDTO `json:"entries"`
}

func toComparisonDTO(c *engine.Comparison) ComparisonDTO {
	dto := ComparisonDTO{
		A:       string(c.A),
		B:       string(c.B),
		Counts:  make(map[string]int, len(c.Counts)),
		Entries: make([]DiffEntryDTO, len(c.Entries)),
	}
	for k, n := range c.Counts {
		dto.Counts[string(k)] = n
	}
	for i, e := range c.Entries {
		dto.Entries[i] = DiffEntryDTO{
			Driver: string(e.Driver),
			Period: e.Period.String(),
			A:      e.A,
			B:      e.B,
			Status: string(e.Status),
		}
	}
	return dto
}

// AuditEntryDTO is one history event.
type AuditEntryDTO struct {
	ID        string        `json:"id"`
	Timestamp string        `json:"timestamp"`
	Action    string        `json:"action"`
	Driver    string        `json:"driver,omitempty"`
	Period    string        `json:"period,omitempty"`
	OldValue  *engine.Value `json:"old_value,omitempty"`
	NewValue  *engine.Value `json:"new_value,omitempty"`
	Detail    string        `json:"detail,omitempty"`
}

func toAuditEntryDTO(e engine.AuditEntry) AuditEntryDTO {
	dto := AuditEntryDTO{
		ID:        e.ID,
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
		Action:    string(e.Action),
		Driver:    string(e.Driver),
		OldValue:  e.OldValue,
		NewValue:  e.NewValue,
		Detail:    e.Detail,
	}
	if !e.Period.IsZero() {
		dto.Period = e.Period.String()
	}
	return dto
}

// =============================================================================
// IMPORT, DEMO, ERRORS
// =============================================================================

// ImportResponse reports a driver-set import.
type ImportResponse struct {
	ScenarioID string `json:"scenario_id"`
	Mode       string `json:"mode"`
	Imported   int    `json:"imported"`
}

// DemoDTO describes a demo data set.
type DemoDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadDemoRequest is the request to load a demo data set.
type LoadDemoRequest struct {
	DemoID string `json:"demo_id" validate:"required"`
}

// LoadDemoResponse lists what a demo created.
type LoadDemoResponse struct {
	DemoID    string        `json:"demo_id"`
	Scenarios []ScenarioDTO `json:"scenarios"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
