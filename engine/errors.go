/*
errors.go - Centralized error types for the calculation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure is a local, synchronous failure of a single call. Nothing
  here is retryable: each one reflects a data or definition problem.

ERROR CATEGORIES:
  1. Definition errors - UnknownDriverError, CyclicDependencyError
  2. Data errors       - TypeMismatchError, InvalidHorizonError, GranularityError
  3. Lifecycle errors  - UnknownScenarioError, ScenarioLockedError, LockedPeriodError

USAGE:
  Structured errors unwrap to a sentinel, so both styles work:

    if errors.Is(err, engine.ErrScenarioLocked) { ... }

    var mismatch *engine.TypeMismatchError
    if errors.As(err, &mismatch) {
        log.Printf("bad value for %s in %s", mismatch.Driver, mismatch.Period)
    }

SEE ALSO:
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrUnknownDriver     = errors.New("unknown driver")
	ErrUnknownScenario   = errors.New("unknown scenario")
	ErrCyclicDependency  = errors.New("cyclic driver dependency")
	ErrTypeMismatch      = errors.New("value outside driver domain")
	ErrScenarioLocked    = errors.New("scenario is locked")
	ErrLockedPeriod      = errors.New("period is locked by roll-forward")
	ErrInvalidHorizon    = errors.New("invalid projection horizon")
	ErrInvalidDefinition = errors.New("invalid driver definition")
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrScenarioExists    = errors.New("scenario already exists")
	ErrUnknownType       = errors.New("unknown scenario type")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnknownDriverError names a driver absent from the registry. Referrer is set
// when the name came from another driver's formula.
type UnknownDriverError struct {
	Driver   DriverName
	Referrer DriverName
}

func (e *UnknownDriverError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("unknown driver %q referenced by %q", e.Driver, e.Referrer)
	}
	return fmt.Sprintf("unknown driver %q", e.Driver)
}

func (e *UnknownDriverError) Unwrap() error { return ErrUnknownDriver }

type UnknownScenarioError struct {
	ScenarioID ScenarioID
}

func (e *UnknownScenarioError) Error() string {
	return fmt.Sprintf("unknown scenario %q", e.ScenarioID)
}

func (e *UnknownScenarioError) Unwrap() error { return ErrUnknownScenario }

// CyclicDependencyError names the drivers forming a cycle, in dependency
// order, with the first driver repeated at the end.
type CyclicDependencyError struct {
	Cycle []DriverName
}

func (e *CyclicDependencyError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, n := range e.Cycle {
		parts[i] = string(n)
	}
	return "cyclic driver dependency: " + strings.Join(parts, " -> ")
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// TypeMismatchError reports a value outside a driver's declared domain.
type TypeMismatchError struct {
	ScenarioID ScenarioID
	Driver     DriverName
	Period     Period
	Value      Value
	Reason     string
}

func (e *TypeMismatchError) Error() string {
	msg := fmt.Sprintf("value %s for driver %q", e.Value.String(), e.Driver)
	if !e.Period.IsZero() {
		msg += " in " + e.Period.String()
	}
	if e.ScenarioID != "" {
		msg += fmt.Sprintf(" (scenario %q)", e.ScenarioID)
	}
	return msg + ": " + e.Reason
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

type ScenarioLockedError struct {
	ScenarioID ScenarioID
}

func (e *ScenarioLockedError) Error() string {
	return fmt.Sprintf("scenario %q is locked", e.ScenarioID)
}

func (e *ScenarioLockedError) Unwrap() error { return ErrScenarioLocked }

// LockedPeriodError is returned for writes to a period frozen by roll-forward,
// even though the scenario itself is unlocked.
type LockedPeriodError struct {
	ScenarioID   ScenarioID
	Driver       DriverName
	Period       Period
	FrozenBefore Period
}

func (e *LockedPeriodError) Error() string {
	return fmt.Sprintf("period %s of scenario %q is frozen (actuals before %s)",
		e.Period, e.ScenarioID, e.FrozenBefore)
}

func (e *LockedPeriodError) Unwrap() error { return ErrLockedPeriod }

// GranularityError is returned for a write addressed to a period the
// scenario's calendar does not use, such as a month past the monthly window
// or a whole year inside it. Bucket is the period that represents it.
type GranularityError struct {
	ScenarioID ScenarioID
	Driver     DriverName
	Period     Period
	Bucket     Period
}

func (e *GranularityError) Error() string {
	return fmt.Sprintf("period %s of driver %q is not used by scenario %q (represented by %s)",
		e.Period, e.Driver, e.ScenarioID, e.Bucket)
}

func (e *GranularityError) Unwrap() error { return ErrInvalidPeriod }

type InvalidHorizonError struct {
	Years int
}

func (e *InvalidHorizonError) Error() string {
	return fmt.Sprintf("horizon of %d years outside %d-%d", e.Years, MinHorizonYears, MaxHorizonYears)
}

func (e *InvalidHorizonError) Unwrap() error { return ErrInvalidHorizon }

// DefinitionError describes a malformed driver record found at registry
// construction (duplicate name, formula on an input driver, ...).
type DefinitionError struct {
	Driver DriverName
	Reason string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("driver %q: %s", e.Driver, e.Reason)
}

func (e *DefinitionError) Unwrap() error { return ErrInvalidDefinition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing driver or scenario.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownDriver) ||
		errors.Is(err, ErrUnknownScenario)
}

// IsLocked returns true if a write was refused by a scenario or period lock.
func IsLocked(err error) bool {
	return errors.Is(err, ErrScenarioLocked) ||
		errors.Is(err, ErrLockedPeriod)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrTypeMismatch) ||
		errors.Is(err, ErrInvalidHorizon) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrUnknownType)
}
