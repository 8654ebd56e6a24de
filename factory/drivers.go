/*
Package factory provides YAML/JSON to Go driver catalog conversion.

PURPOSE:
  Converts a declarative driver table into a validated engine.Registry. The
  catalog is data, so analysts can add or retune drivers (defaults, domains,
  formulas) without code changes, and the factory produces the Go structs.

WHY YAML?
  - Readable formula trees
  - Comments next to the numbers they explain
  - JSON is valid YAML, so spreadsheet tooling can emit JSON instead

TABLE SCHEMA:
  drivers:
    - name: coal_price_eastern
      kind: input
      unit: $/ton
      category: coal_price
      default: "55.00"
      min: "0"
      max: "200"
      escalation: coal            # escalates with escalation_coal_annual
    - name: coal_price_blended
      kind: calculated
      unit: $/ton
      category: coal_price
      formula:
        weighted_sum:
          fallback: coal_price_eastern
          terms:
            - {value: coal_price_eastern, weight: coal_blend_eastern_pct}
            - {value: coal_price_ilb, weight: coal_blend_ilb_pct}

FORMULA NODES:
  A scalar is a constant when it parses as a decimal, the hours of the period
  when it is "period_hours", and a driver reference otherwise. A mapping has
  exactly one key naming the kind:

    const: "1.5"                 ref: driver_name
    sum|difference|product|max|min: [node, node, ...]
    percent: node                scale: {arg: node, factor: "0.001"}
    ratio: {num: node, den: node, fallback: node}
    weighted_sum: {terms: [{value: node, weight: node}], fallback: node}
    if: {left: node, op: lt|le|gt|ge|eq|ne, right: node, then: node, else: node}

USAGE:
  f := factory.NewDriverFactory()
  reg, err := f.LoadRegistryFile("drivers.yaml")

SEE ALSO:
  - engine/formula.go: Expression tree and interpreter
  - fuelcost/drivers.yaml: Default fuel catalog
*/
package factory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/warp/fuel-engine/engine"
)

// =============================================================================
// TABLE SCHEMA TYPES
// =============================================================================

// DriverTable is the document root.
type DriverTable struct {
	Drivers []DriverRecord `yaml:"drivers" validate:"required,min=1,dive"`
}

// DriverRecord is one row of the table. Decimals are strings so no precision
// is lost on the way in.
type DriverRecord struct {
	Name         string    `yaml:"name" validate:"required,driver_name"`
	Kind         string    `yaml:"kind" validate:"required,oneof=input calculated"`
	Unit         string    `yaml:"unit"`
	Category     string    `yaml:"category" validate:"omitempty,oneof=coal_price transportation heat_rate generation inventory consumables byproducts cost escalation other"`
	Description  string    `yaml:"description"`
	Default      string    `yaml:"default" validate:"omitempty,decimal"`
	Min          string    `yaml:"min" validate:"omitempty,decimal"`
	Max          string    `yaml:"max" validate:"omitempty,decimal"`
	Escalation   string    `yaml:"escalation" validate:"omitempty,excluded_if=Kind calculated,driver_name"`
	Formula      *ExprNode `yaml:"formula" validate:"required_if=Kind calculated,excluded_if=Kind input"`
	DisplayOrder int       `yaml:"display_order"`
}

// =============================================================================
// DRIVER FACTORY
// =============================================================================

var driverNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// DriverFactory converts driver tables to registries.
type DriverFactory struct {
	validate *validator.Validate
}

// NewDriverFactory creates a factory with the table validation rules.
func NewDriverFactory() *DriverFactory {
	v := validator.New()
	_ = v.RegisterValidation("driver_name", func(fl validator.FieldLevel) bool {
		return driverNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := engine.ParseValue(fl.Field().String())
		return err == nil
	})
	return &DriverFactory{validate: v}
}

// Parse decodes and validates a YAML or JSON table.
func (f *DriverFactory) Parse(data []byte) (*DriverTable, error) {
	var table DriverTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse driver table: %w", err)
	}
	if err := f.validate.Struct(&table); err != nil {
		return nil, describeValidation(err)
	}
	return &table, nil
}

// Load reads a table from r.
func (f *DriverFactory) Load(r io.Reader) (*DriverTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read driver table: %w", err)
	}
	return f.Parse(data)
}

// LoadRegistryFile reads, validates and builds the table at path.
func (f *DriverFactory) LoadRegistryFile(path string) (*engine.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read driver table: %w", err)
	}
	return f.ParseRegistry(data)
}

// ParseRegistry is Parse followed by Build.
func (f *DriverFactory) ParseRegistry(data []byte) (*engine.Registry, error) {
	table, err := f.Parse(data)
	if err != nil {
		return nil, err
	}
	return f.Build(table)
}

// Build converts a parsed table into a validated registry. Registration order
// is table order.
func (f *DriverFactory) Build(table *DriverTable) (*engine.Registry, error) {
	drivers := make([]engine.Driver, 0, len(table.Drivers))
	for i, rec := range table.Drivers {
		d, err := rec.toDriver()
		if err != nil {
			return nil, fmt.Errorf("drivers[%d] %s: %w", i, rec.Name, err)
		}
		if d.DisplayOrder == 0 {
			d.DisplayOrder = i + 1
		}
		drivers = append(drivers, d)
	}
	return engine.NewRegistry(drivers...)
}

func (rec DriverRecord) toDriver() (engine.Driver, error) {
	d := engine.Driver{
		Name:         engine.DriverName(rec.Name),
		Kind:         engine.Kind(rec.Kind),
		Unit:         engine.Unit(rec.Unit),
		Category:     engine.Category(rec.Category),
		Description:  rec.Description,
		DisplayOrder: rec.DisplayOrder,
	}
	if d.Category == "" {
		d.Category = engine.CategoryOther
	}

	var err error
	if rec.Default != "" {
		if d.Default, err = engine.ParseValue(rec.Default); err != nil {
			return d, err
		}
	}
	if d.Min, err = optionalValue(rec.Min); err != nil {
		return d, err
	}
	if d.Max, err = optionalValue(rec.Max); err != nil {
		return d, err
	}
	if rec.Escalation != "" {
		d.EscalatesWith = engine.EscalationDriverName(rec.Escalation)
	}
	if rec.Formula != nil {
		d.Formula = rec.Formula.Expr
	}
	return d, nil
}

func optionalValue(s string) (*engine.Value, error) {
	if s == "" {
		return nil, nil
	}
	v, err := engine.ParseValue(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// describeValidation flattens validator errors into one readable message.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "DriverTable.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: invalid driver table: %s", engine.ErrInvalidDefinition, strings.Join(msgs, "; "))
}
