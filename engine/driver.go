package engine

import (
	"fmt"
	"sort"
)

// =============================================================================
// DRIVER - Immutable definition
// =============================================================================

// Driver is the definition of one named quantity feeding the fuel model.
type Driver struct {
	Name        DriverName
	Kind        Kind
	Unit        Unit
	Category    Category
	Description string

	Default Value

	// Min and Max bound the values an override may carry. Nil means unbounded.
	Min *Value
	Max *Value

	// Formula is set for calculated drivers only.
	Formula *Expr

	// EscalatesWith names the escalation_<category>_annual driver whose rate
	// carries this input forward across a projection. Empty for drivers that
	// do not escalate.
	EscalatesWith DriverName

	DisplayOrder int
}

// EscalationDriverName returns the conventional rate driver for a category
// tag, e.g. "coal" → "escalation_coal_annual".
func EscalationDriverName(tag string) DriverName {
	return DriverName("escalation_" + tag + "_annual")
}

// Dependencies returns the drivers that must be resolved before this one.
// For calculated drivers these are the formula refs; for escalating inputs
// it is the rate driver.
func (d *Driver) Dependencies() []DriverName {
	if d.Kind == KindCalculated {
		return d.Formula.Refs()
	}
	if d.EscalatesWith != "" {
		return []DriverName{d.EscalatesWith}
	}
	return nil
}

func (d *Driver) clone() *Driver {
	out := *d
	if d.Min != nil {
		v := *d.Min
		out.Min = &v
	}
	if d.Max != nil {
		v := *d.Max
		out.Max = &v
	}
	out.Formula = d.Formula.Clone()
	return &out
}

// CheckValue verifies that v lies inside the driver's declared domain.
func (d *Driver) CheckValue(v Value) error {
	if d.Min != nil && v.LessThan(*d.Min) {
		return &TypeMismatchError{Driver: d.Name, Value: v,
			Reason: fmt.Sprintf("below minimum %s %s", d.Min.String(), d.Unit)}
	}
	if d.Max != nil && v.GreaterThan(*d.Max) {
		return &TypeMismatchError{Driver: d.Name, Value: v,
			Reason: fmt.Sprintf("above maximum %s %s", d.Max.String(), d.Unit)}
	}
	return nil
}

// =============================================================================
// REGISTRY - Validated catalog of drivers
// =============================================================================

// Registry is the static driver catalog. It is validated at construction and
// read-only afterwards, so it is safe to share between goroutines. Accessors
// hand out deep copies of the definitions.
type Registry struct {
	drivers []*Driver
	byName  map[DriverName]int
	order   []DriverName
}

// NewRegistry builds and validates a registry. Registration order is the
// order of the arguments and is the tie-break of the evaluation order.
func NewRegistry(drivers ...Driver) (*Registry, error) {
	r := &Registry{byName: make(map[DriverName]int, len(drivers))}
	for i := range drivers {
		d := drivers[i]
		if err := checkDefinition(&d); err != nil {
			return nil, err
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, &DefinitionError{Driver: d.Name, Reason: "registered twice"}
		}
		r.byName[d.Name] = len(r.drivers)
		r.drivers = append(r.drivers, d.clone())
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func checkDefinition(d *Driver) error {
	if d.Name == "" {
		return &DefinitionError{Reason: "empty name"}
	}
	switch d.Kind {
	case KindInput:
		if d.Formula != nil {
			return &DefinitionError{Driver: d.Name, Reason: "input driver cannot have a formula"}
		}
		if err := d.CheckValue(d.Default); err != nil {
			return &DefinitionError{Driver: d.Name, Reason: "default " + err.Error()}
		}
	case KindCalculated:
		if d.Formula == nil {
			return &DefinitionError{Driver: d.Name, Reason: "calculated driver needs a formula"}
		}
		if d.EscalatesWith != "" {
			return &DefinitionError{Driver: d.Name, Reason: "only input drivers escalate"}
		}
		if err := d.Formula.Check(); err != nil {
			return &DefinitionError{Driver: d.Name, Reason: err.Error()}
		}
	default:
		return &DefinitionError{Driver: d.Name, Reason: fmt.Sprintf("unknown kind %q", d.Kind)}
	}
	if d.Min != nil && d.Max != nil && d.Min.GreaterThan(*d.Max) {
		return &DefinitionError{Driver: d.Name, Reason: "min above max"}
	}
	return nil
}

// Validate checks every reference and the acyclicity of the dependency
// graph, and computes the evaluation order.
func (r *Registry) Validate() error {
	for _, d := range r.drivers {
		for _, dep := range d.Dependencies() {
			target, ok := r.byName[dep]
			if !ok {
				return &UnknownDriverError{Driver: dep, Referrer: d.Name}
			}
			if d.EscalatesWith == dep && r.drivers[target].Kind != KindInput {
				return &DefinitionError{Driver: d.Name, Reason: "escalation rate must be an input driver"}
			}
		}
	}
	order, err := r.topoSort()
	if err != nil {
		return err
	}
	r.order = order
	return nil
}

// topoSort is Kahn's algorithm with the ready set kept in registration order,
// so the result is stable for identical catalogs.
func (r *Registry) topoSort() ([]DriverName, error) {
	n := len(r.drivers)
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for i, d := range r.drivers {
		for _, dep := range d.Dependencies() {
			j := r.byName[dep]
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var ready []int
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]DriverName, 0, n)
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		order = append(order, r.drivers[i].Name)
		for _, k := range dependents[i] {
			indegree[k]--
			if indegree[k] == 0 {
				pos := sort.SearchInts(ready, k)
				ready = append(ready, 0)
				copy(ready[pos+1:], ready[pos:])
				ready[pos] = k
			}
		}
	}

	if len(order) < n {
		return nil, &CyclicDependencyError{Cycle: r.findCycle(indegree)}
	}
	return order, nil
}

// findCycle walks dependencies among the drivers Kahn's algorithm could not
// place until a driver repeats.
func (r *Registry) findCycle(indegree []int) []DriverName {
	start := -1
	for i, deg := range indegree {
		if deg > 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	pos := make(map[int]int)
	var path []int
	cur := start
	for {
		if at, seen := pos[cur]; seen {
			cycle := make([]DriverName, 0, len(path)-at+1)
			for _, i := range path[at:] {
				cycle = append(cycle, r.drivers[i].Name)
			}
			return append(cycle, r.drivers[cur].Name)
		}
		pos[cur] = len(path)
		path = append(path, cur)
		next := -1
		for _, dep := range r.drivers[cur].Dependencies() {
			j := r.byName[dep]
			if indegree[j] > 0 {
				next = j
				break
			}
		}
		if next < 0 {
			return nil
		}
		cur = next
	}
}

// Get returns a copy of the driver definition for name. Changing the copy
// never affects the registry.
func (r *Registry) Get(name DriverName) (*Driver, error) {
	d, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return d.clone(), nil
}

// lookup returns the registry's own definition. Callers inside the package
// must treat it as read-only.
func (r *Registry) lookup(name DriverName) (*Driver, error) {
	i, ok := r.byName[name]
	if !ok {
		return nil, &UnknownDriverError{Driver: name}
	}
	return r.drivers[i], nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name DriverName) bool {
	_, ok := r.byName[name]
	return ok
}

// All returns copies of the drivers in registration order.
func (r *Registry) All() []*Driver {
	return r.filter(func(*Driver) bool { return true })
}

// Order returns the stable evaluation order.
func (r *Registry) Order() []DriverName {
	out := make([]DriverName, len(r.order))
	copy(out, r.order)
	return out
}

// ByCategory returns copies of the drivers of a category in registration
// order.
func (r *Registry) ByCategory(c Category) []*Driver {
	return r.filter(func(d *Driver) bool { return d.Category == c })
}

// Escalating returns copies of the input drivers that carry forward with a
// rate.
func (r *Registry) Escalating() []*Driver {
	return r.filter(func(d *Driver) bool { return d.EscalatesWith != "" })
}

func (r *Registry) filter(keep func(*Driver) bool) []*Driver {
	var out []*Driver
	for _, d := range r.drivers {
		if keep(d) {
			out = append(out, d.clone())
		}
	}
	return out
}

func (r *Registry) Len() int { return len(r.drivers) }
