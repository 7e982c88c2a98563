/*
registry.go - The immutable variable registry

PURPOSE:
  The Registry is the explicit, immutable set of variable descriptors
  and formula bindings a model defines once and shares across every
  simulation. It replaces the original design's process-wide mutable
  registry: construct it with a RegistryBuilder and inject it into each
  Simulation.

INVARIANTS (enforced at Build):
  - exactly one descriptor per variable name
  - a binding's entity kind equals its descriptor's entity kind
    (trivially true here since a binding is registered with its
    descriptor, never separately)
  - the variable -> owning-entity map is derived once and never changes
*/
package engine

import (
	"fmt"
	"sort"
)

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds every variable of a model, keyed by name. Immutable
// after Build; safe for concurrent use across simulations.
type Registry struct {
	variables map[string]*Variable
	bindings  map[string]*FormulaBinding
	owner     map[string]EntityKind
	entities  []EntityKind
}

// Variable returns the descriptor registered under name.
func (r *Registry) Variable(name string) (*Variable, bool) {
	v, ok := r.variables[name]
	return v, ok
}

// Binding returns the formula binding for name, or nil for input-only
// variables.
func (r *Registry) Binding(name string) *FormulaBinding {
	return r.bindings[name]
}

// Owner returns the entity kind a variable is attached to.
func (r *Registry) Owner(name string) (EntityKind, bool) {
	kind, ok := r.owner[name]
	return kind, ok
}

// EntityKinds returns every entity kind referenced by the registry,
// sorted for determinism.
func (r *Registry) EntityKinds() []EntityKind {
	out := make([]EntityKind, len(r.entities))
	copy(out, r.entities)
	return out
}

// Names returns every registered variable name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.variables))
	for name := range r.variables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Schemas exports the metadata projection of every variable, in name
// order. Read-only, stateless; feeds external schema consumers.
func (r *Registry) Schemas() []Schema {
	out := make([]Schema, 0, len(r.variables))
	for _, name := range r.Names() {
		s := r.variables[name].Schema()
		s.Formula = r.bindings[name] != nil
		out = append(out, s)
	}
	return out
}

// =============================================================================
// REGISTRY BUILDER
// =============================================================================

// RegistryBuilder accumulates descriptors and bindings; Build freezes
// them into a Registry.
type RegistryBuilder struct {
	variables map[string]*Variable
	bindings  map[string]*FormulaBinding
	order     []string
	errs      []error
}

// NewRegistryBuilder returns an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{
		variables: make(map[string]*Variable),
		bindings:  make(map[string]*FormulaBinding),
	}
}

// Add registers an input-only variable.
func (b *RegistryBuilder) Add(v *Variable) *RegistryBuilder {
	b.add(v, nil)
	return b
}

// AddFormula registers a variable together with its formula.
func (b *RegistryBuilder) AddFormula(v *Variable, f Formula) *RegistryBuilder {
	if f == nil {
		b.errs = append(b.errs, fmt.Errorf("variable %q: nil formula", v.Name()))
		return b
	}
	b.add(v, &FormulaBinding{Variable: v, Compute: f})
	return b
}

func (b *RegistryBuilder) add(v *Variable, binding *FormulaBinding) {
	if v.Name() == "" {
		b.errs = append(b.errs, fmt.Errorf("variable with empty name"))
		return
	}
	if v.Entity() == "" {
		b.errs = append(b.errs, fmt.Errorf("variable %q: empty entity kind", v.Name()))
		return
	}
	if v.Kind() == KindEnum && v.Enum() == nil {
		b.errs = append(b.errs, fmt.Errorf("variable %q: enumerated variable without enum", v.Name()))
		return
	}
	if _, dup := b.variables[v.Name()]; dup {
		b.errs = append(b.errs, fmt.Errorf("variable %q registered twice", v.Name()))
		return
	}
	b.variables[v.Name()] = v
	b.order = append(b.order, v.Name())
	if binding != nil {
		b.bindings[v.Name()] = binding
	}
}

// Build freezes the accumulated definitions. It fails on the first
// inconsistency recorded during registration.
func (b *RegistryBuilder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	r := &Registry{
		variables: make(map[string]*Variable, len(b.variables)),
		bindings:  make(map[string]*FormulaBinding, len(b.bindings)),
		owner:     make(map[string]EntityKind, len(b.variables)),
	}
	seen := make(map[EntityKind]bool)
	for _, name := range b.order {
		v := b.variables[name]
		r.variables[name] = v
		r.owner[name] = v.Entity()
		if !seen[v.Entity()] {
			seen[v.Entity()] = true
			r.entities = append(r.entities, v.Entity())
		}
		if binding := b.bindings[name]; binding != nil {
			r.bindings[name] = binding
		}
	}
	sort.Slice(r.entities, func(i, j int) bool { return r.entities[i] < r.entities[j] })
	return r, nil
}
