/*
Package engine provides the core variable computation engine.

PURPOSE:
  This package contains the domain-agnostic machinery for computing derived
  socio-fiscal variables (taxes, benefits, eligibility flags) over simulated
  or surveyed populations. A country-specific model package declares typed
  variables and formulas; the engine resolves dependencies between them,
  memoizes results per simulation, and detects cycles.

KEY CONCEPTS IN THIS FILE (types.go):
  - ValueKind: Closed tag for the five supported variable kinds
  - Vector: A fixed-length typed column of values (one per entity member)
  - EntityKind: Type-safe identifier for a population partition

DESIGN PRINCIPLES:
  1. Composition over inheritance: A Variable is typed storage; a formula
     is attached separately. There is no "formula-bearing column" hierarchy.
  2. Explicit registry: Variables live in an immutable Registry that is
     passed into every Simulation. No module-level globals.
  3. Fail loudly: Formula errors propagate unchanged. The only deliberate
     default-instead-of-error sites are documented on Holder and Enum.

USAGE:
  salaire := engine.NewFloat("salaire", "individu")
  impot := engine.NewFloat("impot", "individu")
  b := engine.NewRegistryBuilder()
  b.Add(salaire)
  b.AddFormula(impot, computeImpot)
  registry, _ := b.Build()

SEE ALSO:
  - variable.go: Variable descriptors and input validation
  - simulation.go: The recursive, memoizing evaluator
  - holder.go: Per-simulation cache cells
*/
package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// VALUE KIND - Closed tag for variable value types
// =============================================================================

// ValueKind fixes a variable's element type and default value semantics.
type ValueKind int

const (
	KindBool ValueKind = iota
	KindInt
	KindFloat
	KindDate
	KindEnum
)

// String returns the schema tag for the kind, as exported to external
// schema consumers.
func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "Boolean"
	case KindInt:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindDate:
		return "Date"
	case KindEnum:
		return "Enumeration"
	default:
		return "unknown"
	}
}

// EntityKind identifies a population partition (e.g., "individu", "menage").
// All members of one entity share a single member count per simulation.
type EntityKind string

// =============================================================================
// VECTOR - Fixed-length typed column, one element per entity member
// =============================================================================

// Vector is a typed array of values for every instance of a variable's
// entity. Formulas consume and produce Vectors.
type Vector interface {
	Kind() ValueKind
	Len() int

	// At returns the element at index i as its natural Go scalar
	// (bool, int32, float64 or time.Time).
	At(i int) any
}

type BoolVector []bool

func (v BoolVector) Kind() ValueKind { return KindBool }
func (v BoolVector) Len() int        { return len(v) }
func (v BoolVector) At(i int) any    { return v[i] }

type IntVector []int32

func (v IntVector) Kind() ValueKind { return KindInt }
func (v IntVector) Len() int        { return len(v) }
func (v IntVector) At(i int) any    { return v[i] }

type FloatVector []float64

func (v FloatVector) Kind() ValueKind { return KindFloat }
func (v FloatVector) Len() int        { return len(v) }
func (v FloatVector) At(i int) any    { return v[i] }

type DateVector []time.Time

func (v DateVector) Kind() ValueKind { return KindDate }
func (v DateVector) Len() int        { return len(v) }
func (v DateVector) At(i int) any    { return v[i] }

// EnumVector stores enumeration codes. It is distinct from IntVector so
// schema export and validation can tell the two apart.
type EnumVector []int32

func (v EnumVector) Kind() ValueKind { return KindEnum }
func (v EnumVector) Len() int        { return len(v) }
func (v EnumVector) At(i int) any    { return v[i] }

// =============================================================================
// VECTOR CONVERSIONS - Numeric views used inside formulas
// =============================================================================

// Floats returns a float64 view of a numeric vector. Booleans map to 0/1,
// integers and enum codes widen. Date vectors have no numeric view.
func Floats(v Vector) ([]float64, error) {
	switch vv := v.(type) {
	case FloatVector:
		return vv, nil
	case IntVector:
		out := make([]float64, len(vv))
		for i, x := range vv {
			out[i] = float64(x)
		}
		return out, nil
	case EnumVector:
		out := make([]float64, len(vv))
		for i, x := range vv {
			out[i] = float64(x)
		}
		return out, nil
	case BoolVector:
		out := make([]float64, len(vv))
		for i, x := range vv {
			if x {
				out[i] = 1
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("no numeric view for %s vector", v.Kind())
	}
}

// Ints returns an int32 view of an integer or enumeration vector.
func Ints(v Vector) ([]int32, error) {
	switch vv := v.(type) {
	case IntVector:
		return vv, nil
	case EnumVector:
		return vv, nil
	default:
		return nil, fmt.Errorf("no integer view for %s vector", v.Kind())
	}
}

// Bools returns the underlying slice of a boolean vector.
func Bools(v Vector) ([]bool, error) {
	if vv, ok := v.(BoolVector); ok {
		return vv, nil
	}
	return nil, fmt.Errorf("no boolean view for %s vector", v.Kind())
}

// Dates returns the underlying slice of a date vector.
func Dates(v Vector) ([]time.Time, error) {
	if vv, ok := v.(DateVector); ok {
		return vv, nil
	}
	return nil, fmt.Errorf("no date view for %s vector", v.Kind())
}
