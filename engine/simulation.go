/*
simulation.go - The recursive, memoizing, cycle-safe evaluator

PURPOSE:
  A Simulation owns one dated evaluation of a model over one population:
  the entities with their holders, and the legislation snapshots (actual
  and default/reform baseline). Compute routes a variable-name request
  to its owning entity, returning the cached vector when the holder is
  already populated and otherwise running the variable's formula, which
  recursively computes its dependencies through the same path.

EVALUATION PROTOCOL (per request):
  1. If the name is already on the in-flight chain, fail with
     CyclicDependencyError naming the whole chain - BEFORE recursing,
     never via a stack-depth limit.
  2. Resolve the owning entity; unknown names fail with
     UnknownVariableError.
  3. Non-EMPTY holder: return its vector unchanged (memoized fast path).
  4. EMPTY holder with a formula: push the name onto the chain, run the
     formula (its dependency requests re-enter this protocol), check the
     result length, cache as COMPUTED.
  5. EMPTY holder without a formula: default-fill, stay EMPTY.

CONCURRENCY:
  Evaluation is single-threaded and synchronous per simulation. Holders
  are mutated without locks: serialize compute calls per simulation, or
  give each concurrent caller its own simulation. Legislation snapshots
  are immutable and may be shared freely.

REFORM MODE:
  BaselineFork returns a second simulation evaluating against the
  default legislation. The fork shares INPUT holders by reference and
  nothing else: the two simulations never see each other's COMPUTED
  results. Difference subtracts one result set from the other.
*/
package engine

import (
	"fmt"
	"time"

	"github.com/warp/fiscal-engine/params"
)

// =============================================================================
// SIMULATION
// =============================================================================

// Simulation is the top-level orchestrator of one dated evaluation.
type Simulation struct {
	// Date fixes which parameter values and validity windows apply.
	Date time.Time

	// Legislation is the snapshot formulas read. DefaultLegislation is
	// the reform baseline; both are immutable for the simulation's life.
	Legislation        *params.Snapshot
	DefaultLegislation *params.Snapshot

	registry *Registry
	entities map[EntityKind]*Entity
}

// NewSimulation creates a simulation over registry at date. When
// defaultLegislation is nil the actual snapshot doubles as the baseline
// (no-reform mode).
func NewSimulation(registry *Registry, date time.Time, legislation, defaultLegislation *params.Snapshot) *Simulation {
	if defaultLegislation == nil {
		defaultLegislation = legislation
	}
	s := &Simulation{
		Date:               date,
		Legislation:        legislation,
		DefaultLegislation: defaultLegislation,
		registry:           registry,
		entities:           make(map[EntityKind]*Entity),
	}
	for _, kind := range registry.EntityKinds() {
		s.entities[kind] = newEntity(kind)
	}
	return s
}

// Registry returns the immutable variable registry this simulation runs.
func (s *Simulation) Registry() *Registry { return s.registry }

// Entity returns the partition for kind.
func (s *Simulation) Entity(kind EntityKind) (*Entity, bool) {
	e, ok := s.entities[kind]
	return e, ok
}

// SetMemberCount fixes the member count of an entity. Loaders call this
// before (or while) injecting input data.
func (s *Simulation) SetMemberCount(kind EntityKind, n int) error {
	e, ok := s.entities[kind]
	if !ok {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	return e.setCount(n)
}

// SetInput validates raw values through the variable's coercion
// pipeline and stores them as INPUT data, shielding the variable from
// formula evaluation.
func (s *Simulation) SetInput(name string, raw []any) error {
	v, e, err := s.resolve(name)
	if err != nil {
		return err
	}
	return e.holder(v).SetInput(raw, e.Count())
}

// SetInputVector stores an already-typed vector as INPUT data.
func (s *Simulation) SetInputVector(name string, vec Vector) error {
	v, e, err := s.resolve(name)
	if err != nil {
		return err
	}
	return e.holder(v).SetInputVector(vec, e.Count())
}

// Holder exposes the cache cell for a variable. Mostly useful to
// loaders and tests; normal callers go through Compute.
func (s *Simulation) Holder(name string) (*Holder, error) {
	v, e, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return e.holder(v), nil
}

// Clear resets a variable's holder to EMPTY, releasing its vector.
func (s *Simulation) Clear(name string) error {
	h, err := s.Holder(name)
	if err != nil {
		return err
	}
	h.Clear()
	return nil
}

func (s *Simulation) resolve(name string) (*Variable, *Entity, error) {
	kind, ok := s.registry.Owner(name)
	if !ok {
		return nil, nil, &UnknownVariableError{Variable: name}
	}
	v, _ := s.registry.Variable(name)
	return v, s.entities[kind], nil
}

// =============================================================================
// COMPUTE
// =============================================================================

// Compute returns the vector for name, computing it (and, recursively,
// everything it depends on) if necessary. This is the external entry
// point; the in-flight chain starts empty.
func (s *Simulation) Compute(name string) (Vector, error) {
	return s.compute(name, requestChain{})
}

// compute is the recursive evaluation protocol. inflight is the set of
// variable names currently being resolved on the active call stack; it
// is carried by value so sibling dependency requests never observe each
// other's frames.
func (s *Simulation) compute(name string, inflight requestChain) (Vector, error) {
	if inflight.contains(name) {
		return nil, &CyclicDependencyError{Chain: append(inflight.ordered(), name)}
	}

	v, entity, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	h := entity.holder(v)

	// Memoized fast path: INPUT and COMPUTED holders are never touched.
	if h.State() != StateEmpty {
		return h.Values(), nil
	}

	binding := s.registry.Binding(name)
	if binding == nil {
		// No formula, no input: silently default. The holder stays
		// EMPTY so later-loaded input data is not masked.
		return h.defaultFill(entity.Count()), nil
	}

	ctx := &FormulaContext{
		sim:      s,
		entity:   entity,
		inflight: inflight.push(name),
		law:      s.Legislation,
	}
	result, err := binding.Compute(ctx)
	if err != nil {
		return nil, err
	}
	if result.Len() != entity.Count() {
		return nil, &EntityLengthMismatchError{
			Variable: name,
			Entity:   entity.Kind(),
			Want:     entity.Count(),
			Got:      result.Len(),
		}
	}
	h.setComputed(result)
	return result, nil
}

// =============================================================================
// REFORM MODE
// =============================================================================

// BaselineFork returns a simulation evaluating the same population
// against the default legislation. INPUT holders present at fork time
// are shared by reference (input data is immutable on both sides);
// COMPUTED holders are never shared in either direction. Fork after
// loading input data.
func (s *Simulation) BaselineFork() *Simulation {
	fork := NewSimulation(s.registry, s.Date, s.DefaultLegislation, s.DefaultLegislation)
	for kind, entity := range s.entities {
		fe := fork.entities[kind]
		fe.count = entity.count
		for name, h := range entity.holders {
			if h.State() == StateInput {
				fe.holders[name] = h
			}
		}
	}
	return fork
}

// Difference returns the element-wise numeric difference a - b. Both
// vectors must have a numeric view and equal lengths; the result is a
// float vector. Used to compare actual results against the baseline.
func Difference(a, b Vector) (FloatVector, error) {
	fa, err := Floats(a)
	if err != nil {
		return nil, err
	}
	fb, err := Floats(b)
	if err != nil {
		return nil, err
	}
	if len(fa) != len(fb) {
		return nil, &EntityLengthMismatchError{Want: len(fa), Got: len(fb)}
	}
	out := make(FloatVector, len(fa))
	for i := range fa {
		out[i] = fa[i] - fb[i]
	}
	return out, nil
}

// =============================================================================
// REQUEST CHAIN - Explicit in-flight set for cycle detection
// =============================================================================

// requestChain is the ordered set of variable names on the active
// resolution stack. Values are immutable: push copies, so the chain can
// be carried by value through recursive calls.
type requestChain struct {
	names []string
}

func (c requestChain) contains(name string) bool {
	for _, n := range c.names {
		if n == name {
			return true
		}
	}
	return false
}

func (c requestChain) push(name string) requestChain {
	names := make([]string, len(c.names)+1)
	copy(names, c.names)
	names[len(c.names)] = name
	return requestChain{names: names}
}

func (c requestChain) ordered() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}
