/*
formula.go - Formula bindings and the formula execution context

PURPOSE:
  A FormulaBinding pairs a Variable with the pure function that computes
  it. The function receives a FormulaContext through which it requests
  the variables it depends on; dependencies are therefore discovered
  during execution, not declared up front. Because every request goes
  through the standard memoizing compute path, each dependency is
  resolved at most once per evaluation.

PURITY CONTRACT:
  A Formula must not mutate the vectors it receives, must not perform
  I/O, and must return a vector whose length equals the owning entity's
  member count. Errors returned by formulas propagate unchanged to the
  external caller.
*/
package engine

import (
	"time"

	"github.com/warp/fiscal-engine/params"
)

// =============================================================================
// FORMULA - Pure computation of one variable
// =============================================================================

// Formula computes one output vector from other variables' values and
// the legislation parameters, both reached through the context.
type Formula func(ctx *FormulaContext) (Vector, error)

// FormulaBinding attaches a formula to its variable. Bindings are
// registered once at model-definition time and never mutated; many
// simulations share the same immutable set.
type FormulaBinding struct {
	Variable *Variable
	Compute  Formula
}

// =============================================================================
// FORMULA CONTEXT - What a running formula may reach
// =============================================================================

// FormulaContext carries the evaluation state a formula is allowed to
// see: the simulation (for dependency requests), the owning entity, the
// in-flight request chain (for cycle detection), and the legislation
// snapshot in force for this evaluation.
type FormulaContext struct {
	sim      *Simulation
	entity   *Entity
	inflight requestChain
	law      *params.Snapshot
}

// Compute resolves a dependency by name through the simulation's
// memoizing compute path, carrying this evaluation's in-flight chain so
// cycles are caught before recursing.
func (ctx *FormulaContext) Compute(name string) (Vector, error) {
	return ctx.sim.compute(name, ctx.inflight)
}

// Floats resolves a dependency and returns its numeric view.
func (ctx *FormulaContext) Floats(name string) ([]float64, error) {
	v, err := ctx.Compute(name)
	if err != nil {
		return nil, err
	}
	return Floats(v)
}

// Ints resolves a dependency and returns its integer view.
func (ctx *FormulaContext) Ints(name string) ([]int32, error) {
	v, err := ctx.Compute(name)
	if err != nil {
		return nil, err
	}
	return Ints(v)
}

// Bools resolves a boolean dependency.
func (ctx *FormulaContext) Bools(name string) ([]bool, error) {
	v, err := ctx.Compute(name)
	if err != nil {
		return nil, err
	}
	return Bools(v)
}

// Dates resolves a date dependency.
func (ctx *FormulaContext) Dates(name string) ([]time.Time, error) {
	v, err := ctx.Compute(name)
	if err != nil {
		return nil, err
	}
	return Dates(v)
}

// Params returns the legislation snapshot in force for this evaluation.
// Under a baseline fork this is the default legislation.
func (ctx *FormulaContext) Params() *params.Snapshot { return ctx.law }

// Date returns the simulation's evaluation date.
func (ctx *FormulaContext) Date() time.Time { return ctx.sim.Date }

// Count returns the owning entity's member count; every vector a formula
// returns must have exactly this length.
func (ctx *FormulaContext) Count() int { return ctx.entity.Count() }

// Entity returns the owning entity's kind.
func (ctx *FormulaContext) Entity() EntityKind { return ctx.entity.Kind() }
