/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is against the sentinels; the structured
  types carry the diagnostic detail (variable names, cycle chains,
  offending values).

ERROR CATEGORIES:
  1. Validation errors - bad raw input for a variable's type or range
  2. Evaluation errors - unknown variable, dependency cycle
  3. Consistency errors - holder length disagreeing with entity size

Formula errors are NOT wrapped here: an error returned by a formula
propagates unchanged to the external caller. A tax computation must
never be silently approximated.

SEE ALSO:
  - variable.go: Raises ValidationError
  - simulation.go: Raises UnknownVariableError and CyclicDependencyError
  - holder.go: Raises EntityLengthMismatchError
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
	// ErrValidation is returned when raw input cannot be coerced to a
	// variable's value kind.
	ErrValidation = errors.New("input validation failed")

	// ErrUnknownVariable is returned when compute is requested for a name
	// absent from the registry. Fatal to that request, not the simulation.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrCyclicDependency is returned when a variable transitively depends
	// on itself. Detected before recursing, never via stack exhaustion.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrLengthMismatch is returned when a holder's array length disagrees
	// with its entity's member count. Indicates a loader defect.
	ErrLengthMismatch = errors.New("entity length mismatch")

	// ErrInputLocked is returned when a loader tries to overwrite a holder
	// already carrying input data.
	ErrInputLocked = errors.New("holder already holds input data")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports the variable and the offending raw value.
type ValidationError struct {
	Variable string
	Value    any
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("variable %q: invalid input %v: %s", e.Variable, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// UnknownVariableError reports a compute request for an unregistered name.
type UnknownVariableError struct {
	Variable string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("variable %q is not registered", e.Variable)
}

func (e *UnknownVariableError) Unwrap() error { return ErrUnknownVariable }

// CyclicDependencyError names every variable in the in-flight request
// chain, in request order, ending with the name that closed the cycle.
type CyclicDependencyError struct {
	Chain []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(e.Chain, " -> "))
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// EntityLengthMismatchError reports a holder array whose length disagrees
// with its entity's member count.
type EntityLengthMismatchError struct {
	Variable string
	Entity   EntityKind
	Want     int
	Got      int
}

func (e *EntityLengthMismatchError) Error() string {
	return fmt.Sprintf("variable %q: %d values for entity %q of %d members",
		e.Variable, e.Got, e.Entity, e.Want)
}

func (e *EntityLengthMismatchError) Unwrap() error { return ErrLengthMismatch }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// rather than a defect in the model or the engine.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnknownVariable) ||
		errors.Is(err, ErrLengthMismatch) ||
		errors.Is(err, ErrInputLocked)
}
