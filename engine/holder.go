/*
holder.go - Per-(simulation, variable) cache cells

PURPOSE:
  A Holder owns the array of values for one variable within one
  simulation. It is the memoization unit of the engine: once a holder is
  INPUT or COMPUTED its vector is returned as-is, and no formula runs
  for it again until it is explicitly cleared.

STATES:
  EMPTY    - never populated; a compute request may fill it
  INPUT    - values supplied directly (survey extract, test case);
             permanently shielded from formula evaluation
  COMPUTED - a formula ran; results are cached

DEFAULT FILL:
  A variable with no formula and no supplied input silently defaults:
  the vector is filled with the descriptor default and the holder stays
  EMPTY. This is intentional policy, not an error path.
*/
package engine

import "time"

// =============================================================================
// HOLDER STATE
// =============================================================================

// HolderState tracks what a holder currently contains.
type HolderState int

const (
	StateEmpty HolderState = iota
	StateInput
	StateComputed
)

func (s HolderState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateInput:
		return "input"
	case StateComputed:
		return "computed"
	default:
		return "unknown"
	}
}

// =============================================================================
// HOLDER
// =============================================================================

// Holder is the cache cell for one variable in one simulation. It is
// owned exclusively by its entity and must not be shared across
// simulations, except that INPUT holders are shared by reference with a
// baseline fork (both sides treat input data as immutable).
type Holder struct {
	variable *Variable
	state    HolderState
	values   Vector
}

func newHolder(variable *Variable) *Holder {
	return &Holder{variable: variable}
}

// Variable returns the descriptor this holder caches values for.
func (h *Holder) Variable() *Variable { return h.variable }

// State returns the holder's current state.
func (h *Holder) State() HolderState { return h.state }

// Values returns the cached vector, or nil when nothing was ever
// populated. Callers must treat the vector as read-only.
func (h *Holder) Values() Vector { return h.values }

// SetInput validates every raw element through the variable's coercion
// pipeline and stores the result as INPUT data, shielding the variable
// from formula evaluation until Clear. Raw length must equal count.
func (h *Holder) SetInput(raw []any, count int) error {
	if h.state == StateInput {
		return ErrInputLocked
	}
	if len(raw) != count {
		return &EntityLengthMismatchError{
			Variable: h.variable.Name(),
			Entity:   h.variable.Entity(),
			Want:     count,
			Got:      len(raw),
		}
	}
	vec := h.variable.NewVector(count)
	for i, r := range raw {
		scalar, err := h.variable.ValidateAndCoerce(r)
		if err != nil {
			return err
		}
		setElement(vec, i, scalar)
	}
	h.values = vec
	h.state = StateInput
	return nil
}

// SetInputVector stores an already-typed vector as INPUT data. Used by
// loaders whose source is typed (e.g., a survey store); scalar coercion
// is skipped but kind and length are still checked.
func (h *Holder) SetInputVector(vec Vector, count int) error {
	if h.state == StateInput {
		return ErrInputLocked
	}
	if vec.Kind() != h.variable.Kind() {
		return &ValidationError{
			Variable: h.variable.Name(),
			Value:    vec.Kind().String(),
			Reason:   "vector kind does not match variable kind",
		}
	}
	if vec.Len() != count {
		return &EntityLengthMismatchError{
			Variable: h.variable.Name(),
			Entity:   h.variable.Entity(),
			Want:     count,
			Got:      vec.Len(),
		}
	}
	h.values = vec
	h.state = StateInput
	return nil
}

// setComputed caches a formula result.
func (h *Holder) setComputed(vec Vector) {
	h.values = vec
	h.state = StateComputed
}

// defaultFill fills the holder with the descriptor default while the
// state stays EMPTY. Policy for formula-less, input-less variables.
func (h *Holder) defaultFill(count int) Vector {
	h.values = h.variable.NewVector(count)
	return h.values
}

// Clear resets the holder to EMPTY and releases the vector.
func (h *Holder) Clear() {
	h.values = nil
	h.state = StateEmpty
}

// setElement writes one coerced scalar into a typed vector. The scalar
// type is guaranteed by ValidateAndCoerce.
func setElement(vec Vector, i int, scalar any) {
	switch vv := vec.(type) {
	case BoolVector:
		vv[i] = scalar.(bool)
	case IntVector:
		vv[i] = scalar.(int32)
	case FloatVector:
		vv[i] = scalar.(float64)
	case DateVector:
		vv[i] = scalar.(time.Time)
	case EnumVector:
		vv[i] = scalar.(int32)
	}
}
