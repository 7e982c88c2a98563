/*
variable.go - Variable descriptors and the input validation pipeline

PURPOSE:
  A Variable declares everything the engine needs to know about one
  column of the simulated population: its value kind, typed default,
  owning entity kind, optional legislative validity window, and - for
  enumerated variables - the enumeration itself. Descriptors are
  immutable once registered; many simulations share the same set.

VALIDATION PIPELINE:
  ValidateAndCoerce turns arbitrary external input (JSON numbers,
  strings, booleans, nil) into the internal typed scalar, or fails with
  a ValidationError naming the variable and the offending value.

  Per-kind policy:
  - bool:  accepts booleans and 0/1 numerics
  - int:   accepts integral numerics; an optional guard narrows the
           accepted range (age-like variables: >= 0 or the -9999
           "unknown" sentinel, all other negatives rejected)
  - float: accepts numerics
  - date:  accepts ISO-8601 date strings
  - enum:  accepts a code or a label; INVALID input falls back to the
           default code (or the lowest code) instead of failing - a
           deliberate permissiveness policy for legacy survey data,
           logged at WARN so real data-entry errors stay visible

  Absent input (nil) coerces to the descriptor default for every kind.

SCHEMA EXPORT:
  Schema() projects the descriptor into a metadata record for external
  schema/documentation consumers. Pure projection, no side effects.
*/
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// =============================================================================
// VARIABLE - Immutable descriptor for one population column
// =============================================================================

// Variable describes a single variable: typed storage plus registration
// metadata. Attach a formula through the RegistryBuilder, not here.
type Variable struct {
	name   string
	kind   ValueKind
	entity EntityKind
	label  string

	defBool  bool
	defInt   int32
	defFloat float64
	defDate  time.Time

	start *time.Time
	end   *time.Time

	enum  *Enum
	guard IntGuard
}

// IntGuard narrows the accepted range of an integer variable.
type IntGuard func(int32) error

// NonNegativeOrSentinel accepts values >= 0 and the given sentinel
// (conventionally -9999, meaning "unknown"); every other negative value
// is rejected.
func NonNegativeOrSentinel(sentinel int32) IntGuard {
	return func(v int32) error {
		if v >= 0 || v == sentinel {
			return nil
		}
		return fmt.Errorf("must be >= 0 or the %d sentinel", sentinel)
	}
}

// NonNegative rejects every negative value. Used by index-like
// variables (household links) where no sentinel exists.
func NonNegative() IntGuard {
	return func(v int32) error {
		if v >= 0 {
			return nil
		}
		return fmt.Errorf("must be >= 0")
	}
}

// Option customizes a Variable at construction time.
type Option func(*Variable)

// WithLabel sets the human-readable label exported in the schema.
func WithLabel(label string) Option {
	return func(v *Variable) { v.label = label }
}

// WithStart bounds the variable's legislative validity from below.
func WithStart(t time.Time) Option {
	return func(v *Variable) { tt := t; v.start = &tt }
}

// WithEnd bounds the variable's legislative validity from above.
func WithEnd(t time.Time) Option {
	return func(v *Variable) { tt := t; v.end = &tt }
}

// WithDefaultBool overrides the false default of a boolean variable.
func WithDefaultBool(d bool) Option {
	return func(v *Variable) { v.defBool = d }
}

// WithDefaultInt overrides the zero default of an integer or enumerated
// variable. For enums the default should be a defined code; an undefined
// default makes the fallback policy use the lowest code instead.
func WithDefaultInt(d int32) Option {
	return func(v *Variable) { v.defInt = d }
}

// WithDefaultFloat overrides the zero default of a float variable.
func WithDefaultFloat(d float64) Option {
	return func(v *Variable) { v.defFloat = d }
}

// WithIntGuard installs a range guard on an integer variable.
func WithIntGuard(g IntGuard) Option {
	return func(v *Variable) { v.guard = g }
}

func newVariable(name string, kind ValueKind, entity EntityKind, opts []Option) *Variable {
	v := &Variable{name: name, kind: kind, entity: entity}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewBool declares a boolean variable.
func NewBool(name string, entity EntityKind, opts ...Option) *Variable {
	return newVariable(name, KindBool, entity, opts)
}

// NewInt declares an integer variable.
func NewInt(name string, entity EntityKind, opts ...Option) *Variable {
	return newVariable(name, KindInt, entity, opts)
}

// NewFloat declares a float variable.
func NewFloat(name string, entity EntityKind, opts ...Option) *Variable {
	return newVariable(name, KindFloat, entity, opts)
}

// NewDate declares a date variable. The default is the zero date.
func NewDate(name string, entity EntityKind, opts ...Option) *Variable {
	return newVariable(name, KindDate, entity, opts)
}

// NewEnumVar declares an enumerated-integer variable over enum.
func NewEnumVar(name string, entity EntityKind, enum *Enum, opts ...Option) *Variable {
	v := newVariable(name, KindEnum, entity, opts)
	v.enum = enum
	return v
}

// Accessors

func (v *Variable) Name() string       { return v.name }
func (v *Variable) Kind() ValueKind    { return v.kind }
func (v *Variable) Entity() EntityKind { return v.entity }
func (v *Variable) Label() string      { return v.label }
func (v *Variable) Enum() *Enum        { return v.enum }

// ActiveAt reports whether the variable is legislatively meaningful at
// the given date. Variables without a validity window are always active.
func (v *Variable) ActiveAt(date time.Time) bool {
	if v.start != nil && date.Before(*v.start) {
		return false
	}
	if v.end != nil && date.After(*v.end) {
		return false
	}
	return true
}

// Default returns the typed default scalar for the variable's kind.
func (v *Variable) Default() any {
	switch v.kind {
	case KindBool:
		return v.defBool
	case KindInt:
		return v.defInt
	case KindFloat:
		return v.defFloat
	case KindDate:
		return v.defDate
	case KindEnum:
		return v.enumFallback()
	default:
		return nil
	}
}

// NewVector allocates a vector of n elements filled with the default.
func (v *Variable) NewVector(n int) Vector {
	switch v.kind {
	case KindBool:
		out := make(BoolVector, n)
		if v.defBool {
			for i := range out {
				out[i] = true
			}
		}
		return out
	case KindInt:
		out := make(IntVector, n)
		for i := range out {
			out[i] = v.defInt
		}
		return out
	case KindFloat:
		out := make(FloatVector, n)
		for i := range out {
			out[i] = v.defFloat
		}
		return out
	case KindDate:
		out := make(DateVector, n)
		for i := range out {
			out[i] = v.defDate
		}
		return out
	case KindEnum:
		out := make(EnumVector, n)
		code := v.enumFallback()
		for i := range out {
			out[i] = code
		}
		return out
	default:
		return nil
	}
}

// =============================================================================
// VALIDATION / COERCION
// =============================================================================

// ValidateAndCoerce turns one raw external value into the variable's
// internal scalar type. nil coerces to the default for every kind.
func (v *Variable) ValidateAndCoerce(raw any) (any, error) {
	if raw == nil {
		return v.Default(), nil
	}
	switch v.kind {
	case KindBool:
		return v.coerceBool(raw)
	case KindInt:
		return v.coerceInt(raw)
	case KindFloat:
		return v.coerceFloat(raw)
	case KindDate:
		return v.coerceDate(raw)
	case KindEnum:
		return v.coerceEnum(raw), nil
	default:
		return nil, &ValidationError{Variable: v.name, Value: raw, Reason: "unsupported value kind"}
	}
}

func (v *Variable) coerceBool(raw any) (any, error) {
	switch x := raw.(type) {
	case bool:
		return x, nil
	default:
		if n, ok := asInt64(raw); ok && (n == 0 || n == 1) {
			return n == 1, nil
		}
	}
	return nil, &ValidationError{Variable: v.name, Value: raw, Reason: "expected a boolean-like scalar"}
}

func (v *Variable) coerceInt(raw any) (any, error) {
	n, ok := asInt64(raw)
	if !ok {
		return nil, &ValidationError{Variable: v.name, Value: raw, Reason: "expected an integer scalar"}
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, &ValidationError{Variable: v.name, Value: raw, Reason: "out of int32 range"}
	}
	value := int32(n)
	if v.guard != nil {
		if err := v.guard(value); err != nil {
			return nil, &ValidationError{Variable: v.name, Value: raw, Reason: err.Error()}
		}
	}
	return value, nil
}

func (v *Variable) coerceFloat(raw any) (any, error) {
	f, ok := asFloat64(raw)
	if !ok {
		return nil, &ValidationError{Variable: v.name, Value: raw, Reason: "expected a numeric scalar"}
	}
	return f, nil
}

func (v *Variable) coerceDate(raw any) (any, error) {
	switch x := raw.(type) {
	case time.Time:
		return x.UTC().Truncate(24 * time.Hour), nil
	case string:
		t, err := time.ParseInLocation("2006-01-02", x, time.UTC)
		if err != nil {
			return nil, &ValidationError{Variable: v.name, Value: raw, Reason: "expected an ISO-8601 date"}
		}
		return t, nil
	}
	return nil, &ValidationError{Variable: v.name, Value: raw, Reason: "expected an ISO-8601 date string"}
}

// coerceEnum never fails: invalid input falls back to the default code
// (or the lowest defined code). Documented permissiveness policy for
// legacy input data; see package comment.
func (v *Variable) coerceEnum(raw any) int32 {
	if n, ok := asInt64(raw); ok {
		code := int32(n)
		if v.enum != nil && v.enum.Has(code) {
			return code
		}
		return v.enumFallbackLogged(raw)
	}
	if s, ok := raw.(string); ok && v.enum != nil {
		if code, found := v.enum.CodeForLabel(s); found {
			return code
		}
	}
	return v.enumFallbackLogged(raw)
}

// enumFallback returns the descriptor default when it is a defined code,
// else the lowest defined code.
func (v *Variable) enumFallback() int32 {
	if v.enum == nil {
		return v.defInt
	}
	if v.enum.Has(v.defInt) {
		return v.defInt
	}
	return v.enum.LowestCode()
}

func (v *Variable) enumFallbackLogged(raw any) int32 {
	code := v.enumFallback()
	slog.Warn("enum input fell back to default code",
		"variable", v.name, "input", raw, "code", code)
	return code
}

func asInt64(raw any) (int64, bool) {
	switch x := raw.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), true
		}
	case float32:
		f := float64(x)
		if f == math.Trunc(f) {
			return int64(f), true
		}
	}
	return 0, false
}

func asFloat64(raw any) (float64, bool) {
	switch x := raw.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

// =============================================================================
// SCHEMA EXPORT - Metadata projection for external schema consumers
// =============================================================================

// SchemaEnumItem is one code/label pair in a schema record, in code order.
type SchemaEnumItem struct {
	Code  int32  `json:"code"`
	Label string `json:"label"`
}

// Schema is the exported metadata record of a variable.
type Schema struct {
	Type    string           `json:"@type"`
	Name    string           `json:"name"`
	Label   string           `json:"label,omitempty"`
	Entity  string           `json:"entity"`
	Default any              `json:"default,omitempty"`
	Start   string           `json:"start,omitempty"`
	End     string           `json:"end,omitempty"`
	Labels  []SchemaEnumItem `json:"labels,omitempty"`
	Formula bool             `json:"formula,omitempty"`
}

// Schema exports the descriptor's metadata record.
func (v *Variable) Schema() Schema {
	s := Schema{
		Type:   v.kind.String(),
		Name:   v.name,
		Label:  v.label,
		Entity: string(v.entity),
	}
	switch v.kind {
	case KindDate:
		if !v.defDate.IsZero() {
			s.Default = v.defDate.Format("2006-01-02")
		}
	default:
		s.Default = v.Default()
	}
	if v.start != nil {
		s.Start = v.start.Format("2006-01-02")
	}
	if v.end != nil {
		s.End = v.end.Format("2006-01-02")
	}
	if v.enum != nil {
		for _, it := range v.enum.Items() {
			s.Labels = append(s.Labels, SchemaEnumItem{Code: it.Code, Label: it.Label})
		}
	}
	return s
}
