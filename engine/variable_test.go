package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fiscal-engine/engine"
)

// =============================================================================
// BOOLEAN COERCION
// =============================================================================

func TestValidateAndCoerce_Bool(t *testing.T) {
	v := engine.NewBool("actif", "individual")

	for _, tc := range []struct {
		raw  any
		want bool
	}{
		{true, true},
		{false, false},
		{0, false},
		{1, true},
		{0.0, false},
		{1.0, true},
	} {
		got, err := v.ValidateAndCoerce(tc.raw)
		require.NoError(t, err, "input %v", tc.raw)
		assert.Equal(t, tc.want, got, "input %v", tc.raw)
	}

	for _, bad := range []any{2, "yes", 0.5} {
		_, err := v.ValidateAndCoerce(bad)
		assert.ErrorIs(t, err, engine.ErrValidation, "input %v", bad)
	}
}

// =============================================================================
// NUMERIC COERCION
// =============================================================================

func TestValidateAndCoerce_Int(t *testing.T) {
	v := engine.NewInt("nb_enfants", "individual")

	got, err := v.ValidateAndCoerce(3)
	require.NoError(t, err)
	assert.Equal(t, int32(3), got)

	// JSON numbers arrive as float64; integral values coerce.
	got, err = v.ValidateAndCoerce(42.0)
	require.NoError(t, err)
	assert.Equal(t, int32(42), got)

	// Strings representing numbers fail.
	_, err = v.ValidateAndCoerce("42")
	assert.ErrorIs(t, err, engine.ErrValidation)

	_, err = v.ValidateAndCoerce(1.5)
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestValidateAndCoerce_AgeGuard(t *testing.T) {
	// GIVEN: An age-like variable with the -9999 "unknown" sentinel
	age := engine.NewInt("age", "individual",
		engine.WithDefaultInt(-9999),
		engine.WithIntGuard(engine.NonNegativeOrSentinel(-9999)))

	// Valid: any value >= 0 and the sentinel itself
	for _, ok := range []any{0, 25, 110, -9999} {
		_, err := age.ValidateAndCoerce(ok)
		assert.NoError(t, err, "input %v", ok)
	}

	// Invalid: every other negative value
	for _, bad := range []any{-1, -100, -9998} {
		_, err := age.ValidateAndCoerce(bad)
		assert.ErrorIs(t, err, engine.ErrValidation, "input %v", bad)
	}
}

func TestValidateAndCoerce_Float(t *testing.T) {
	v := engine.NewFloat("salaire", "individual")

	got, err := v.ValidateAndCoerce(1234.5)
	require.NoError(t, err)
	assert.Equal(t, 1234.5, got)

	got, err = v.ValidateAndCoerce(7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)

	_, err = v.ValidateAndCoerce("1234.5")
	assert.ErrorIs(t, err, engine.ErrValidation)
}

// =============================================================================
// DATE COERCION
// =============================================================================

func TestValidateAndCoerce_Date(t *testing.T) {
	v := engine.NewDate("date_naissance", "individual")

	got, err := v.ValidateAndCoerce("1984-06-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(1984, time.June, 15, 0, 0, 0, 0, time.UTC), got)

	for _, bad := range []any{"15/06/1984", "1984-13-01", 19840615} {
		_, err := v.ValidateAndCoerce(bad)
		assert.ErrorIs(t, err, engine.ErrValidation, "input %v", bad)
	}
}

// =============================================================================
// ABSENT INPUT AND DEFAULTS
// =============================================================================

func TestValidateAndCoerce_NilUsesDefault(t *testing.T) {
	salaire := engine.NewFloat("salaire", "individual", engine.WithDefaultFloat(0))
	got, err := salaire.ValidateAndCoerce(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	age := engine.NewInt("age", "individual", engine.WithDefaultInt(-9999))
	got, err = age.ValidateAndCoerce(nil)
	require.NoError(t, err)
	assert.Equal(t, int32(-9999), got)
}

func TestNewVector_DefaultFilled(t *testing.T) {
	age := engine.NewInt("age", "individual", engine.WithDefaultInt(-9999))
	vec := age.NewVector(3)
	require.Equal(t, 3, vec.Len())
	for i := 0; i < 3; i++ {
		assert.Equal(t, int32(-9999), vec.At(i))
	}
}

// =============================================================================
// VALIDITY WINDOW
// =============================================================================

func TestActiveAt_ValidityWindow(t *testing.T) {
	start := time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2015, time.December, 31, 0, 0, 0, 0, time.UTC)
	v := engine.NewFloat("prime", "individual", engine.WithStart(start), engine.WithEnd(end))

	assert.False(t, v.ActiveAt(start.AddDate(0, 0, -1)))
	assert.True(t, v.ActiveAt(start))
	assert.True(t, v.ActiveAt(time.Date(2013, time.July, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, v.ActiveAt(end))
	assert.False(t, v.ActiveAt(end.AddDate(0, 0, 1)))
}

// =============================================================================
// SCHEMA EXPORT
// =============================================================================

func TestSchema_Projection(t *testing.T) {
	enum := engine.NewEnum(
		engine.EnumItem{Code: 0, Label: "Single"},
		engine.EnumItem{Code: 1, Label: "Married"},
	)
	v := engine.NewEnumVar("statut_marital", "individual", enum,
		engine.WithLabel("Marital status"),
		engine.WithDefaultInt(0))

	s := v.Schema()
	assert.Equal(t, "Enumeration", s.Type)
	assert.Equal(t, "statut_marital", s.Name)
	assert.Equal(t, "Marital status", s.Label)
	assert.Equal(t, "individual", s.Entity)
	require.Len(t, s.Labels, 2)
	assert.Equal(t, engine.SchemaEnumItem{Code: 0, Label: "Single"}, s.Labels[0])
	assert.Equal(t, engine.SchemaEnumItem{Code: 1, Label: "Married"}, s.Labels[1])
}
