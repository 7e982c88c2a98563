package engine_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/warp/fiscal-engine/engine"
	"github.com/warp/fiscal-engine/params"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const individual engine.EntityKind = "individual"

func evalDate() time.Time {
	return time.Date(2014, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func snapshotWithRate(t *testing.T, rate float64) *params.Snapshot {
	t.Helper()
	snap, err := params.NewSnapshot(evalDate(), map[string]any{
		"tax": map[string]any{"rate": rate},
	})
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return snap
}

// taxFormula computes salary * tax.rate. calls counts invocations so
// tests can assert memoization.
func taxFormula(calls *int) engine.Formula {
	return func(ctx *engine.FormulaContext) (engine.Vector, error) {
		*calls++
		salary, err := ctx.Floats("salary")
		if err != nil {
			return nil, err
		}
		rate, err := ctx.Params().Float("tax.rate")
		if err != nil {
			return nil, err
		}
		out := make(engine.FloatVector, ctx.Count())
		for i, s := range salary {
			out[i] = s * rate
		}
		return out, nil
	}
}

// newTaxRegistry declares salary (input) and tax (formula).
func newTaxRegistry(t *testing.T, calls *int) *engine.Registry {
	t.Helper()
	b := engine.NewRegistryBuilder()
	b.Add(engine.NewFloat("salary", individual))
	b.AddFormula(engine.NewFloat("tax", individual), taxFormula(calls))
	registry, err := b.Build()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return registry
}

func newTaxSimulation(t *testing.T, calls *int, rate, defaultRate float64) *engine.Simulation {
	t.Helper()
	registry := newTaxRegistry(t, calls)
	sim := engine.NewSimulation(registry, evalDate(), snapshotWithRate(t, rate), snapshotWithRate(t, defaultRate))
	if err := sim.SetMemberCount(individual, 3); err != nil {
		t.Fatalf("set member count: %v", err)
	}
	if err := sim.SetInput("salary", []any{1000.0, 0.0, 500.0}); err != nil {
		t.Fatalf("set salary input: %v", err)
	}
	return sim
}

func assertFloats(t *testing.T, v engine.Vector, want []float64) {
	t.Helper()
	got, err := engine.Floats(v)
	if err != nil {
		t.Fatalf("numeric view: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

// =============================================================================
// EVALUATION TESTS
// =============================================================================

func TestCompute_TaxScenario(t *testing.T) {
	// GIVEN: 3 individuals with salary input [1000, 0, 500], tax = 10%
	// WHEN: Computing tax
	// THEN: Result is [100, 0, 50] and the holder transitions to COMPUTED

	calls := 0
	sim := newTaxSimulation(t, &calls, 0.1, 0.1)

	result, err := sim.Compute("tax")
	if err != nil {
		t.Fatalf("compute tax: %v", err)
	}
	assertFloats(t, result, []float64{100, 0, 50})

	holder, err := sim.Holder("tax")
	if err != nil {
		t.Fatalf("holder: %v", err)
	}
	if holder.State() != engine.StateComputed {
		t.Fatalf("state: got %v, want computed", holder.State())
	}
	if calls != 1 {
		t.Fatalf("formula ran %d times, want 1", calls)
	}
}

func TestCompute_Memoization(t *testing.T) {
	// GIVEN: A computed variable
	// WHEN: Computing it again
	// THEN: The cached vector returns and the formula does not run again

	calls := 0
	sim := newTaxSimulation(t, &calls, 0.1, 0.1)

	first, err := sim.Compute("tax")
	if err != nil {
		t.Fatalf("first compute: %v", err)
	}
	second, err := sim.Compute("tax")
	if err != nil {
		t.Fatalf("second compute: %v", err)
	}

	if calls != 1 {
		t.Fatalf("formula ran %d times, want 1", calls)
	}
	assertFloats(t, second, []float64{100, 0, 50})
	if &first.(engine.FloatVector)[0] != &second.(engine.FloatVector)[0] {
		t.Fatal("second compute returned a different array")
	}
}

func TestCompute_InputShieldsFormula(t *testing.T) {
	// GIVEN: A variable with a registered formula AND direct input data
	// WHEN: Computing it
	// THEN: The input values return unchanged; the formula never runs

	calls := 0
	sim := newTaxSimulation(t, &calls, 0.1, 0.1)
	if err := sim.SetInput("tax", []any{7.0, 7.0, 7.0}); err != nil {
		t.Fatalf("set tax input: %v", err)
	}

	result, err := sim.Compute("tax")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	assertFloats(t, result, []float64{7, 7, 7})
	if calls != 0 {
		t.Fatalf("formula ran %d times, want 0", calls)
	}
}

func TestCompute_DefaultFillWithoutFormula(t *testing.T) {
	// GIVEN: A variable with neither formula nor input
	// WHEN: Computing it
	// THEN: The default-filled vector returns and the holder stays EMPTY

	b := engine.NewRegistryBuilder()
	b.Add(engine.NewFloat("pension", individual, engine.WithDefaultFloat(2.5)))
	registry, err := b.Build()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	sim := engine.NewSimulation(registry, evalDate(), snapshotWithRate(t, 0.1), nil)
	if err := sim.SetMemberCount(individual, 2); err != nil {
		t.Fatalf("set member count: %v", err)
	}

	result, err := sim.Compute("pension")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	assertFloats(t, result, []float64{2.5, 2.5})

	holder, _ := sim.Holder("pension")
	if holder.State() != engine.StateEmpty {
		t.Fatalf("state: got %v, want empty", holder.State())
	}
}

func TestCompute_UnknownVariable(t *testing.T) {
	calls := 0
	sim := newTaxSimulation(t, &calls, 0.1, 0.1)

	_, err := sim.Compute("nope")
	if !errors.Is(err, engine.ErrUnknownVariable) {
		t.Fatalf("got %v, want ErrUnknownVariable", err)
	}
}

func TestCompute_FormulaErrorPropagates(t *testing.T) {
	// GIVEN: A formula that fails
	// WHEN: Computing it
	// THEN: The error reaches the caller unchanged and nothing is cached

	boom := errors.New("missing parameter")
	b := engine.NewRegistryBuilder()
	b.AddFormula(engine.NewFloat("broken", individual), func(ctx *engine.FormulaContext) (engine.Vector, error) {
		return nil, boom
	})
	registry, err := b.Build()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	sim := engine.NewSimulation(registry, evalDate(), snapshotWithRate(t, 0.1), nil)
	if err := sim.SetMemberCount(individual, 1); err != nil {
		t.Fatalf("set member count: %v", err)
	}

	_, err = sim.Compute("broken")
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want the formula's own error", err)
	}
	holder, _ := sim.Holder("broken")
	if holder.State() != engine.StateEmpty {
		t.Fatalf("failed formula must not cache, state %v", holder.State())
	}
}

func TestCompute_FormulaLengthMismatch(t *testing.T) {
	b := engine.NewRegistryBuilder()
	b.AddFormula(engine.NewFloat("short", individual), func(ctx *engine.FormulaContext) (engine.Vector, error) {
		return engine.FloatVector{1}, nil
	})
	registry, err := b.Build()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	sim := engine.NewSimulation(registry, evalDate(), snapshotWithRate(t, 0.1), nil)
	if err := sim.SetMemberCount(individual, 3); err != nil {
		t.Fatalf("set member count: %v", err)
	}

	_, err = sim.Compute("short")
	if !errors.Is(err, engine.ErrLengthMismatch) {
		t.Fatalf("got %v, want ErrLengthMismatch", err)
	}
}

// =============================================================================
// CYCLE DETECTION TESTS
// =============================================================================

// newCycleRegistry wires a -> b -> c -> a.
func newCycleRegistry(t *testing.T) *engine.Registry {
	t.Helper()
	depends := func(next string) engine.Formula {
		return func(ctx *engine.FormulaContext) (engine.Vector, error) {
			return ctx.Compute(next)
		}
	}
	b := engine.NewRegistryBuilder()
	b.AddFormula(engine.NewFloat("a", individual), depends("b"))
	b.AddFormula(engine.NewFloat("b", individual), depends("c"))
	b.AddFormula(engine.NewFloat("c", individual), depends("a"))
	registry, err := b.Build()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return registry
}

func TestCompute_CycleDetected(t *testing.T) {
	// GIVEN: Dependency chain a -> b -> c -> a
	// WHEN: Requesting any of the three
	// THEN: CyclicDependencyError names all three variables

	registry := newCycleRegistry(t)
	for _, entry := range []string{"a", "b", "c"} {
		t.Run(entry, func(t *testing.T) {
			sim := engine.NewSimulation(registry, evalDate(), snapshotWithRate(t, 0.1), nil)
			if err := sim.SetMemberCount(individual, 1); err != nil {
				t.Fatalf("set member count: %v", err)
			}

			_, err := sim.Compute(entry)
			var cycleErr *engine.CyclicDependencyError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("got %v, want CyclicDependencyError", err)
			}
			named := make(map[string]bool)
			for _, n := range cycleErr.Chain {
				named[n] = true
			}
			for _, n := range []string{"a", "b", "c"} {
				if !named[n] {
					t.Fatalf("cycle %v does not name %q", cycleErr.Chain, n)
				}
			}
		})
	}
}

// =============================================================================
// REFORM MODE TESTS
// =============================================================================

func TestReform_IndependentCaches(t *testing.T) {
	// GIVEN: salary [1000, 0, 500], actual rate 10%, baseline rate 20%
	// WHEN: Computing tax in the actual simulation and its baseline fork
	// THEN: Results are [100,0,50] and [200,0,100]; neither cache feeds
	//       the other

	calls := 0
	sim := newTaxSimulation(t, &calls, 0.1, 0.2)
	baseline := sim.BaselineFork()

	actual, err := sim.Compute("tax")
	if err != nil {
		t.Fatalf("actual compute: %v", err)
	}
	reform, err := baseline.Compute("tax")
	if err != nil {
		t.Fatalf("baseline compute: %v", err)
	}

	assertFloats(t, actual, []float64{100, 0, 50})
	assertFloats(t, reform, []float64{200, 0, 100})
	if calls != 2 {
		t.Fatalf("formula ran %d times, want 2 (once per simulation)", calls)
	}

	// Input holders are shared; computed holders are not.
	simSalary, _ := sim.Holder("salary")
	forkSalary, _ := baseline.Holder("salary")
	if simSalary != forkSalary {
		t.Fatal("input holders must be shared with the fork")
	}
	simTax, _ := sim.Holder("tax")
	forkTax, _ := baseline.Holder("tax")
	if simTax == forkTax {
		t.Fatal("computed holders must not be shared with the fork")
	}

	diff, err := engine.Difference(actual, reform)
	if err != nil {
		t.Fatalf("difference: %v", err)
	}
	assertFloats(t, diff, []float64{-100, 0, -50})
}

func TestReform_RecomputeAfterFork(t *testing.T) {
	// Computing in the actual simulation first must not satisfy the
	// baseline's request from the actual cache (or vice versa).

	calls := 0
	sim := newTaxSimulation(t, &calls, 0.1, 0.2)
	if _, err := sim.Compute("tax"); err != nil {
		t.Fatalf("pre-fork compute: %v", err)
	}

	baseline := sim.BaselineFork()
	reform, err := baseline.Compute("tax")
	if err != nil {
		t.Fatalf("baseline compute: %v", err)
	}
	assertFloats(t, reform, []float64{200, 0, 100})
}

// =============================================================================
// INPUT VALIDATION AT THE SIMULATION SURFACE
// =============================================================================

func TestSetInput_LengthMismatch(t *testing.T) {
	calls := 0
	registry := newTaxRegistry(t, &calls)
	sim := engine.NewSimulation(registry, evalDate(), snapshotWithRate(t, 0.1), nil)
	if err := sim.SetMemberCount(individual, 3); err != nil {
		t.Fatalf("set member count: %v", err)
	}

	err := sim.SetInput("salary", []any{1.0, 2.0})
	if !errors.Is(err, engine.ErrLengthMismatch) {
		t.Fatalf("got %v, want ErrLengthMismatch", err)
	}
}

func TestSetInput_CannotOverwriteInput(t *testing.T) {
	calls := 0
	sim := newTaxSimulation(t, &calls, 0.1, 0.1)

	err := sim.SetInput("salary", []any{1.0, 2.0, 3.0})
	if !errors.Is(err, engine.ErrInputLocked) {
		t.Fatalf("got %v, want ErrInputLocked", err)
	}
}

func TestSetInputVector_FeedsFormula(t *testing.T) {
	calls := 0
	registry := newTaxRegistry(t, &calls)
	sim := engine.NewSimulation(registry, evalDate(), snapshotWithRate(t, 0.1), nil)
	if err := sim.SetMemberCount(individual, 3); err != nil {
		t.Fatalf("set member count: %v", err)
	}

	// A typed loader hands over the vector directly, no coercion pass.
	if err := sim.SetInputVector("salary", engine.FloatVector{1000, 0, 500}); err != nil {
		t.Fatalf("set input vector: %v", err)
	}

	h, err := sim.Holder("salary")
	if err != nil {
		t.Fatalf("holder: %v", err)
	}
	if h.State() != engine.StateInput {
		t.Fatalf("holder state = %v, want INPUT", h.State())
	}

	v, err := sim.Compute("tax")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	assertFloats(t, v, []float64{100, 0, 50})
}

func TestSetInputVector_KindMismatch(t *testing.T) {
	calls := 0
	registry := newTaxRegistry(t, &calls)
	sim := engine.NewSimulation(registry, evalDate(), snapshotWithRate(t, 0.1), nil)
	if err := sim.SetMemberCount(individual, 2); err != nil {
		t.Fatalf("set member count: %v", err)
	}

	err := sim.SetInputVector("salary", engine.IntVector{1, 2})
	if !errors.Is(err, engine.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}

func TestSetInputVector_LengthMismatch(t *testing.T) {
	calls := 0
	registry := newTaxRegistry(t, &calls)
	sim := engine.NewSimulation(registry, evalDate(), snapshotWithRate(t, 0.1), nil)
	if err := sim.SetMemberCount(individual, 3); err != nil {
		t.Fatalf("set member count: %v", err)
	}

	err := sim.SetInputVector("salary", engine.FloatVector{1, 2})
	if !errors.Is(err, engine.ErrLengthMismatch) {
		t.Fatalf("got %v, want ErrLengthMismatch", err)
	}
}

func TestSetInputVector_CannotOverwriteInput(t *testing.T) {
	calls := 0
	sim := newTaxSimulation(t, &calls, 0.1, 0.1)

	err := sim.SetInputVector("salary", engine.FloatVector{1, 2, 3})
	if !errors.Is(err, engine.ErrInputLocked) {
		t.Fatalf("got %v, want ErrInputLocked", err)
	}
}

func TestClear_AllowsRecompute(t *testing.T) {
	calls := 0
	sim := newTaxSimulation(t, &calls, 0.1, 0.1)

	if _, err := sim.Compute("tax"); err != nil {
		t.Fatalf("compute: %v", err)
	}
	if err := sim.Clear("tax"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := sim.Compute("tax"); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if calls != 2 {
		t.Fatalf("formula ran %d times, want 2 after clear", calls)
	}
}

// Example of the dependency-chain shape most models take: net depends
// on tax which depends on salary, all through the standard path.
func ExampleSimulation_Compute() {
	b := engine.NewRegistryBuilder()
	b.Add(engine.NewFloat("salary", "individual"))
	b.AddFormula(engine.NewFloat("tax", "individual"), func(ctx *engine.FormulaContext) (engine.Vector, error) {
		salary, err := ctx.Floats("salary")
		if err != nil {
			return nil, err
		}
		out := make(engine.FloatVector, ctx.Count())
		for i, s := range salary {
			out[i] = s * 0.1
		}
		return out, nil
	})
	b.AddFormula(engine.NewFloat("net", "individual"), func(ctx *engine.FormulaContext) (engine.Vector, error) {
		salary, err := ctx.Floats("salary")
		if err != nil {
			return nil, err
		}
		tax, err := ctx.Floats("tax")
		if err != nil {
			return nil, err
		}
		out := make(engine.FloatVector, ctx.Count())
		for i := range out {
			out[i] = salary[i] - tax[i]
		}
		return out, nil
	})
	registry, _ := b.Build()

	date := time.Date(2014, time.January, 1, 0, 0, 0, 0, time.UTC)
	snap, _ := params.NewSnapshot(date, map[string]any{})
	sim := engine.NewSimulation(registry, date, snap, nil)
	_ = sim.SetMemberCount("individual", 1)
	_ = sim.SetInput("salary", []any{2000.0})

	net, _ := sim.Compute("net")
	fmt.Println(net.At(0))
	// Output: 1800
}
