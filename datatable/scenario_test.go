package datatable_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/warp/fiscal-engine/datatable"
	"github.com/warp/fiscal-engine/engine"
	"github.com/warp/fiscal-engine/params"
)

const (
	person    engine.EntityKind = "person"
	household engine.EntityKind = "household"
)

func newTestRegistry(t *testing.T) *engine.Registry {
	t.Helper()
	b := engine.NewRegistryBuilder()
	b.Add(engine.NewFloat("income", person))
	b.Add(engine.NewBool("active", person))
	b.Add(engine.NewFloat("rent", household))
	registry, err := b.Build()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return registry
}

func newTestSimulation(t *testing.T) *engine.Simulation {
	t.Helper()
	law, err := params.NewSnapshot(time.Date(2014, time.January, 1, 0, 0, 0, 0, time.UTC), nil)
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return engine.NewSimulation(newTestRegistry(t), law.Date(), law, nil)
}

const scenarioYAML = `
date: 2014-01-01
entities:
  person:
    count: 2
    inputs:
      income: [30000, 15000]
      active: [true, false]
  household:
    count: 1
    inputs:
      rent: [9600]
`

func TestParseScenario_FullDocument(t *testing.T) {
	// GIVEN: A two-entity YAML scenario
	sc, err := datatable.ParseScenario([]byte(scenarioYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	// THEN: Date, counts and columns all come through
	date, ok, err := sc.EvaluationDate()
	if err != nil || !ok {
		t.Fatalf("evaluation date: ok=%v err=%v", ok, err)
	}
	if want := time.Date(2014, time.January, 1, 0, 0, 0, 0, time.UTC); !date.Equal(want) {
		t.Errorf("date = %v, want %v", date, want)
	}
	if got := sc.Entities["person"].Count; got != 2 {
		t.Errorf("person count = %d, want 2", got)
	}
	if got := len(sc.Entities["person"].Inputs["income"]); got != 2 {
		t.Errorf("income column length = %d, want 2", got)
	}
}

func TestParseScenario_NoEntities(t *testing.T) {
	if _, err := datatable.ParseScenario([]byte("date: 2014-01-01\n")); err == nil {
		t.Fatal("expected error for scenario without entities")
	}
}

func TestEvaluationDate_Unset(t *testing.T) {
	sc, err := datatable.ParseScenario([]byte("entities:\n  person:\n    count: 1\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok, err := sc.EvaluationDate(); ok || err != nil {
		t.Errorf("EvaluationDate() = ok=%v err=%v, want unset", ok, err)
	}
}

func TestApply_PopulatesInputHolders(t *testing.T) {
	// GIVEN: A parsed scenario and a fresh simulation
	sc, err := datatable.ParseScenario([]byte(scenarioYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sim := newTestSimulation(t)

	// WHEN: Applying the scenario
	if err := sc.Apply(sim); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// THEN: Every named column is an INPUT holder with coerced values
	h, err := sim.Holder("income")
	if err != nil {
		t.Fatalf("holder: %v", err)
	}
	if h.State() != engine.StateInput {
		t.Errorf("income state = %v, want %v", h.State(), engine.StateInput)
	}
	values, err := engine.Floats(h.Values())
	if err != nil {
		t.Fatalf("floats: %v", err)
	}
	if values[0] != 30000 || values[1] != 15000 {
		t.Errorf("income = %v, want [30000 15000]", values)
	}
}

func TestApply_UnknownVariable(t *testing.T) {
	sc := &datatable.Scenario{Entities: map[string]datatable.EntityBlock{
		"person": {Count: 1, Inputs: map[string][]any{"wages": {100.0}}},
	}}
	err := sc.Apply(newTestSimulation(t))
	if !errors.Is(err, engine.ErrUnknownVariable) {
		t.Errorf("err = %v, want ErrUnknownVariable", err)
	}
}

func TestApply_WrongEntityBlock(t *testing.T) {
	// rent belongs to the household, not the person.
	sc := &datatable.Scenario{Entities: map[string]datatable.EntityBlock{
		"person": {Count: 1, Inputs: map[string][]any{"rent": {100.0}}},
	}}
	if err := sc.Apply(newTestSimulation(t)); err == nil {
		t.Fatal("expected error for column under the wrong entity")
	}
}

func TestApply_ColumnLengthMismatch(t *testing.T) {
	sc := &datatable.Scenario{Entities: map[string]datatable.EntityBlock{
		"person": {Count: 3, Inputs: map[string][]any{"income": {100.0, 200.0}}},
	}}
	err := sc.Apply(newTestSimulation(t))
	if !errors.Is(err, engine.ErrLengthMismatch) {
		t.Errorf("err = %v, want ErrLengthMismatch", err)
	}
}

func TestApply_NonPositiveCount(t *testing.T) {
	sc := &datatable.Scenario{Entities: map[string]datatable.EntityBlock{
		"person": {Count: 0},
	}}
	if err := sc.Apply(newTestSimulation(t)); err == nil {
		t.Fatal("expected error for zero member count")
	}
}

func TestLoadScenarioFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(scenarioYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sc, err := datatable.LoadScenarioFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := sc.Entities["household"].Count; got != 1 {
		t.Errorf("household count = %d, want 1", got)
	}

	if _, err := datatable.LoadScenarioFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
