package sqlite_test

import (
	"context"
	"testing"

	"github.com/warp/fiscal-engine/datatable"
	"github.com/warp/fiscal-engine/engine"
	"github.com/warp/fiscal-engine/factory"
	"github.com/warp/fiscal-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func demoScenario(t *testing.T) *datatable.Scenario {
	t.Helper()
	f, err := factory.New()
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	sc, err := f.DemoScenario("survey_extract")
	if err != nil {
		t.Fatalf("demo scenario: %v", err)
	}
	return sc
}

func TestSaveSurvey_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	sc := demoScenario(t)

	id, err := st.SaveSurvey(ctx, "census-extract", sc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := st.LoadScenario(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Date != sc.Date {
		t.Errorf("date = %q, want %q", loaded.Date, sc.Date)
	}
	if got := loaded.Entities["individu"].Count; got != 3 {
		t.Errorf("individu count = %d, want 3", got)
	}
	if got := len(loaded.Entities["individu"].Inputs["salaire"]); got != 3 {
		t.Errorf("salaire column length = %d, want 3", got)
	}
	// Enum labels survive storage untouched; coercion happens on load.
	if got := loaded.Entities["individu"].Inputs["statut_marital"][0]; got != "Marié" {
		t.Errorf("statut_marital[0] = %v, want Marié", got)
	}
}

func TestSaveSurvey_DuplicateName(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	sc := demoScenario(t)

	if _, err := st.SaveSurvey(ctx, "census", sc); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := st.SaveSurvey(ctx, "census", sc); err == nil {
		t.Fatal("expected unique constraint error on duplicate name")
	}
}

func TestLoadInto_FeedsSimulation(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	sc := demoScenario(t)

	id, err := st.SaveSurvey(ctx, "census", sc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	f, err := factory.New()
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	date, _, err := sc.EvaluationDate()
	if err != nil {
		t.Fatalf("date: %v", err)
	}
	sim, err := f.NewSimulation(date)
	if err != nil {
		t.Fatalf("simulation: %v", err)
	}

	if err := st.LoadInto(ctx, id, sim); err != nil {
		t.Fatalf("load into: %v", err)
	}

	v, err := sim.Compute("revenu_disponible")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	got, err := engine.Floats(v)
	if err != nil {
		t.Fatalf("floats: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("result length = %d, want 3", len(got))
	}
	// Second member has no salary: only the household allowance share
	// (4800 split between two members) remains.
	if got[1] != 2400 {
		t.Errorf("member 1 disposable income = %v, want 2400", got[1])
	}
}

func TestResults_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	id, err := st.SaveSurvey(ctx, "census", demoScenario(t))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	results := map[string]engine.Vector{
		"impot_revenu": engine.FloatVector{1400, 0, 500},
	}
	if err := st.SaveResults(ctx, id, "run-1", results); err != nil {
		t.Fatalf("save results: %v", err)
	}

	loaded, err := st.LoadResults(ctx, id, "run-1")
	if err != nil {
		t.Fatalf("load results: %v", err)
	}
	column := loaded["impot_revenu"]
	if len(column) != 3 || column[0] != 1400.0 {
		t.Errorf("impot_revenu = %v, want [1400 0 500]", column)
	}

	if _, err := st.LoadResults(ctx, id, "run-2"); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestDeleteSurvey_CascadesAndReports(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	id, err := st.SaveSurvey(ctx, "census", demoScenario(t))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.DeleteSurvey(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.LoadScenario(ctx, id); err == nil {
		t.Error("expected load error after delete")
	}
	if err := st.DeleteSurvey(ctx, id); err == nil {
		t.Error("expected error deleting twice")
	}

	surveys, err := st.ListSurveys(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(surveys) != 0 {
		t.Errorf("surveys = %d, want 0", len(surveys))
	}
}
