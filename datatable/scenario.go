/*
Package datatable loads input data into simulations.

PURPOSE:
  The engine only consumes INPUT holders; something has to fill them.
  This package covers the test-case path: a Scenario describes a small
  population (entity counts plus raw input columns) in YAML or JSON and
  injects it into a simulation through the standard validation pipeline.
  The survey path over SQLite lives in store/sqlite.

CONTRACT:
  Once an entity's member count is set, every input column attached to
  it must have exactly that length; Apply fails on the first mismatch
  or validation error and leaves no partial guarantee beyond holders
  already set.

SCENARIO FORMAT:
  date: 2014-01-01
  entities:
    individu:
      count: 3
      inputs:
        salaire: [30000, 0, 15000]
        statut_marital: [Marié, Célibataire, Marié]
    menage:
      count: 1
      inputs:
        loyer: [9600]
*/
package datatable

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/fiscal-engine/engine"
)

// =============================================================================
// SCENARIO - Test-case population description
// =============================================================================

// Scenario is a small, self-contained population: per-entity member
// counts and raw input columns. The same struct doubles as the HTTP
// request body of the simulation endpoint.
type Scenario struct {
	// Date is the evaluation date, ISO formatted. Optional; callers may
	// fix the date themselves.
	Date string `yaml:"date,omitempty" json:"date,omitempty"`

	Entities map[string]EntityBlock `yaml:"entities" json:"entities"`
}

// EntityBlock carries one entity's member count and input columns.
type EntityBlock struct {
	Count  int              `yaml:"count" json:"count"`
	Inputs map[string][]any `yaml:"inputs,omitempty" json:"inputs,omitempty"`
}

// ParseScenario parses a YAML (or JSON, a YAML subset) scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(sc.Entities) == 0 {
		return nil, fmt.Errorf("parse scenario: no entities")
	}
	return &sc, nil
}

// LoadScenarioFile parses a scenario from disk.
func LoadScenarioFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// EvaluationDate returns the scenario's date, or ok=false when unset.
func (sc *Scenario) EvaluationDate() (time.Time, bool, error) {
	if sc.Date == "" {
		return time.Time{}, false, nil
	}
	t, err := time.ParseInLocation("2006-01-02", sc.Date, time.UTC)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("scenario date %q: %w", sc.Date, err)
	}
	return t, true, nil
}

// Apply sets member counts and injects every input column into sim
// through the variables' validation pipelines. Input variables must be
// registered and owned by the entity block that names them.
func (sc *Scenario) Apply(sim *engine.Simulation) error {
	registry := sim.Registry()

	for _, kind := range sortedKinds(sc.Entities) {
		block := sc.Entities[kind]
		if block.Count <= 0 {
			return fmt.Errorf("entity %q: count must be positive", kind)
		}
		if err := sim.SetMemberCount(engine.EntityKind(kind), block.Count); err != nil {
			return err
		}
		for _, name := range sortedNames(block.Inputs) {
			owner, ok := registry.Owner(name)
			if !ok {
				return &engine.UnknownVariableError{Variable: name}
			}
			if owner != engine.EntityKind(kind) {
				return fmt.Errorf("variable %q belongs to entity %q, not %q", name, owner, kind)
			}
			if err := sim.SetInput(name, block.Inputs[name]); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedKinds(blocks map[string]EntityBlock) []string {
	out := make([]string, 0, len(blocks))
	for kind := range blocks {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}

func sortedNames(inputs map[string][]any) []string {
	out := make([]string, 0, len(inputs))
	for name := range inputs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
