/*
Package factory assembles ready-to-run simulations.

PURPOSE:
  Bundles the reference model registry with canned legislation and demo
  scenarios, so the server, the CLI and the tests all build simulations
  the same way. Legislation is plain YAML text here - HR for tax law:
  analysts can edit rates without touching Go code.

USAGE:
  f, err := factory.New()
  sim, err := f.NewSimulation(date)        // actual law
  sim, err = f.NewReformSimulation(date)   // reform, baseline via BaselineFork

SEE ALSO:
  - model: the variable registry and formulas
  - params: YAML parameter loading and compaction
  - datatable: scenario injection
*/
package factory

import (
	"fmt"
	"sort"
	"time"

	"github.com/warp/fiscal-engine/datatable"
	"github.com/warp/fiscal-engine/engine"
	"github.com/warp/fiscal-engine/model"
	"github.com/warp/fiscal-engine/params"
)

// =============================================================================
// CANNED LEGISLATION
// =============================================================================

// DefaultLegislationYAML is the actual law: the parameter tree the
// reference model reads. Paths are documented in model/formulas.go.
const DefaultLegislationYAML = `
description: Législation de référence
impot:
  description: Impôt sur le revenu
  bareme:
    brackets:
      - threshold:
          values: [{start: 2001-01-01, value: 0}]
        rate:
          values: [{start: 2001-01-01, value: 0}]
      - threshold:
          values: [{start: 2001-01-01, value: 10000}]
        rate:
          values:
            - {start: 2001-01-01, value: 0.10}
            - {start: 2014-01-01, value: 0.14}
      - threshold:
          values: [{start: 2001-01-01, value: 30000}]
        rate:
          values: [{start: 2001-01-01, value: 0.30}]
csg:
  description: Contribution sociale généralisée
  taux:
    values: [{start: 2001-01-01, value: 0.075}]
al:
  description: Allocation logement
  taux:
    values: [{start: 2001-01-01, value: 0.5}]
  plafond_loyer:
    values: [{start: 2001-01-01, value: 12000}]
  plafond_ressources:
    values: [{start: 2001-01-01, value: 30000}]
`

// ReformLegislationYAML amends the actual law: a flat two-point rise of
// the middle income-tax bracket and a tighter housing-allowance income
// ceiling. Used by the reform demo and the reform tests.
const ReformLegislationYAML = `
description: Réforme simulée
impot:
  bareme:
    brackets:
      - threshold:
          values: [{start: 2001-01-01, value: 0}]
        rate:
          values: [{start: 2001-01-01, value: 0}]
      - threshold:
          values: [{start: 2001-01-01, value: 10000}]
        rate:
          values:
            - {start: 2001-01-01, value: 0.12}
            - {start: 2014-01-01, value: 0.16}
      - threshold:
          values: [{start: 2001-01-01, value: 30000}]
        rate:
          values: [{start: 2001-01-01, value: 0.30}]
csg:
  taux:
    values: [{start: 2001-01-01, value: 0.075}]
al:
  taux:
    values: [{start: 2001-01-01, value: 0.5}]
  plafond_loyer:
    values: [{start: 2001-01-01, value: 12000}]
  plafond_ressources:
    values: [{start: 2001-01-01, value: 25000}]
`

// =============================================================================
// DEMO SCENARIOS
// =============================================================================

var demoScenarios = map[string]string{
	"single_earner": `
date: 2014-01-01
entities:
  individu:
    count: 1
    inputs:
      salaire: [24000]
      age: [34]
      statut_marital: [Célibataire]
      actif: [true]
      id_menage: [0]
  menage:
    count: 1
    inputs:
      loyer: [7200]
`,
	"couple_with_rent": `
date: 2014-01-01
entities:
  individu:
    count: 2
    inputs:
      salaire: [32000, 18000]
      age: [41, 39]
      statut_marital: [Marié, Marié]
      actif: [true, true]
      id_menage: [0, 0]
  menage:
    count: 1
    inputs:
      loyer: [14400]
`,
	"survey_extract": `
date: 2014-01-01
entities:
  individu:
    count: 3
    inputs:
      salaire: [30000, 0, 15000]
      age: [45, -9999, 23]
      statut_marital: [Marié, Veuf, Célibataire]
      actif: [true, false, true]
      id_menage: [0, 0, 1]
  menage:
    count: 2
    inputs:
      loyer: [9600, 6000]
`,
}

// =============================================================================
// FACTORY
// =============================================================================

// Factory holds the parsed registry and providers. Build once, share
// freely; everything inside is immutable.
type Factory struct {
	registry *engine.Registry
	actual   *params.YAMLProvider
	reform   *params.YAMLProvider
}

// New parses the canned legislation and builds the model registry.
func New() (*Factory, error) {
	registry, err := model.BuildRegistry()
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	actual, err := params.ParseYAML([]byte(DefaultLegislationYAML))
	if err != nil {
		return nil, fmt.Errorf("parse default legislation: %w", err)
	}
	reform, err := params.ParseYAML([]byte(ReformLegislationYAML))
	if err != nil {
		return nil, fmt.Errorf("parse reform legislation: %w", err)
	}
	return &Factory{registry: registry, actual: actual, reform: reform}, nil
}

// Registry returns the model's immutable variable registry.
func (f *Factory) Registry() *engine.Registry { return f.registry }

// Provider returns the actual-law parameter provider.
func (f *Factory) Provider() params.Provider { return f.actual }

// NewSimulation builds a simulation under the actual law at date.
func (f *Factory) NewSimulation(date time.Time) (*engine.Simulation, error) {
	law, err := f.actual.CompactLegislation(date)
	if err != nil {
		return nil, err
	}
	return engine.NewSimulation(f.registry, date, law, nil), nil
}

// NewReformSimulation builds a simulation evaluating the reform, with
// the actual law as its default (baseline) legislation. Fork it with
// BaselineFork after loading inputs to get the counterfactual.
func (f *Factory) NewReformSimulation(date time.Time) (*engine.Simulation, error) {
	reformLaw, err := f.reform.CompactLegislation(date)
	if err != nil {
		return nil, err
	}
	actualLaw, err := f.actual.CompactLegislation(date)
	if err != nil {
		return nil, err
	}
	return engine.NewSimulation(f.registry, date, reformLaw, actualLaw), nil
}

// DemoScenario returns a canned scenario by name.
func (f *Factory) DemoScenario(name string) (*datatable.Scenario, error) {
	text, ok := demoScenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown demo scenario %q", name)
	}
	return datatable.ParseScenario([]byte(text))
}

// DemoScenarioNames lists the canned scenarios, sorted.
func (f *Factory) DemoScenarioNames() []string {
	out := make([]string, 0, len(demoScenarios))
	for name := range demoScenarios {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
