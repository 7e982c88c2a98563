// Package model defines a small socio-fiscal model on top of the engine:
// the variable registry (inputs and formulas) for individuals and
// households. It is the reference model used by the server, the CLI and
// the demo scenarios; country packages would follow the same shape.
package model

import (
	"github.com/warp/fiscal-engine/engine"
)

// =============================================================================
// ENTITY KINDS
// =============================================================================

const (
	// EntityIndividual partitions the population into persons.
	EntityIndividual engine.EntityKind = "individu"

	// EntityHousehold partitions the population into dwellings.
	EntityHousehold engine.EntityKind = "menage"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Marital status codes. Labels match the survey codebooks, so raw data
// naming "Marié" or "marie" resolves to the same code.
const (
	StatutCelibataire int32 = iota
	StatutMarie
	StatutDivorce
	StatutVeuf
)

// MaritalStatus is the enumeration behind statut_marital.
var MaritalStatus = engine.NewEnum(
	engine.EnumItem{Code: StatutCelibataire, Label: "Célibataire"},
	engine.EnumItem{Code: StatutMarie, Label: "Marié"},
	engine.EnumItem{Code: StatutDivorce, Label: "Divorcé"},
	engine.EnumItem{Code: StatutVeuf, Label: "Veuf"},
)

// AgeUnknown is the sentinel for an unknown age in survey extracts.
const AgeUnknown int32 = -9999

// =============================================================================
// REGISTRY
// =============================================================================

// BuildRegistry declares every variable of the model and freezes the
// registry. Call once; the result is shared across simulations.
func BuildRegistry() (*engine.Registry, error) {
	b := engine.NewRegistryBuilder()

	// Individual-level inputs
	b.Add(engine.NewFloat("salaire", EntityIndividual,
		engine.WithLabel("Salaire annuel imposable")))
	b.Add(engine.NewInt("age", EntityIndividual,
		engine.WithLabel("Âge"),
		engine.WithDefaultInt(AgeUnknown),
		engine.WithIntGuard(engine.NonNegativeOrSentinel(AgeUnknown))))
	b.Add(engine.NewEnumVar("statut_marital", EntityIndividual, MaritalStatus,
		engine.WithLabel("Statut marital"),
		engine.WithDefaultInt(StatutCelibataire)))
	b.Add(engine.NewDate("date_naissance", EntityIndividual,
		engine.WithLabel("Date de naissance")))
	b.Add(engine.NewBool("actif", EntityIndividual,
		engine.WithLabel("Actif occupé")))
	b.Add(engine.NewInt("id_menage", EntityIndividual,
		engine.WithLabel("Identifiant du ménage"),
		engine.WithIntGuard(engine.NonNegative())))

	// Individual-level formulas
	b.AddFormula(engine.NewFloat("impot_revenu", EntityIndividual,
		engine.WithLabel("Impôt sur le revenu")), impotRevenu)
	b.AddFormula(engine.NewFloat("csg", EntityIndividual,
		engine.WithLabel("Contribution sociale généralisée")), csg)
	b.AddFormula(engine.NewFloat("revenu_disponible", EntityIndividual,
		engine.WithLabel("Revenu disponible")), revenuDisponible)

	// Household-level inputs
	b.Add(engine.NewFloat("loyer", EntityHousehold,
		engine.WithLabel("Loyer annuel")))

	// Household-level formulas. revenu_menage aggregates the members'
	// salaries through the id_menage linkage; survey extracts carrying a
	// declared figure may still set it as input, which shields the
	// formula.
	b.AddFormula(engine.NewFloat("revenu_menage", EntityHousehold,
		engine.WithLabel("Revenu du ménage")), revenuMenage)
	b.AddFormula(engine.NewBool("eligible_al", EntityHousehold,
		engine.WithLabel("Éligibilité à l'allocation logement")), eligibleAL)
	b.AddFormula(engine.NewFloat("allocation_logement", EntityHousehold,
		engine.WithLabel("Allocation logement")), allocationLogement)

	return b.Build()
}
