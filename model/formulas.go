/*
formulas.go - The model's computation rules

PURPOSE:
  Each formula is a pure function over already-computed dependency
  vectors and the legislation snapshot in force. Dependencies are
  requested through the context; the engine memoizes and cycle-checks
  every request. Formulas may request columns of the other entity kind;
  the id_menage column links each individual to a household, and
  household aggregation over it is explicit.

PARAMETER PATHS:
  impot.bareme          marginal income-tax scale
  csg.taux              flat CSG rate
  al.taux               housing allowance rate over capped rent
  al.plafond_loyer      annual rent cap
  al.plafond_ressources income ceiling for eligibility

  The default parameter file carrying these paths lives in the factory
  package; any provider exposing the same paths works.
*/
package model

import (
	"fmt"

	"github.com/warp/fiscal-engine/engine"
)

// householdLinks resolves the id_menage column and checks every index
// against the household count. A link outside the household range is a
// loader defect, surfaced rather than skipped.
func householdLinks(ctx *engine.FormulaContext, households int) ([]int32, error) {
	links, err := ctx.Ints("id_menage")
	if err != nil {
		return nil, err
	}
	for i, idx := range links {
		if int(idx) >= households {
			return nil, fmt.Errorf("id_menage[%d] = %d: no such household (count %d)", i, idx, households)
		}
	}
	return links, nil
}

// impotRevenu applies the marginal scale to the taxable salary.
func impotRevenu(ctx *engine.FormulaContext) (engine.Vector, error) {
	salaire, err := ctx.Floats("salaire")
	if err != nil {
		return nil, err
	}
	bareme, err := ctx.Params().ScaleAt("impot.bareme")
	if err != nil {
		return nil, err
	}
	out := make(engine.FloatVector, ctx.Count())
	for i, s := range salaire {
		out[i] = bareme.MarginalTaxFloat(s)
	}
	return out, nil
}

// csg is a flat-rate contribution on the full salary.
func csg(ctx *engine.FormulaContext) (engine.Vector, error) {
	salaire, err := ctx.Floats("salaire")
	if err != nil {
		return nil, err
	}
	taux, err := ctx.Params().Float("csg.taux")
	if err != nil {
		return nil, err
	}
	out := make(engine.FloatVector, ctx.Count())
	for i, s := range salaire {
		out[i] = s * taux
	}
	return out, nil
}

// revenuMenage sums the members' salaries into their households.
func revenuMenage(ctx *engine.FormulaContext) (engine.Vector, error) {
	salaire, err := ctx.Floats("salaire")
	if err != nil {
		return nil, err
	}
	links, err := householdLinks(ctx, ctx.Count())
	if err != nil {
		return nil, err
	}
	out := make(engine.FloatVector, ctx.Count())
	for i, idx := range links {
		out[idx] += salaire[i]
	}
	return out, nil
}

// revenuDisponible nets out the two levies and adds each member's equal
// share of their household's housing allowance.
func revenuDisponible(ctx *engine.FormulaContext) (engine.Vector, error) {
	salaire, err := ctx.Floats("salaire")
	if err != nil {
		return nil, err
	}
	impot, err := ctx.Floats("impot_revenu")
	if err != nil {
		return nil, err
	}
	contribution, err := ctx.Floats("csg")
	if err != nil {
		return nil, err
	}
	allocation, err := ctx.Floats("allocation_logement")
	if err != nil {
		return nil, err
	}
	links, err := householdLinks(ctx, len(allocation))
	if err != nil {
		return nil, err
	}
	size := make([]int, len(allocation))
	for _, idx := range links {
		size[idx]++
	}
	out := make(engine.FloatVector, ctx.Count())
	for i := range out {
		share := allocation[links[i]] / float64(size[links[i]])
		out[i] = salaire[i] - impot[i] - contribution[i] + share
	}
	return out, nil
}

// eligibleAL gates the housing allowance on declared household income.
func eligibleAL(ctx *engine.FormulaContext) (engine.Vector, error) {
	revenu, err := ctx.Floats("revenu_menage")
	if err != nil {
		return nil, err
	}
	plafond, err := ctx.Params().Float("al.plafond_ressources")
	if err != nil {
		return nil, err
	}
	out := make(engine.BoolVector, ctx.Count())
	for i, r := range revenu {
		out[i] = r <= plafond
	}
	return out, nil
}

// allocationLogement pays a rate over the capped rent to eligible
// households. Ineligible households get zero.
func allocationLogement(ctx *engine.FormulaContext) (engine.Vector, error) {
	eligible, err := ctx.Bools("eligible_al")
	if err != nil {
		return nil, err
	}
	loyer, err := ctx.Floats("loyer")
	if err != nil {
		return nil, err
	}
	taux, err := ctx.Params().Float("al.taux")
	if err != nil {
		return nil, err
	}
	plafond, err := ctx.Params().Float("al.plafond_loyer")
	if err != nil {
		return nil, err
	}
	out := make(engine.FloatVector, ctx.Count())
	for i := range out {
		if !eligible[i] {
			continue
		}
		base := loyer[i]
		if base > plafond {
			base = plafond
		}
		out[i] = base * taux
	}
	return out, nil
}
