/*
scale.go - Marginal-rate tax scales

PURPOSE:
  A Scale is an ordered list of brackets (threshold + rate). MarginalTax
  applies each rate to the slice of the base falling inside its bracket,
  the usual shape of an income tax schedule.

  Example: thresholds 0 / 10000 / 30000 with rates 0% / 10% / 30%.
  A base of 40000 pays 0 + 10%*20000 + 30%*10000 = 5000.
*/
package params

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Bracket is one threshold/rate pair of a scale.
type Bracket struct {
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

// Scale is an ordered marginal-rate schedule. Construct with NewScale;
// immutable afterwards.
type Scale struct {
	brackets []Bracket
}

// NewScale builds a scale, ordering brackets by threshold.
func NewScale(brackets ...Bracket) *Scale {
	s := &Scale{brackets: make([]Bracket, len(brackets))}
	copy(s.brackets, brackets)
	sort.Slice(s.brackets, func(i, j int) bool {
		return s.brackets[i].Threshold.LessThan(s.brackets[j].Threshold)
	})
	return s
}

// Brackets returns the ordered brackets. The returned slice is a copy.
func (s *Scale) Brackets() []Bracket {
	out := make([]Bracket, len(s.brackets))
	copy(out, s.brackets)
	return out
}

// MarginalTax computes the scale over base. Negative bases tax to zero.
func (s *Scale) MarginalTax(base decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	if base.IsNegative() {
		return total
	}
	for i, b := range s.brackets {
		if base.LessThanOrEqual(b.Threshold) {
			break
		}
		upper := base
		if i+1 < len(s.brackets) && s.brackets[i+1].Threshold.LessThan(base) {
			upper = s.brackets[i+1].Threshold
		}
		slice := upper.Sub(b.Threshold)
		total = total.Add(slice.Mul(b.Rate))
	}
	return total
}

// MarginalTaxFloat is the float64 convenience form used by formulas.
func (s *Scale) MarginalTaxFloat(base float64) float64 {
	f, _ := s.MarginalTax(decimal.NewFromFloat(base)).Float64()
	return f
}
