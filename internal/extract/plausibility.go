package extract

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/cfdi-tracker/internal/cfdi"
)

var hundred = decimal.NewFromInt(100)

// Plausibility checks a lodging amount against the subtotal and, when the
// ratio is off, looks once for a better value in the expected band.
type Plausibility struct {
	ratio RatioCheck
	skip  nameSet
}

// NewPlausibility creates a validator for the given ratio settings. The
// search never considers attributes named in ignored.
func NewPlausibility(r RatioCheck, ignored []string) Plausibility {
	return Plausibility{ratio: r, skip: newNameSet(ignored)}
}

// InBand reports whether lodging/subtotal falls in the accepted band. A
// non-positive subtotal cannot be judged and counts as in band.
func (p Plausibility) InBand(lodging, subtotal decimal.Decimal) bool {
	if !subtotal.IsPositive() {
		return true
	}
	return p.ratio.Accepted.Contains(lodging.Div(subtotal))
}

// Research scans every attribute for a value whose ratio to subtotal lies in
// the search band, is not the VAT amount, and scores above the minimum. The
// score is 100 minus the distance to the target ratio in percentage points.
func (p Plausibility) Research(doc *cfdi.Document, subtotal decimal.Decimal, vat Claimed) (Candidate, bool) {
	if !subtotal.IsPositive() {
		return Candidate{}, false
	}
	var (
		best      Candidate
		bestScore decimal.Decimal
		found     bool
	)
	for _, el := range doc.Elements() {
		for _, a := range el.Attrs() {
			if p.skip.Has(a.Name) {
				continue
			}
			v, ok := parseAmount(a.Value)
			if !ok || !v.IsPositive() || vat.Has(v) {
				continue
			}
			ratio := v.Div(subtotal)
			if !p.ratio.Search.Contains(ratio) {
				continue
			}
			score := hundred.Sub(ratio.Sub(p.ratio.Target).Abs().Mul(hundred))
			if found && !score.GreaterThan(bestScore) {
				continue
			}
			best = Candidate{
				Value:    a.Value,
				Amount:   v,
				Path:     el.AttrPath(a.Name),
				Strategy: StrategyRatioSearch,
				Score:    int(score.IntPart()),
			}
			bestScore = score
			found = true
		}
	}
	if !found || !bestScore.GreaterThan(p.ratio.MinScore) {
		return Candidate{}, false
	}
	return best, true
}
