package extract

import (
	"slices"

	"github.com/joseph-ayodele/cfdi-tracker/internal/cfdi"
)

// matchTransfers returns, in document order, every transfer node whose tax
// code is one of codes and whose amount is a positive decimal inside r.
// Candidates already in claimed are skipped.
func matchTransfers(transfers []cfdi.Node, codes []string, r Range, t Tuning, claimed Claimed, strategy Strategy, score int) []Candidate {
	var out []Candidate
	for _, tr := range transfers {
		_, code := tr.FirstAttr(t.TaxCodeAttributes...)
		if !slices.Contains(codes, code) {
			continue
		}
		attr, raw := tr.FirstAttr(t.AmountAttributes...)
		amount, ok := parsePositiveIn(raw, r)
		if !ok || claimed.Has(amount) {
			continue
		}
		out = append(out, Candidate{
			Value:    raw,
			Amount:   amount,
			Path:     tr.AttrPath(attr),
			Strategy: strategy,
			Score:    score,
		})
	}
	return out
}

// matchVAT resolves the value-added tax from the standard transfer nodes. When
// several transfers qualify the last one wins.
func matchVAT(doc *cfdi.Document, loc *cfdi.Locator, t Tuning) (Candidate, bool) {
	transfers := loc.All(doc.Top(), cfdi.TargetTransfers)
	found := matchTransfers(transfers, t.VATCodes, t.VATRange, t, Claimed{}, StrategyExactCode, t.Scores.ExactCode)
	if len(found) == 0 {
		return Candidate{}, false
	}
	return found[len(found)-1], true
}

// matchLodgingCode accepts a secondary-code transfer as lodging tax only for
// documents that carry no local-tax markup, where it is unambiguous.
func matchLodgingCode(doc *cfdi.Document, loc *cfdi.Locator, t Tuning, claimed Claimed) (Candidate, bool) {
	if len(t.LodgingCodes) == 0 || loc.Exists(doc.Top(), cfdi.TargetLocalTaxes) || hasTaggedAttribute(doc, t) {
		return Candidate{}, false
	}
	transfers := loc.All(doc.Top(), cfdi.TargetTransfers)
	found := matchTransfers(transfers, t.LodgingCodes, t.LodgingRange, t, claimed, StrategyExactCode, t.Scores.SecondaryCode)
	if len(found) == 0 {
		return Candidate{}, false
	}
	return found[0], true
}

func hasTaggedAttribute(doc *cfdi.Document, t Tuning) bool {
	for _, el := range doc.Elements() {
		if taggedWith(el, t.LodgingAbbreviation) != "" {
			return true
		}
	}
	return false
}
