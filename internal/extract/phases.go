package extract

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/cfdi-tracker/internal/cfdi"
)

// Phase is one step of the lodging-tax cascade. Search must not return
// amounts present in claimed.
type Phase interface {
	Strategy() Strategy
	// Gate is the score that, once reached by an earlier candidate, makes
	// this phase unnecessary. Zero means always run.
	Gate() int
	Search(doc *cfdi.Document, claimed Claimed) []Candidate
}

// DefaultPhases builds the cascade in decreasing order of confidence.
func DefaultPhases(loc *cfdi.Locator, t Tuning) []Phase {
	return []Phase{
		localTaxPhase{loc: loc, t: t},
		taggedAttributePhase{t: t},
		secondaryCodePhase{loc: loc, t: t},
		semanticPhase{t: t, skip: newNameSet(t.IgnoredAttributes)},
		rangeFallbackPhase{t: t, skip: newNameSet(t.IgnoredAttributes)},
	}
}

// localTaxPhase reads local-tax transfers typed as lodging tax inside a
// local-taxes container.
type localTaxPhase struct {
	loc *cfdi.Locator
	t   Tuning
}

func (localTaxPhase) Strategy() Strategy { return StrategyLocalTax }
func (localTaxPhase) Gate() int          { return 0 }

func (p localTaxPhase) Search(doc *cfdi.Document, claimed Claimed) []Candidate {
	var out []Candidate
	for _, container := range p.loc.All(doc.Top(), cfdi.TargetLocalTaxes) {
		for _, tr := range p.loc.All(container, cfdi.TargetLocalTransfers) {
			_, kind := tr.FirstAttr(p.t.LocalTaxTypeAttrs...)
			if !strings.EqualFold(kind, p.t.LodgingAbbreviation) {
				continue
			}
			if c, ok := amountCandidate(tr, p.t, claimed, StrategyLocalTax, p.t.Scores.LocalTax); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// taggedAttributePhase covers non-standard layouts where any attribute holds
// the lodging abbreviation next to an amount attribute.
type taggedAttributePhase struct {
	t Tuning
}

func (taggedAttributePhase) Strategy() Strategy { return StrategyTaggedAttribute }
func (p taggedAttributePhase) Gate() int        { return p.t.Gates.TaggedAttribute }

func (p taggedAttributePhase) Search(doc *cfdi.Document, claimed Claimed) []Candidate {
	var out []Candidate
	for _, el := range doc.Elements() {
		if taggedWith(el, p.t.LodgingAbbreviation) == "" {
			continue
		}
		if c, ok := amountCandidate(el, p.t, claimed, StrategyTaggedAttribute, p.t.Scores.TaggedAttribute); ok {
			out = append(out, c)
		}
	}
	return out
}

type secondaryCodePhase struct {
	loc *cfdi.Locator
	t   Tuning
}

func (secondaryCodePhase) Strategy() Strategy { return StrategySecondaryCode }
func (p secondaryCodePhase) Gate() int        { return p.t.Gates.SecondaryCode }

func (p secondaryCodePhase) Search(doc *cfdi.Document, claimed Claimed) []Candidate {
	transfers := p.loc.All(doc.Top(), cfdi.TargetTransfers)
	return matchTransfers(transfers, p.t.LodgingCodes, p.t.LodgingRange, p.t, claimed, StrategySecondaryCode, p.t.Scores.SecondaryCode)
}

// semanticPhase scores each element by the vocabulary of its serialized
// subtree and turns the numeric attributes of positive elements into
// candidates carrying that score.
type semanticPhase struct {
	t    Tuning
	skip nameSet
}

func (semanticPhase) Strategy() Strategy { return StrategySemantic }
func (p semanticPhase) Gate() int        { return p.t.Gates.Semantic }

func (p semanticPhase) Search(doc *cfdi.Document, claimed Claimed) []Candidate {
	var out []Candidate
	for _, el := range doc.Elements() {
		text, err := el.Outer()
		if err != nil {
			continue
		}
		score := keywordScore(strings.ToLower(text), p.t.Keywords)
		if score <= 0 {
			continue
		}
		out = append(out, attributeCandidates(el, p.t.LodgingRange, p.skip, claimed, StrategySemantic, func(decimal.Decimal) int { return score })...)
	}
	return out
}

// rangeFallbackPhase accepts any in-range number, preferring the typical
// band. It only runs on documents that mention lodging at all.
type rangeFallbackPhase struct {
	t    Tuning
	skip nameSet
}

func (rangeFallbackPhase) Strategy() Strategy { return StrategyRangeFallback }
func (p rangeFallbackPhase) Gate() int        { return p.t.Gates.Fallback }

func (p rangeFallbackPhase) Search(doc *cfdi.Document, claimed Claimed) []Candidate {
	if p.t.FallbackNeedsContext && !hasLodgingContext(doc, p.t.Keywords) {
		return nil
	}
	score := func(d decimal.Decimal) int {
		if p.t.LodgingPreferred.Contains(d) {
			return p.t.Scores.FallbackPreferred
		}
		return p.t.Scores.Fallback
	}
	var out []Candidate
	for _, el := range doc.Elements() {
		out = append(out, attributeCandidates(el, p.t.LodgingRange, p.skip, claimed, StrategyRangeFallback, score)...)
	}
	return out
}

// taggedWith returns the name of the first attribute whose value equals tag
// case-insensitively.
func taggedWith(el cfdi.Node, tag string) string {
	if tag == "" {
		return ""
	}
	for _, a := range el.Attrs() {
		if strings.EqualFold(a.Value, tag) {
			return a.Name
		}
	}
	return ""
}

func amountCandidate(el cfdi.Node, t Tuning, claimed Claimed, s Strategy, score int) (Candidate, bool) {
	attr, raw := el.FirstAttr(t.AmountAttributes...)
	amount, ok := parsePositiveIn(raw, t.LodgingRange)
	if !ok || claimed.Has(amount) {
		return Candidate{}, false
	}
	return Candidate{Value: raw, Amount: amount, Path: el.AttrPath(attr), Strategy: s, Score: score}, true
}

// attributeCandidates turns every in-range numeric attribute of el into a
// candidate. Names in skip hold codes or counts, never amounts.
func attributeCandidates(el cfdi.Node, r Range, skip nameSet, claimed Claimed, s Strategy, score func(decimal.Decimal) int) []Candidate {
	var out []Candidate
	for _, a := range el.Attrs() {
		if skip.Has(a.Name) {
			continue
		}
		amount, ok := parsePositiveIn(a.Value, r)
		if !ok || claimed.Has(amount) {
			continue
		}
		out = append(out, Candidate{
			Value:    a.Value,
			Amount:   amount,
			Path:     el.AttrPath(a.Name),
			Strategy: s,
			Score:    score(amount),
		})
	}
	return out
}

// keywordScore sums the weight of every rule with at least one term in text.
func keywordScore(text string, rules []KeywordRule) int {
	score := 0
	for _, r := range rules {
		for _, term := range r.Terms {
			if term != "" && strings.Contains(text, strings.ToLower(term)) {
				score += r.Weight
				break
			}
		}
	}
	return score
}

func hasLodgingContext(doc *cfdi.Document, rules []KeywordRule) bool {
	text, err := doc.Root().Outer()
	if err != nil {
		return false
	}
	text = strings.ToLower(text)
	for _, r := range rules {
		if r.Weight <= 0 {
			continue
		}
		for _, term := range r.Terms {
			if term != "" && strings.Contains(text, strings.ToLower(term)) {
				return true
			}
		}
	}
	return false
}

// nameSet matches attribute names by local part, ignoring case and prefix.
type nameSet map[string]struct{}

func newNameSet(names []string) nameSet {
	s := make(nameSet, len(names))
	for _, n := range names {
		s[localName(n)] = struct{}{}
	}
	return s
}

func (s nameSet) Has(name string) bool {
	_, ok := s[localName(name)]
	return ok
}

func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}
