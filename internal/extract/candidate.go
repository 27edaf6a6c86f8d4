package extract

import (
	"maps"

	"github.com/shopspring/decimal"
)

// Strategy identifies the phase that produced a Candidate.
type Strategy int

const (
	StrategyExactCode Strategy = iota + 1
	StrategyLocalTax
	StrategyTaggedAttribute
	StrategySecondaryCode
	StrategySemantic
	StrategyRangeFallback
	StrategyRatioSearch
)

func (s Strategy) String() string {
	switch s {
	case 0:
		return "none"
	case StrategyExactCode:
		return "exact_code"
	case StrategyLocalTax:
		return "local_tax"
	case StrategyTaggedAttribute:
		return "tagged_attribute"
	case StrategySecondaryCode:
		return "secondary_code"
	case StrategySemantic:
		return "semantic"
	case StrategyRangeFallback:
		return "range_fallback"
	case StrategyRatioSearch:
		return "ratio_search"
	default:
		return "unknown"
	}
}

// Candidate is a provisional value for a field. Candidates are values; phases
// only ever append new ones.
type Candidate struct {
	Value    string
	Amount   decimal.Decimal
	Path     string
	Strategy Strategy
	Score    int
}

// Claimed is the immutable set of amounts already owned by another field or
// an earlier phase. Membership is numeric, so "150" and "150.00" collide.
type Claimed struct {
	keys map[string]struct{}
}

// NewClaimed builds a set from amounts.
func NewClaimed(amounts ...decimal.Decimal) Claimed {
	return Claimed{}.With(amounts...)
}

// With returns a new set that also holds amounts.
func (c Claimed) With(amounts ...decimal.Decimal) Claimed {
	keys := make(map[string]struct{}, len(c.keys)+len(amounts))
	maps.Copy(keys, c.keys)
	for _, a := range amounts {
		keys[claimKey(a)] = struct{}{}
	}
	return Claimed{keys: keys}
}

// Has reports whether amount is claimed.
func (c Claimed) Has(amount decimal.Decimal) bool {
	_, ok := c.keys[claimKey(amount)]
	return ok
}

// Len is the number of distinct claimed amounts.
func (c Claimed) Len() int { return len(c.keys) }

func claimKey(d decimal.Decimal) string {
	return d.String()
}

func amountsOf(cands []Candidate) []decimal.Decimal {
	out := make([]decimal.Decimal, len(cands))
	for i, c := range cands {
		out[i] = c.Amount
	}
	return out
}

func maxScore(cands []Candidate) (int, bool) {
	if len(cands) == 0 {
		return 0, false
	}
	best := cands[0].Score
	for _, c := range cands[1:] {
		if c.Score > best {
			best = c.Score
		}
	}
	return best, true
}
