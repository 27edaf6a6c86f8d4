package extract

import (
	"slices"

	"github.com/shopspring/decimal"
)

// SelectBest orders candidates by score, breaking ties by distance to
// midpoint and then by discovery order, and returns the first one that does
// not collide with exclude. Collision is textual or numeric equality. The
// input slice is not modified.
func SelectBest(cands []Candidate, midpoint decimal.Decimal, exclude string) (Candidate, bool) {
	ranked := slices.Clone(cands)
	slices.SortStableFunc(ranked, func(a, b Candidate) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return a.Amount.Sub(midpoint).Abs().Cmp(b.Amount.Sub(midpoint).Abs())
	})

	excluded, hasExcluded := parseAmount(exclude)
	for _, c := range ranked {
		if exclude != "" && c.Value == exclude {
			continue
		}
		if hasExcluded && c.Amount.Equal(excluded) {
			continue
		}
		return c, true
	}
	return Candidate{}, false
}
