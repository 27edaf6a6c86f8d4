package extract

import (
	"log/slog"

	"github.com/joseph-ayodele/cfdi-tracker/internal/cfdi"
)

// Cascade runs lodging-tax phases in order, skipping a phase once an earlier
// candidate has reached its gate.
type Cascade struct {
	phases []Phase
	logger *slog.Logger
}

// NewCascade creates a cascade over phases.
func NewCascade(phases []Phase, logger *slog.Logger) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascade{phases: phases, logger: logger}
}

// Run collects candidates from every phase that is allowed to run. Amounts in
// claimed and amounts collected by earlier phases are never returned twice.
func (c *Cascade) Run(doc *cfdi.Document, claimed Claimed) []Candidate {
	var all []Candidate
	for _, p := range c.phases {
		if best, ok := maxScore(all); ok && p.Gate() > 0 && best >= p.Gate() {
			c.logger.Debug("extract.phase.skipped", "strategy", p.Strategy().String(), "best_score", best, "gate", p.Gate())
			continue
		}
		found := dedupe(p.Search(doc, claimed))
		for _, cand := range found {
			c.logger.Debug("extract.candidate",
				"strategy", cand.Strategy.String(),
				"score", cand.Score,
				"value", cand.Value,
				"path", cand.Path,
			)
		}
		all = append(all, found...)
		claimed = claimed.With(amountsOf(found)...)
	}
	return all
}

// dedupe keeps one candidate per amount: the highest scored, earliest first.
func dedupe(cands []Candidate) []Candidate {
	if len(cands) < 2 {
		return cands
	}
	index := make(map[string]int, len(cands))
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		key := claimKey(c.Amount)
		if i, ok := index[key]; ok {
			if c.Score > out[i].Score {
				out[i] = c
			}
			continue
		}
		index[key] = len(out)
		out = append(out, c)
	}
	return out
}
