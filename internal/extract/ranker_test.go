package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(value string, score int) Candidate {
	return Candidate{Value: value, Amount: decimal.RequireFromString(value), Score: score}
}

func TestSelectBestOrdersByScoreThenMidpoint(t *testing.T) {
	mid := decimal.NewFromInt(200)
	cands := []Candidate{cand("900.00", 10), cand("50.00", 20), cand("210.00", 20), cand("30.00", 95)}

	best, ok := SelectBest(cands, mid, "")
	require.True(t, ok)
	assert.Equal(t, "30.00", best.Value)

	best, ok = SelectBest(cands[:3], mid, "")
	require.True(t, ok)
	assert.Equal(t, "210.00", best.Value)
	assert.Equal(t, "900.00", cands[0].Value, "input must not be reordered")
}

func TestSelectBestSkipsConflicts(t *testing.T) {
	mid := decimal.NewFromInt(200)
	cands := []Candidate{cand("696.00", 100), cand("696", 90), cand("120.00", 40)}

	best, ok := SelectBest(cands, mid, "696.00")
	require.True(t, ok)
	assert.Equal(t, "120.00", best.Value)

	_, ok = SelectBest(cands[:2], mid, "696.00")
	assert.False(t, ok)

	_, ok = SelectBest(nil, mid, "")
	assert.False(t, ok)
}

func TestClaimedIsImmutable(t *testing.T) {
	a := NewClaimed(decimal.RequireFromString("10.0"))
	b := a.With(decimal.NewFromInt(20))

	assert.True(t, a.Has(decimal.NewFromInt(10)))
	assert.False(t, a.Has(decimal.NewFromInt(20)))
	assert.True(t, b.Has(decimal.RequireFromString("20.00")))
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 2, b.Len())
}

func TestParseAmount(t *testing.T) {
	for _, ok := range []string{"0", "150", "150.00", " 7.5 "} {
		_, parsed := parseAmount(ok)
		assert.True(t, parsed, ok)
	}
	for _, bad := range []string{"", "-1", "1e3", "1,000.00", "$5", "12.", ".5", "abc"} {
		_, parsed := parseAmount(bad)
		assert.False(t, parsed, bad)
	}
}

func TestPlausibilityBand(t *testing.T) {
	p := NewPlausibility(DefaultTuning().Ratio, DefaultTuning().IgnoredAttributes)
	sub := decimal.NewFromInt(1000)

	assert.True(t, p.InBand(decimal.NewFromInt(30), sub))
	assert.True(t, p.InBand(decimal.NewFromInt(10), sub))
	assert.False(t, p.InBand(decimal.NewFromInt(5), sub))
	assert.False(t, p.InBand(decimal.NewFromInt(150), sub))
	assert.True(t, p.InBand(decimal.NewFromInt(150), decimal.Zero))
}

func TestPlausibilityResearchPrefersTarget(t *testing.T) {
	doc := load(t, `<r><a X="25.00" Y="30.00"/><b Z="160.00"/></r>`)
	p := NewPlausibility(DefaultTuning().Ratio, DefaultTuning().IgnoredAttributes)

	got, ok := p.Research(doc, decimal.NewFromInt(1000), Claimed{})
	require.True(t, ok)
	assert.Equal(t, "30.00", got.Value)
	assert.Equal(t, StrategyRatioSearch, got.Strategy)

	_, ok = p.Research(doc, decimal.NewFromInt(1000), NewClaimed(decimal.NewFromInt(30), decimal.NewFromInt(25)))
	assert.False(t, ok)
}

func TestPlausibilityResearchSkipsIgnoredAttributes(t *testing.T) {
	doc := load(t, `<r><Comprobante Folio="30" Serie="A"><c Monto="25.00"/></Comprobante></r>`)
	p := NewPlausibility(DefaultTuning().Ratio, []string{"Folio"})

	got, ok := p.Research(doc, decimal.NewFromInt(1000), Claimed{})
	require.True(t, ok)
	assert.Equal(t, "25.00", got.Value)
	assert.Equal(t, 99, got.Score)
}
