package extract

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/cfdi-tracker/internal/common"
)

// parseAmount accepts plain non-negative decimals only: no sign, exponent,
// thousands separator or currency symbol.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if !common.IsDecimal(s) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// parsePositiveIn parses s and checks it is > 0 and inside r.
func parsePositiveIn(s string, r Range) (decimal.Decimal, bool) {
	d, ok := parseAmount(s)
	if !ok || !d.IsPositive() || !r.Contains(d) {
		return decimal.Decimal{}, false
	}
	return d, true
}

// cleanAmount returns s trimmed when it is a valid amount, "" otherwise.
func cleanAmount(s string) string {
	s = strings.TrimSpace(s)
	if _, ok := parseAmount(s); !ok {
		return ""
	}
	return s
}
