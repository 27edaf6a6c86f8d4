package extract

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/cfdi-tracker/constants"
	"github.com/joseph-ayodele/cfdi-tracker/internal/cfdi"
)

// Range is an inclusive numeric interval.
type Range struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// NewRange builds a Range from literals; it panics on malformed input and is
// meant for defaults and tests.
func NewRange(min, max string) Range {
	return Range{Min: decimal.RequireFromString(min), Max: decimal.RequireFromString(max)}
}

// Contains reports min <= v <= max.
func (r Range) Contains(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(r.Min) && v.LessThanOrEqual(r.Max)
}

func (r Range) String() string {
	return "[" + r.Min.String() + ", " + r.Max.String() + "]"
}

// KeywordRule adds Weight to an element's semantic score once when any of
// Terms occurs in its lowercased serialized content.
type KeywordRule struct {
	Terms  []string
	Weight int
}

// PhaseScores are the fixed scores of the structural phases.
type PhaseScores struct {
	ExactCode         int
	LocalTax          int
	TaggedAttribute   int
	SecondaryCode     int
	FallbackPreferred int
	Fallback          int
}

// PhaseGates: a phase runs only while no collected candidate scores at or
// above its gate. Zero means the phase always runs.
type PhaseGates struct {
	TaggedAttribute int
	SecondaryCode   int
	Semantic        int
	Fallback        int
}

// RatioCheck configures the lodging-to-subtotal plausibility pass.
type RatioCheck struct {
	Accepted Range
	Search   Range
	Target   decimal.Decimal
	MinScore decimal.Decimal
}

// Tuning carries every empirically tuned constant of the engine.
type Tuning struct {
	VATCodes             []string
	LodgingCodes         []string
	LodgingAbbreviation  string
	TaxCodeAttributes    []string
	AmountAttributes     []string
	LocalTaxTypeAttrs    []string
	IgnoredAttributes    []string
	VATRange             Range
	LodgingRange         Range
	LodgingPreferred     Range
	LodgingMidpoint      decimal.Decimal
	Scores               PhaseScores
	Gates                PhaseGates
	Keywords             []KeywordRule
	FallbackNeedsContext bool
	Ratio                RatioCheck
	Selectors            cfdi.SelectorSet
}

// DefaultTuning mirrors the values the engine was calibrated with.
func DefaultTuning() Tuning {
	return Tuning{
		VATCodes:            []string{constants.VATCode},
		LodgingCodes:        []string{constants.LodgingCode},
		LodgingAbbreviation: constants.LodgingAbbreviation,
		TaxCodeAttributes:   []string{"Impuesto"},
		AmountAttributes:    []string{"Importe", "Valor"},
		LocalTaxTypeAttrs:   []string{"ImpLocTrasladado", "ImpLocTraslado"},
		// Numeric but never a tax amount: catalog codes, counts, rates, ids.
		IgnoredAttributes: []string{
			"Version", "Serie", "Folio", "NoCertificado", "LugarExpedicion",
			"TipoCambio", "Exportacion", "FormaPago", "MetodoPago",
			"RegimenFiscal", "RegimenFiscalReceptor", "DomicilioFiscalReceptor",
			"CodigoPostal", "UsoCFDI", "NumRegIdTrib",
			"ClaveProdServ", "ClaveUnidad", "NoIdentificacion", "Cantidad",
			"ValorUnitario", "ObjetoImp", "Impuesto", "TasaOCuota",
			"TasadeTraslado", "TasadeRetencion", "NoCertificadoSAT",
		},
		VATRange:         NewRange("100", "10000"),
		LodgingRange:     NewRange("10", "1000"),
		LodgingPreferred: NewRange("50", "400"),
		LodgingMidpoint:  decimal.NewFromInt(200),
		Scores: PhaseScores{
			ExactCode:         100,
			LocalTax:          100,
			TaggedAttribute:   95,
			SecondaryCode:     90,
			FallbackPreferred: 20,
			Fallback:          10,
		},
		Gates: PhaseGates{
			TaggedAttribute: 100,
			SecondaryCode:   90,
			Semantic:        70,
			Fallback:        20,
		},
		Keywords: []KeywordRule{
			{Terms: []string{"impuestoslocales", "implocal:"}, Weight: 80},
			{Terms: []string{"hospedaje"}, Weight: 70},
			{Terms: []string{"ish"}, Weight: 60},
			{Terms: []string{"turismo", "tourism"}, Weight: 50},
			{Terms: []string{"hotel", "alojamiento"}, Weight: 40},
			{Terms: []string{`impuesto="002"`, `impuesto='002'`}, Weight: -100},
			{Terms: []string{"iva", "valor agregado"}, Weight: -50},
		},
		FallbackNeedsContext: true,
		Ratio: RatioCheck{
			Accepted: NewRange("0.01", "0.10"),
			Search:   NewRange("0.02", "0.04"),
			Target:   decimal.RequireFromString("0.03"),
			MinScore: decimal.NewFromInt(70),
		},
		Selectors: cfdi.DefaultSelectors(),
	}
}

// Validate rejects tunings the engine cannot run with.
func (t Tuning) Validate() error {
	ranges := map[string]Range{
		"vat_range":         t.VATRange,
		"lodging_range":     t.LodgingRange,
		"lodging_preferred": t.LodgingPreferred,
		"ratio.accepted":    t.Ratio.Accepted,
		"ratio.search":      t.Ratio.Search,
	}
	for name, r := range ranges {
		if r.Min.IsNegative() || r.Max.LessThan(r.Min) {
			return fmt.Errorf("tuning: %s %s is not a valid range", name, r)
		}
	}
	if len(t.VATCodes) == 0 {
		return fmt.Errorf("tuning: at least one VAT code is required")
	}
	if t.LodgingAbbreviation == "" {
		return fmt.Errorf("tuning: lodging abbreviation is required")
	}
	if len(t.AmountAttributes) == 0 || len(t.TaxCodeAttributes) == 0 {
		return fmt.Errorf("tuning: amount and tax code attribute names are required")
	}
	return nil
}
