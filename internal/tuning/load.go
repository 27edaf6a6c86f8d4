// Package tuning reads the engine's tunable constants from a YAML or JSON
// file and overlays them on the defaults.
package tuning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/cfdi-tracker/internal/cfdi"
	"github.com/joseph-ayodele/cfdi-tracker/internal/common"
	"github.com/joseph-ayodele/cfdi-tracker/internal/extract"
)

type rangeFile struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

type keywordFile struct {
	Terms  []string `json:"terms"`
	Weight int      `json:"weight"`
}

type file struct {
	VATCodes            []string            `json:"vat_codes"`
	LodgingCodes        []string            `json:"lodging_codes"`
	LodgingAbbreviation *string             `json:"lodging_abbreviation"`
	TaxCodeAttributes   []string            `json:"tax_code_attributes"`
	AmountAttributes    []string            `json:"amount_attributes"`
	LocalTaxTypeAttrs   []string            `json:"local_tax_type_attributes"`
	IgnoredAttributes   []string            `json:"ignored_attributes"`
	VATRange            *rangeFile          `json:"vat_range"`
	LodgingRange        *rangeFile          `json:"lodging_range"`
	LodgingPreferred    *rangeFile          `json:"lodging_preferred"`
	LodgingMidpoint     *decimal.Decimal    `json:"lodging_midpoint"`
	FallbackNeedsCtx    *bool               `json:"fallback_needs_context"`
	Scores              map[string]int      `json:"scores"`
	Gates               map[string]int      `json:"gates"`
	Keywords            []keywordFile       `json:"keywords"`
	Ratio               *ratioFile          `json:"ratio"`
	Selectors           map[string][]string `json:"selectors"`
}

type ratioFile struct {
	Accepted *rangeFile       `json:"accepted"`
	Search   *rangeFile       `json:"search"`
	Target   *decimal.Decimal `json:"target"`
	MinScore *decimal.Decimal `json:"min_score"`
}

// Load reads path and returns the resulting tuning. An empty path yields the
// defaults.
func Load(path string) (extract.Tuning, error) {
	if path == "" {
		return extract.DefaultTuning(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return extract.Tuning{}, fmt.Errorf("read tuning file: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return extract.Tuning{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes YAML (or JSON, which is valid YAML), validates it against
// Schema and overlays it on extract.DefaultTuning.
func Parse(data []byte) (extract.Tuning, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return extract.Tuning{}, common.WrapError(common.ErrInvalidInput, "decode tuning: "+err.Error())
	}
	if raw == nil {
		return extract.DefaultTuning(), nil
	}
	js, err := json.Marshal(raw)
	if err != nil {
		return extract.Tuning{}, common.WrapError(common.ErrInvalidInput, "tuning is not a plain mapping: "+err.Error())
	}
	if err := validateAgainstSchema(js); err != nil {
		return extract.Tuning{}, common.WrapError(common.ErrInvalidInput, err.Error())
	}

	var f file
	if err := json.Unmarshal(js, &f); err != nil {
		return extract.Tuning{}, common.WrapError(common.ErrInvalidInput, "decode tuning: "+err.Error())
	}
	t := overlay(extract.DefaultTuning(), f)
	if err := t.Validate(); err != nil {
		return extract.Tuning{}, common.WrapError(common.ErrInvalidInput, err.Error())
	}
	return t, nil
}

func overlay(t extract.Tuning, f file) extract.Tuning {
	if f.VATCodes != nil {
		t.VATCodes = f.VATCodes
	}
	if f.LodgingCodes != nil {
		t.LodgingCodes = f.LodgingCodes
	}
	if f.LodgingAbbreviation != nil {
		t.LodgingAbbreviation = *f.LodgingAbbreviation
	}
	if f.TaxCodeAttributes != nil {
		t.TaxCodeAttributes = f.TaxCodeAttributes
	}
	if f.AmountAttributes != nil {
		t.AmountAttributes = f.AmountAttributes
	}
	if f.LocalTaxTypeAttrs != nil {
		t.LocalTaxTypeAttrs = f.LocalTaxTypeAttrs
	}
	if f.IgnoredAttributes != nil {
		t.IgnoredAttributes = f.IgnoredAttributes
	}
	setRange(&t.VATRange, f.VATRange)
	setRange(&t.LodgingRange, f.LodgingRange)
	setRange(&t.LodgingPreferred, f.LodgingPreferred)
	if f.LodgingMidpoint != nil {
		t.LodgingMidpoint = *f.LodgingMidpoint
	}
	if f.FallbackNeedsCtx != nil {
		t.FallbackNeedsContext = *f.FallbackNeedsCtx
	}

	setInt(&t.Scores.ExactCode, f.Scores, "exact_code")
	setInt(&t.Scores.LocalTax, f.Scores, "local_tax")
	setInt(&t.Scores.TaggedAttribute, f.Scores, "tagged_attribute")
	setInt(&t.Scores.SecondaryCode, f.Scores, "secondary_code")
	setInt(&t.Scores.FallbackPreferred, f.Scores, "fallback_preferred")
	setInt(&t.Scores.Fallback, f.Scores, "fallback")
	setInt(&t.Gates.TaggedAttribute, f.Gates, "tagged_attribute")
	setInt(&t.Gates.SecondaryCode, f.Gates, "secondary_code")
	setInt(&t.Gates.Semantic, f.Gates, "semantic")
	setInt(&t.Gates.Fallback, f.Gates, "fallback")

	if f.Keywords != nil {
		t.Keywords = make([]extract.KeywordRule, len(f.Keywords))
		for i, k := range f.Keywords {
			t.Keywords[i] = extract.KeywordRule{Terms: k.Terms, Weight: k.Weight}
		}
	}
	if f.Ratio != nil {
		setRange(&t.Ratio.Accepted, f.Ratio.Accepted)
		setRange(&t.Ratio.Search, f.Ratio.Search)
		if f.Ratio.Target != nil {
			t.Ratio.Target = *f.Ratio.Target
		}
		if f.Ratio.MinScore != nil {
			t.Ratio.MinScore = *f.Ratio.MinScore
		}
	}
	if len(f.Selectors) > 0 {
		override := make(cfdi.SelectorSet, len(f.Selectors))
		for target, list := range f.Selectors {
			override[cfdi.Target(target)] = list
		}
		t.Selectors = t.Selectors.Merge(override)
	}
	return t
}

func setRange(dst *extract.Range, src *rangeFile) {
	if src != nil {
		*dst = extract.Range{Min: src.Min, Max: src.Max}
	}
}

func setInt(dst *int, m map[string]int, key string) {
	if v, ok := m[key]; ok {
		*dst = v
	}
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// compiledSchema compiles Schema on first use and reuses it afterwards.
func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(Schema())
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("tuning.schema.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("tuning.schema.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// validateAgainstSchema validates data (JSON) against the tuning schema.
func validateAgainstSchema(data []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal tuning: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("tuning does not match schema: %w", err)
	}
	return nil
}
