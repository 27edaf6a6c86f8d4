package tuning

// Schema returns the JSON Schema a tuning file must satisfy, as a generic map.
// Every property is optional; omitted values keep their defaults.
func Schema() map[string]any {
	rangeProp := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"min", "max"},
		"properties": map[string]any{
			"min": decimalProp(),
			"max": decimalProp(),
		},
	}
	intProp := map[string]any{"type": "integer"}
	stringList := map[string]any{
		"type":     "array",
		"minItems": 1,
		"items":    map[string]any{"type": "string", "minLength": 1},
	}

	targets := map[string]any{}
	for _, t := range []string{"comprobante", "issuer", "recipient", "stamp", "transfers", "local_taxes", "local_transfers"} {
		targets[t] = stringList
	}

	props := map[string]any{
		"vat_codes":                 stringList,
		"lodging_codes":             map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"lodging_abbreviation":      map[string]any{"type": "string", "minLength": 1},
		"tax_code_attributes":       stringList,
		"amount_attributes":         stringList,
		"local_tax_type_attributes": stringList,
		"ignored_attributes":        map[string]any{"type": "array", "items": map[string]any{"type": "string", "minLength": 1}},
		"vat_range":                 rangeProp,
		"lodging_range":             rangeProp,
		"lodging_preferred":         rangeProp,
		"lodging_midpoint":          decimalProp(),
		"fallback_needs_context":    map[string]any{"type": "boolean"},
		"scores": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"exact_code":         intProp,
				"local_tax":          intProp,
				"tagged_attribute":   intProp,
				"secondary_code":     intProp,
				"fallback_preferred": intProp,
				"fallback":           intProp,
			},
		},
		"gates": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"tagged_attribute": intProp,
				"secondary_code":   intProp,
				"semantic":         intProp,
				"fallback":         intProp,
			},
		},
		"keywords": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"terms", "weight"},
				"properties": map[string]any{
					"terms":  stringList,
					"weight": intProp,
				},
			},
		},
		"ratio": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"accepted":  rangeProp,
				"search":    rangeProp,
				"target":    decimalProp(),
				"min_score": decimalProp(),
			},
		},
		"selectors": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           targets,
		},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

// decimalProp accepts a non-negative number or its plain string form.
func decimalProp() map[string]any {
	return map[string]any{
		"oneOf": []any{
			map[string]any{"type": "number", "minimum": 0},
			map[string]any{"type": "string", "pattern": `^\d+(\.\d+)?$`},
		},
	}
}
