package cfdi

// Target is a logical node the extractor asks for.
type Target string

const (
	TargetComprobante    Target = "comprobante"
	TargetIssuer         Target = "issuer"
	TargetRecipient      Target = "recipient"
	TargetStamp          Target = "stamp"
	TargetTransfers      Target = "transfers"
	TargetLocalTaxes     Target = "local_taxes"
	TargetLocalTransfers Target = "local_transfers"
)

// SelectorSet maps each target to CSS selectors tried in order. Names are
// matched against lowercased qualified names, so a prefixed variant needs
// its colon escaped.
type SelectorSet map[Target][]string

// DefaultSelectors covers CFDI 3.3/4.0 with and without namespace prefixes
// and the local-tax complement variants seen in the field.
func DefaultSelectors() SelectorSet {
	return SelectorSet{
		TargetComprobante: {
			`cfdi\:comprobante`,
			`comprobante`,
		},
		TargetIssuer: {
			`cfdi\:emisor`,
			`emisor`,
		},
		TargetRecipient: {
			`cfdi\:receptor`,
			`receptor`,
		},
		TargetStamp: {
			`tfd\:timbrefiscaldigital`,
			`timbrefiscaldigital`,
		},
		TargetTransfers: {
			`cfdi\:comprobante > cfdi\:impuestos > cfdi\:traslados > cfdi\:traslado`,
			`comprobante > impuestos > traslados > traslado`,
			`cfdi\:traslado`,
			`traslado`,
		},
		TargetLocalTaxes: {
			`implocal\:impuestoslocales`,
			`impuestoslocales`,
		},
		TargetLocalTransfers: {
			`implocal\:trasladoslocales`,
			`trasladoslocales`,
			`implocal\:imploctraslado`,
			`imploctraslado`,
		},
	}
}

// Merge returns a copy of s where every target present in override replaces
// the default list.
func (s SelectorSet) Merge(override SelectorSet) SelectorSet {
	out := make(SelectorSet, len(s))
	for t, list := range s {
		out[t] = append([]string(nil), list...)
	}
	for t, list := range override {
		if len(list) > 0 {
			out[t] = append([]string(nil), list...)
		}
	}
	return out
}
