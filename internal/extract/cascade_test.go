package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cfdi-tracker/internal/cfdi"
)

func load(t *testing.T, xml string) *cfdi.Document {
	t.Helper()
	doc, err := cfdi.Load([]byte(xml), cfdi.Limits{})
	require.NoError(t, err)
	return doc
}

func runCascade(t *testing.T, xml string, claimed Claimed) []Candidate {
	t.Helper()
	tun := DefaultTuning()
	loc := cfdi.NewLocator(tun.Selectors, nil)
	return NewCascade(DefaultPhases(loc, tun), nil).Run(load(t, xml), claimed)
}

func TestCascadeStopsAtExplicitStructure(t *testing.T) {
	cands := runCascade(t, `<Comprobante>
		<Complemento>
			<ImpuestosLocales>
				<TrasladosLocales ImpLocTrasladado="ish" Importe="120.00"/>
			</ImpuestosLocales>
		</Complemento>
		<Otro Tipo="ISH" Valor="130.00"/>
	</Comprobante>`, Claimed{})

	require.Len(t, cands, 1)
	assert.Equal(t, StrategyLocalTax, cands[0].Strategy)
	assert.Equal(t, "120.00", cands[0].Value)
	assert.Equal(t, 100, cands[0].Score)
}

func TestCascadeTaggedAttribute(t *testing.T) {
	cands := runCascade(t, `<Comprobante>
		<Cargo Clave="Ish" Valor="85.50"/>
	</Comprobante>`, Claimed{})

	require.NotEmpty(t, cands)
	assert.Equal(t, StrategyTaggedAttribute, cands[0].Strategy)
	assert.Equal(t, "85.50", cands[0].Value)
	assert.Equal(t, 95, cands[0].Score)
}

func TestCascadeExcludesClaimedNumerically(t *testing.T) {
	cands := runCascade(t, `<Comprobante>
		<ImpuestosLocales>
			<TrasladosLocales ImpLocTrasladado="ISH" Importe="150"/>
		</ImpuestosLocales>
	</Comprobante>`, NewClaimed(decimal.RequireFromString("150.00")))

	for _, c := range cands {
		assert.False(t, c.Amount.Equal(decimal.NewFromInt(150)), c.Path)
	}
}

func TestCascadeSemanticScoring(t *testing.T) {
	cands := runCascade(t, `<Comprobante>
		<Cargo Descripcion="Impuesto sobre hospedaje" Monto="140.00"/>
		<Cargo Descripcion="IVA" Monto="160.00"/>
	</Comprobante>`, Claimed{})

	require.Len(t, cands, 1)
	assert.Equal(t, StrategySemantic, cands[0].Strategy)
	assert.Equal(t, "140.00", cands[0].Value)
	assert.Equal(t, 70, cands[0].Score)
}

func TestCascadeFallbackNeedsLodgingContext(t *testing.T) {
	plain := runCascade(t, `<Comprobante><Emisor RegimenFiscal="601"/></Comprobante>`, Claimed{})
	assert.Empty(t, plain)

	withContext := runCascade(t, `<Comprobante>
		<Emisor Nombre="Hotel Centro" RegimenFiscal="601"/>
		<Extra Monto="210.00"/>
	</Comprobante>`, Claimed{})
	require.NotEmpty(t, withContext)

	best, ok := SelectBest(withContext, DefaultTuning().LodgingMidpoint, "")
	require.True(t, ok)
	// RegimenFiscal is a catalog code and never a candidate.
	assert.Equal(t, StrategyRangeFallback, best.Strategy)
	assert.Equal(t, "210.00", best.Value)
	assert.Equal(t, 20, best.Score)
	for _, c := range withContext {
		assert.NotEqual(t, "601", c.Value, c.Path)
	}
}

func TestCascadeDedupesWithinPhase(t *testing.T) {
	cands := runCascade(t, `<Comprobante>
		<ImpuestosLocales TotaldeTraslados="99.00">
			<TrasladosLocales ImpLocTraslado="OTRO" Nota="hospedaje" Importe="99.00"/>
		</ImpuestosLocales>
	</Comprobante>`, Claimed{})

	var hits []Candidate
	for _, c := range cands {
		if c.Value == "99.00" {
			hits = append(hits, c)
		}
	}
	require.Len(t, hits, 1)
	assert.Equal(t, 150, hits[0].Score)
	assert.Equal(t, "comprobante[0]/impuestoslocales[0]@totaldetraslados", hits[0].Path)
}
