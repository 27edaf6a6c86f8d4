package extract

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cfdi-tracker/constants"
	"github.com/joseph-ayodele/cfdi-tracker/internal/cfdi"
)

func newTestExtractor(t *testing.T, opts ...Option) *Extractor {
	t.Helper()
	e, err := New(DefaultTuning(), nil, opts...)
	require.NoError(t, err)
	return e
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestExtractHotelWithLocalTax(t *testing.T) {
	e := newTestExtractor(t)
	res := e.ExtractDetailed("hotel.xml", fixture(t, "hotel_local_tax.xml"))
	rec := res.Record

	assert.Equal(t, constants.RecordStatusOK, rec.Status)
	assert.Equal(t, "hotel.xml", rec.SourceFileName)
	assert.Equal(t, "HOT010101AB1", rec.IssuerTaxID)
	assert.Equal(t, "EMP020202CD2", rec.RecipientTaxID)
	assert.Equal(t, "6F1E2D3C-4B5A-4978-8E7D-1A2B3C4D5E6F", rec.DocumentID)
	assert.Equal(t, "2024-03-15T10:20:30", rec.IssueDate)
	assert.Equal(t, "4350.00", rec.Subtotal)
	assert.Equal(t, "5196.00", rec.TotalAmount)
	assert.Equal(t, "696.00", rec.ValueAddedTax)
	assert.Equal(t, "150.00", rec.LodgingTax)
	assert.Equal(t, StrategyLocalTax, res.LodgingStrategy())
	assert.Empty(t, res.Warnings)
}

func TestExtractVATOnly(t *testing.T) {
	e := newTestExtractor(t)
	res := e.ExtractDetailed("restaurant.xml", fixture(t, "restaurant_vat_only.xml"))

	assert.Equal(t, constants.RecordStatusOK, res.Record.Status)
	assert.Equal(t, "160.00", res.Record.ValueAddedTax)
	assert.Equal(t, "", res.Record.LodgingTax)
	assert.Empty(t, res.Candidates)
}

func TestExtractLodgingEqualToVATIsCleared(t *testing.T) {
	e := newTestExtractor(t)
	rec := e.Extract("dup.xml", fixture(t, "lodging_equals_vat.xml"))

	assert.Equal(t, constants.RecordStatusOK, rec.Status)
	assert.Equal(t, "696.00", rec.ValueAddedTax)
	assert.Equal(t, "", rec.LodgingTax)
}

func TestExtractIgnoresHeaderCodes(t *testing.T) {
	tests := []struct {
		name    string
		fixture string
		vat     string
	}{
		{name: "hotel with vat only", fixture: "hotel_vat_only_full_header.xml", vat: "696.00"},
		{name: "local tax equal to vat", fixture: "lodging_equals_vat_full_header.xml", vat: "696.00"},
		{name: "legacy lodging equal to vat", fixture: "lodging_equals_vat.xml", vat: "696.00"},
	}
	e := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.ExtractDetailed(tt.fixture, fixture(t, tt.fixture))

			assert.Equal(t, constants.RecordStatusOK, res.Record.Status)
			assert.Equal(t, tt.vat, res.Record.ValueAddedTax)
			assert.Equal(t, "", res.Record.LodgingTax, "%+v", res.Lodging)
			assert.Empty(t, res.Candidates)
		})
	}
}

func TestExtractIgnoredAttributesAreTunable(t *testing.T) {
	tun := DefaultTuning()
	tun.IgnoredAttributes = nil
	e, err := New(tun, nil)
	require.NoError(t, err)

	res := e.ExtractDetailed("hotel.xml", fixture(t, "hotel_vat_only_full_header.xml"))
	assert.NotEqual(t, "", res.Record.LodgingTax)
}

func TestExtractMalformed(t *testing.T) {
	e := newTestExtractor(t)
	full := fixture(t, "hotel_local_tax.xml")
	rec := e.Extract("broken.xml", full[:len(full)-40])

	assert.Equal(t, constants.RecordStatusError, rec.Status)
	assert.Equal(t, "broken.xml (ERROR)", rec.SourceFileName)
	for _, v := range []string{rec.IssuerTaxID, rec.RecipientTaxID, rec.DocumentID, rec.IssueDate,
		rec.Subtotal, rec.TotalAmount, rec.ValueAddedTax, rec.LodgingTax} {
		assert.Equal(t, constants.ErrorSentinel, v)
	}
}

func TestExtractUnprefixedUppercase(t *testing.T) {
	e := newTestExtractor(t)
	rec := e.Extract("upper.xml", fixture(t, "unprefixed_mixed_case.xml"))

	assert.Equal(t, "HOT010101AB1", rec.IssuerTaxID)
	assert.Equal(t, "2500.00", rec.Subtotal)
	assert.Equal(t, "400.00", rec.ValueAddedTax)
	assert.Equal(t, "75.00", rec.LodgingTax)
	assert.Equal(t, "AAAAAAAA-BBBB-4CCC-8DDD-EEEEEEEEEEEE", rec.DocumentID)
}

func TestExtractSecondaryCodeWithoutLocalTaxes(t *testing.T) {
	e := newTestExtractor(t)
	res := e.ExtractDetailed("code.xml", fixture(t, "code_003.xml"))

	assert.Equal(t, "480.00", res.Record.ValueAddedTax)
	assert.Equal(t, "90.00", res.Record.LodgingTax)
	assert.Equal(t, StrategyExactCode, res.LodgingStrategy())
}

func TestExtractImplausibleLodgingIsReplaced(t *testing.T) {
	e := newTestExtractor(t)
	res := e.ExtractDetailed("ratio.xml", fixture(t, "misplaced_lodging.xml"))

	assert.Equal(t, "800.00", res.Record.ValueAddedTax)
	assert.Equal(t, "150.00", res.Record.LodgingTax)
	assert.Equal(t, StrategyRatioSearch, res.LodgingStrategy())
	assert.Equal(t, "cfdi:comprobante[0]/cfdi:complemento[0]/implocal:impuestoslocales[0]/implocal:detalle[0]@monto", res.Lodging.Path)
}

func TestExtractIsIdempotent(t *testing.T) {
	e := newTestExtractor(t)
	for _, name := range []string{"hotel_local_tax.xml", "misplaced_lodging.xml", "restaurant_vat_only.xml"} {
		data := fixture(t, name)
		assert.Equal(t, e.Extract(name, data), e.Extract(name, data), name)
	}
}

func TestTaxFieldsNeverEqual(t *testing.T) {
	e := newTestExtractor(t)
	entries, err := os.ReadDir("testdata")
	require.NoError(t, err)
	for _, entry := range entries {
		rec := e.Extract(entry.Name(), fixture(t, entry.Name()))
		if rec.Failed() || rec.ValueAddedTax == "" || rec.LodgingTax == "" {
			continue
		}
		assert.NotEqual(t, rec.ValueAddedTax, rec.LodgingTax, entry.Name())
	}
}

func TestExtractFlagsSuspectIdentity(t *testing.T) {
	e := newTestExtractor(t)
	doc := `<Comprobante SubTotal="abc" Total="100.00"><Emisor Rfc="nope"/><TimbreFiscalDigital UUID="not-a-uuid"/></Comprobante>`
	res := e.ExtractDetailed("odd.xml", []byte(doc))

	assert.Equal(t, constants.RecordStatusOK, res.Record.Status)
	assert.Equal(t, "", res.Record.Subtotal)
	assert.Equal(t, "100.00", res.Record.TotalAmount)
	assert.Equal(t, "nope", res.Record.IssuerTaxID)
	require.Len(t, res.Warnings, 3)
	assert.Contains(t, res.Warnings[2], "subtotal")
}

func TestExtractFlagsMalformedTotals(t *testing.T) {
	e := newTestExtractor(t)
	doc := `<Comprobante SubTotal="1,000.00" Total="-5"><Impuestos><Traslados><Traslado Impuesto="002" Importe="160.00"/></Traslados></Impuestos></Comprobante>`
	res := e.ExtractDetailed("totals.xml", []byte(doc))

	assert.Equal(t, "", res.Record.Subtotal)
	assert.Equal(t, "", res.Record.TotalAmount)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "subtotal")
	assert.Contains(t, res.Warnings[1], "total")
}

type panicPhase struct{}

func (panicPhase) Strategy() Strategy { return StrategySemantic }
func (panicPhase) Gate() int          { return 0 }
func (panicPhase) Search(*cfdi.Document, Claimed) []Candidate {
	panic("boom")
}

type recordingObserver struct {
	statuses []constants.RecordStatus
}

func (o *recordingObserver) ObserveDocument(status constants.RecordStatus, _ Strategy, _ time.Duration) {
	o.statuses = append(o.statuses, status)
}

func TestExtractRecoversFromPanics(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestExtractor(t, WithPhases(panicPhase{}), WithObserver(obs))

	rec := e.Extract("hotel.xml", fixture(t, "hotel_local_tax.xml"))
	assert.True(t, rec.Failed())
	assert.Equal(t, "hotel.xml (ERROR)", rec.SourceFileName)
	assert.Equal(t, []constants.RecordStatus{constants.RecordStatusError}, obs.statuses)
}

func TestNewRejectsBrokenTuning(t *testing.T) {
	tun := DefaultTuning()
	tun.LodgingRange = NewRange("100", "10")
	_, err := New(tun, nil)
	assert.Error(t, err)
}
