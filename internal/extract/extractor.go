// Package extract resolves the identity, totals and tax fields of a CFDI
// invoice. The value-added tax comes from an exact code match; the lodging
// tax goes through a cascade of increasingly loose phases, a ranker that
// keeps the two taxes distinct, and a ratio-to-subtotal plausibility pass.
package extract

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/cfdi-tracker/constants"
	"github.com/joseph-ayodele/cfdi-tracker/internal/cfdi"
	"github.com/joseph-ayodele/cfdi-tracker/internal/common"
	"github.com/joseph-ayodele/cfdi-tracker/internal/entity"
)

// Extractor is safe for concurrent use; it holds no per-document state.
type Extractor struct {
	tuning       Tuning
	limits       cfdi.Limits
	locator      *cfdi.Locator
	cascade      *Cascade
	plausibility Plausibility
	observer     Observer
	logger       *slog.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithLimits overrides the loader limits.
func WithLimits(l cfdi.Limits) Option {
	return func(e *Extractor) { e.limits = l }
}

// WithObserver registers an observer notified after each document.
func WithObserver(o Observer) Option {
	return func(e *Extractor) { e.observer = o }
}

// WithPhases replaces the lodging-tax cascade.
func WithPhases(phases ...Phase) Option {
	return func(e *Extractor) { e.cascade = NewCascade(phases, e.logger) }
}

// New builds an Extractor for the given tuning.
func New(t Tuning, logger *slog.Logger, opts ...Option) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := t.Validate(); err != nil {
		return nil, common.WrapError(common.ErrInvalidInput, err.Error())
	}
	loc := cfdi.NewLocator(t.Selectors, logger)
	e := &Extractor{
		tuning:       t,
		limits:       cfdi.DefaultLimits(),
		locator:      loc,
		cascade:      NewCascade(DefaultPhases(loc, t), logger),
		plausibility: NewPlausibility(t.Ratio, t.IgnoredAttributes),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract returns the record for one document.
func (e *Extractor) Extract(fileName string, data []byte) entity.ExtractedRecord {
	return e.ExtractDetailed(fileName, data).Record
}

// ExtractDetailed runs the full pipeline and keeps the evidence. Any parse
// failure or panic is converted into an error record.
func (e *Extractor) ExtractDetailed(fileName string, data []byte) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extract.document.panic", "file", fileName, "panic", r)
			res = Result{Record: entity.ErrorRecord(fileName), Err: fmt.Errorf("%w: %v", common.ErrInternal, r)}
		}
		if e.observer != nil {
			e.observer.ObserveDocument(res.Record.Status, res.LodgingStrategy(), time.Since(start))
		}
	}()

	doc, err := cfdi.Load(data, e.limits)
	if err != nil {
		e.logger.Warn("extract.document.unreadable", "file", fileName, "err", err)
		return Result{Record: entity.ErrorRecord(fileName), Err: err}
	}
	res = e.extract(fileName, doc)
	e.logger.Debug("extract.document.ok",
		"file", fileName,
		"vat", res.Record.ValueAddedTax,
		"lodging", res.Record.LodgingTax,
		"lodging_strategy", res.LodgingStrategy().String(),
		"candidates", len(res.Candidates),
	)
	return res
}

func (e *Extractor) extract(fileName string, doc *cfdi.Document) Result {
	t := e.tuning
	rec := entity.ExtractedRecord{SourceFileName: fileName, Status: constants.RecordStatusOK}

	top := doc.Top()
	root, ok := e.locator.First(top, cfdi.TargetComprobante)
	if !ok {
		root = doc.Root()
	}
	if n, ok := e.locator.First(top, cfdi.TargetIssuer); ok {
		_, rec.IssuerTaxID = n.FirstAttr("Rfc")
	}
	if n, ok := e.locator.First(top, cfdi.TargetRecipient); ok {
		_, rec.RecipientTaxID = n.FirstAttr("Rfc")
	}
	if n, ok := e.locator.First(top, cfdi.TargetStamp); ok {
		_, rec.DocumentID = n.FirstAttr("UUID")
	}
	if rec.DocumentID == "" {
		_, rec.DocumentID = root.FirstAttr("UUID")
	}
	_, rec.IssueDate = root.FirstAttr("Fecha")
	_, subtotal := root.FirstAttr("SubTotal")
	_, total := root.FirstAttr("Total")
	rec.Subtotal = cleanAmount(subtotal)
	rec.TotalAmount = cleanAmount(total)

	res := Result{}
	claimed := Claimed{}
	if vat, ok := matchVAT(doc, e.locator, t); ok {
		rec.ValueAddedTax = vat.Value
		claimed = claimed.With(vat.Amount)
		res.VAT = &vat
	}

	var lodging *Candidate
	if c, ok := matchLodgingCode(doc, e.locator, t, claimed); ok {
		lodging = &c
		res.Candidates = []Candidate{c}
	} else {
		res.Candidates = e.cascade.Run(doc, claimed)
		if best, ok := SelectBest(res.Candidates, t.LodgingMidpoint, rec.ValueAddedTax); ok {
			lodging = &best
		}
	}

	if lodging != nil {
		if sub, ok := parseAmount(rec.Subtotal); ok && sub.IsPositive() && !e.plausibility.InBand(lodging.Amount, sub) {
			e.logger.Debug("extract.lodging.implausible",
				"file", fileName,
				"lodging", lodging.Value,
				"ratio", lodging.Amount.Div(sub).StringFixed(4),
			)
			if better, ok := e.plausibility.Research(doc, sub, claimed); ok {
				lodging = &better
			}
		}
		rec.LodgingTax = lodging.Value
		res.Lodging = lodging
	}

	res.Warnings = e.check(rec, subtotal, total)
	for _, w := range res.Warnings {
		e.logger.Debug("extract.field.suspect", "file", fileName, "detail", w)
	}
	res.Record = rec
	return res
}

// check flags identity fields and raw totals with an unexpected shape. It
// never changes the record.
func (e *Extractor) check(rec entity.ExtractedRecord, subtotal, total string) []string {
	v := common.NewValidator().
		Optional("issuer_tax_id", rec.IssuerTaxID, common.TaxID).
		Optional("recipient_tax_id", rec.RecipientTaxID, common.TaxID).
		Optional("document_id", rec.DocumentID, common.UUID).
		Optional("subtotal", subtotal, common.Decimal).
		Optional("total", total, common.Decimal)
	var out []string
	for _, err := range v.Errors() {
		out = append(out, err.Error())
	}
	return out
}

// Tuning returns the tuning in use.
func (e *Extractor) Tuning() Tuning { return e.tuning }

// InvalidSelectors lists selectors that failed to compile and are ignored.
func (e *Extractor) InvalidSelectors() []string { return e.locator.Invalid() }
