// Package batch runs a set of uploads through the extractor with bounded
// concurrency and assembles the upload-ordered result.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/cfdi-tracker/constants"
	"github.com/joseph-ayodele/cfdi-tracker/internal/common"
	"github.com/joseph-ayodele/cfdi-tracker/internal/entity"
	"github.com/joseph-ayodele/cfdi-tracker/internal/extract"
)

// Rejection reasons reported to users and metrics.
const (
	ReasonTooLarge        = "too_large"
	ReasonUnsupportedType = "unsupported_type"
)

// Upload is one file offered for extraction. Size and ContentType are the
// values declared by the client and may be zero.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// RejectObserver is told about every upload refused before extraction.
type RejectObserver interface {
	ObserveRejection(reason string)
}

// Aggregator processes uploads independently; one bad file never stops the
// others.
type Aggregator struct {
	extractor extract.RecordExtractor
	logger    *slog.Logger
	workers   int
	maxBytes  int64
	observer  RejectObserver
}

type Option func(*Aggregator)

func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxBytes = n
		}
	}
}

func WithRejectObserver(o RejectObserver) Option {
	return func(a *Aggregator) { a.observer = o }
}

func NewAggregator(x extract.RecordExtractor, logger *slog.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Aggregator{
		extractor: x,
		logger:    logger,
		workers:   4,
		maxBytes:  constants.MaxUploadBytes,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

type outcome struct {
	record   entity.ExtractedRecord
	rejected *entity.Rejection
}

// Process extracts every upload and returns records in upload order. It
// only fails when ctx is done before all uploads were handled.
func (a *Aggregator) Process(ctx context.Context, uploads []Upload) (entity.BatchResult, error) {
	log := common.LoggerFromContext(ctx, a.logger)
	results := make([]outcome, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, u := range uploads {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.processOne(log, u)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return entity.BatchResult{}, fmt.Errorf("batch abandoned: %w", err)
	}

	var res entity.BatchResult
	for i, o := range results {
		if o.rejected != nil {
			res.Rejected = append(res.Rejected, *o.rejected)
			continue
		}
		res.Records = append(res.Records, o.record)
		if o.record.Failed() {
			res.Failed++
			res.FailedFiles = append(res.FailedFiles, uploads[i].Name)
		} else {
			res.Succeeded++
		}
	}
	log.Info("batch.processed",
		"uploads", len(uploads),
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"rejected", len(res.Rejected),
	)
	return res, nil
}

func (a *Aggregator) processOne(log *slog.Logger, u Upload) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("batch.document.panic", "file", u.Name, "panic", r)
			out = outcome{record: entity.ErrorRecord(u.Name)}
		}
	}()

	data, err := a.read(u)
	if err != nil {
		var reason string
		switch {
		case errors.Is(err, common.ErrFileTooLarge):
			reason = ReasonTooLarge
		case errors.Is(err, common.ErrUnsupportedType):
			reason = ReasonUnsupportedType
		default:
			log.Warn("batch.document.unreadable", "file", u.Name, "err", err)
			return outcome{record: entity.ErrorRecord(u.Name)}
		}
		log.Warn("batch.upload.rejected", "file", u.Name, "reason", reason, "err", err)
		if a.observer != nil {
			a.observer.ObserveRejection(reason)
		}
		return outcome{rejected: &entity.Rejection{FileName: u.Name, Reason: err.Error()}}
	}

	rec := a.extractor.Extract(u.Name, data)
	if rec.Failed() {
		log.Warn("batch.document.failed", "file", u.Name)
	}
	return outcome{record: rec}
}

// read applies the extension, declared type and size checks, which reject the
// upload, then the sniffed content check, which fails the document.
func (a *Aggregator) read(u Upload) ([]byte, error) {
	if !constants.IsAllowedExt(filepath.Ext(u.Name)) {
		return nil, fmt.Errorf("%w: extension %q is not accepted", common.ErrUnsupportedType, filepath.Ext(u.Name))
	}
	if err := checkDeclaredType(u.ContentType); err != nil {
		return nil, err
	}
	if u.Size > a.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", common.ErrFileTooLarge, u.Size, a.maxBytes)
	}
	if u.Open == nil {
		return nil, errors.New("upload has no content")
	}

	rc, err := u.Open()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, a.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > a.maxBytes {
		return nil, fmt.Errorf("%w: exceeds the %d byte limit", common.ErrFileTooLarge, a.maxBytes)
	}
	// Content that passed the name and type checks is a document that failed,
	// not a refused upload.
	if m := mimetype.Detect(data); !isTextual(m) {
		return nil, fmt.Errorf("%w: content sniffed as %s", common.ErrMalformedDocument, m.String())
	}
	return data, nil
}

func checkDeclaredType(contentType string) error {
	if strings.TrimSpace(contentType) == "" {
		return nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("%w: content type %q: %v", common.ErrUnsupportedType, contentType, err)
	}
	if _, ok := constants.XMLContentTypes[mt]; ok || strings.HasSuffix(mt, "+xml") {
		return nil
	}
	return fmt.Errorf("%w: content type %q is not accepted", common.ErrUnsupportedType, mt)
}

// isTextual accepts XML and anything mimetype files under text/plain, which
// covers truncated documents that no longer sniff as XML.
func isTextual(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") || m.Is("text/xml") || m.Is("application/xml") {
			return true
		}
	}
	return false
}
