package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/cfdi-tracker/constants"
	"github.com/joseph-ayodele/cfdi-tracker/internal/entity"
)

// BatchRepository stores upload sessions. Records of a batch are append-only
// and always come back in the order they were appended.
type BatchRepository interface {
	Create(ctx context.Context) (entity.Batch, error)
	// Get returns the batch with its records, or an error wrapping
	// common.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (entity.Batch, error)
	AppendRecords(ctx context.Context, id uuid.UUID, records []entity.ExtractedRecord) error
	ClearRecords(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
	Close() error
}

// recordColumns is the column list shared by both SQL stores, after
// batch_id and seq.
const recordColumns = "source_file_name, issuer_tax_id, recipient_tax_id, document_id, issue_date, subtotal, total_amount, value_added_tax, lodging_tax, status"

func recordArgs(r entity.ExtractedRecord) []any {
	return []any{
		r.SourceFileName, r.IssuerTaxID, r.RecipientTaxID, r.DocumentID, r.IssueDate,
		r.Subtotal, r.TotalAmount, r.ValueAddedTax, r.LodgingTax, string(r.Status),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (entity.ExtractedRecord, error) {
	var (
		r      entity.ExtractedRecord
		status string
	)
	err := row.Scan(&r.SourceFileName, &r.IssuerTaxID, &r.RecipientTaxID, &r.DocumentID, &r.IssueDate,
		&r.Subtotal, &r.TotalAmount, &r.ValueAddedTax, &r.LodgingTax, &status)
	r.Status = constants.RecordStatus(status)
	return r, err
}
