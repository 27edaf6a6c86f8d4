package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/cfdi-tracker/constants"
	"github.com/joseph-ayodele/cfdi-tracker/internal/common"
	"github.com/joseph-ayodele/cfdi-tracker/internal/entity"
	"github.com/joseph-ayodele/cfdi-tracker/internal/repository"
)

// SheetName is the single worksheet of an export.
const SheetName = "Extracted Data"

// ContentType is the media type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var columns = []struct {
	header string
	width  float64
}{
	{"No.", 5},
	{"File", 30},
	{"Issuer RFC", 15},
	{"Recipient RFC", 15},
	{"UUID", 40},
	{"Date", 20},
	{"Subtotal", 15},
	{"VAT", 15},
	{"Lodging Tax", 20},
	{"Total", 15},
}

// Service produces XLSX bytes for stored batches.
type Service struct {
	batches repository.BatchRepository
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(batches repository.BatchRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{batches: batches, logger: logger, now: time.Now}
}

// ExportBatchXLSX returns the workbook for a batch and its download name.
// A batch without records yields common.ErrEmptyBatch.
func (s *Service) ExportBatchXLSX(ctx context.Context, batchID uuid.UUID) ([]byte, string, error) {
	start := time.Now()
	b, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return nil, "", fmt.Errorf("load batch: %w", err)
	}
	if len(b.Records) == 0 {
		return nil, "", common.ErrEmptyBatch
	}
	data, err := BuildXLSX(b.Records)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("export.xlsx.ok",
		"batch_id", batchID.String(),
		"rows", len(b.Records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return data, FileName(s.now()), nil
}

// FileName is "extracted-data_<UTC timestamp>.xlsx" with the colons of the
// ISO time replaced by dashes.
func FileName(now time.Time) string {
	ts := now.UTC().Format("2006-01-02T15:04:05")
	return "extracted-data_" + strings.ReplaceAll(ts, ":", "-") + ".xlsx"
}

// BuildXLSX renders records, in order, as a one-sheet workbook. Empty fields
// are written as constants.NotFoundLabel.
func BuildXLSX(records []entity.ExtractedRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}
	for i, c := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, c.header)
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(SheetName, col, col, c.width)
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	_ = f.SetCellStyle(SheetName, "A1", last, bold)

	for i, r := range records {
		row := i + 2
		values := []any{
			i + 1,
			r.SourceFileName,
			orNotFound(r.IssuerTaxID),
			orNotFound(r.RecipientTaxID),
			orNotFound(r.DocumentID),
			orNotFound(r.IssueDate),
			orNotFound(r.Subtotal),
			orNotFound(r.ValueAddedTax),
			orNotFound(r.LodgingTax),
			orNotFound(r.TotalAmount),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", row, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func orNotFound(v string) string {
	if strings.TrimSpace(v) == "" {
		return constants.NotFoundLabel
	}
	return v
}
