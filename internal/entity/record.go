package entity

import (
	"github.com/joseph-ayodele/cfdi-tracker/constants"
)

// ExtractedRecord is the per-document extraction outcome. It is built once
// and never updated in place.
type ExtractedRecord struct {
	SourceFileName string                 `json:"source_file_name"`
	IssuerTaxID    string                 `json:"issuer_tax_id"`
	RecipientTaxID string                 `json:"recipient_tax_id"`
	DocumentID     string                 `json:"document_id"`
	IssueDate      string                 `json:"issue_date"`
	Subtotal       string                 `json:"subtotal"`
	TotalAmount    string                 `json:"total_amount"`
	ValueAddedTax  string                 `json:"value_added_tax"`
	LodgingTax     string                 `json:"lodging_tax"`
	Status         constants.RecordStatus `json:"status"`
}

// ErrorRecord returns the record reported for a document that could not be processed.
func ErrorRecord(fileName string) ExtractedRecord {
	s := constants.ErrorSentinel
	return ExtractedRecord{
		SourceFileName: fileName + constants.ErrorFileSuffix,
		IssuerTaxID:    s,
		RecipientTaxID: s,
		DocumentID:     s,
		IssueDate:      s,
		Subtotal:       s,
		TotalAmount:    s,
		ValueAddedTax:  s,
		LodgingTax:     s,
		Status:         constants.RecordStatusError,
	}
}

// Failed reports whether the record carries the error status.
func (r ExtractedRecord) Failed() bool {
	return r.Status == constants.RecordStatusError
}
