package entity

import (
	"time"

	"github.com/google/uuid"
)

// Batch is one upload session: an append-only, upload-ordered list of records.
type Batch struct {
	ID        uuid.UUID         `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Records   []ExtractedRecord `json:"records"`
}

// Rejection is an upload refused before extraction (size or type).
type Rejection struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}

// BatchResult summarizes one processing run over a set of uploads.
type BatchResult struct {
	Records     []ExtractedRecord `json:"records"`
	Rejected    []Rejection       `json:"rejected"`
	Succeeded   int               `json:"succeeded"`
	Failed      int               `json:"failed"`
	FailedFiles []string          `json:"failed_files"`
}
