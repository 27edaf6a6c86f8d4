package extract

import (
	"time"

	"github.com/joseph-ayodele/cfdi-tracker/constants"
	"github.com/joseph-ayodele/cfdi-tracker/internal/entity"
)

// RecordExtractor turns one uploaded document into a record. Implementations
// never fail: unreadable input yields an error-status record.
type RecordExtractor interface {
	Extract(fileName string, data []byte) entity.ExtractedRecord
}

// Observer receives one notification per processed document.
type Observer interface {
	ObserveDocument(status constants.RecordStatus, lodging Strategy, elapsed time.Duration)
}

// Result is the record plus the evidence behind its tax fields.
type Result struct {
	Record     entity.ExtractedRecord
	VAT        *Candidate
	Lodging    *Candidate
	Candidates []Candidate
	Warnings   []string
	Err        error
}

// LodgingStrategy is the strategy that produced the lodging tax, or zero.
func (r Result) LodgingStrategy() Strategy {
	if r.Lodging == nil {
		return 0
	}
	return r.Lodging.Strategy
}
