package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/cfdi-tracker/internal/common"
	"github.com/joseph-ayodele/cfdi-tracker/internal/entity"
)

type batchResponse struct {
	ID        string                   `json:"id"`
	CreatedAt string                   `json:"created_at"`
	Count     int                      `json:"count"`
	Records   []entity.ExtractedRecord `json:"records"`
}

func toBatchResponse(b entity.Batch) batchResponse {
	recs := b.Records
	if recs == nil {
		recs = []entity.ExtractedRecord{}
	}
	return batchResponse{
		ID:        b.ID.String(),
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		Count:     len(recs),
		Records:   recs,
	}
}

func (s *Service) createBatch(c *gin.Context) {
	b, err := s.batches.Create(c.Request.Context())
	if err != nil {
		s.sendError(c, err)
		return
	}
	ctx := common.WithBatchID(c.Request.Context(), b.ID.String())
	common.LoggerFromContext(ctx, s.logger).Info("batch.created")
	c.JSON(http.StatusCreated, toBatchResponse(b))
}

func (s *Service) getBatch(c *gin.Context) {
	id, err := batchID(c)
	if err != nil {
		s.sendError(c, err)
		return
	}
	b, err := s.batches.Get(c.Request.Context(), id)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBatchResponse(b))
}

func (s *Service) clearRecords(c *gin.Context) {
	id, err := batchID(c)
	if err != nil {
		s.sendError(c, err)
		return
	}
	if err := s.batches.ClearRecords(c.Request.Context(), id); err != nil {
		s.sendError(c, err)
		return
	}
	common.LoggerFromContext(c.Request.Context(), s.logger).Info("batch.cleared")
	c.Status(http.StatusNoContent)
}
