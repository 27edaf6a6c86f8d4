// Package server exposes batch upload, inspection and export over HTTP, and
// the standard gRPC health service.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/cfdi-tracker/internal/batch"
	"github.com/joseph-ayodele/cfdi-tracker/internal/common"
	"github.com/joseph-ayodele/cfdi-tracker/internal/export"
	"github.com/joseph-ayodele/cfdi-tracker/internal/metrics"
	"github.com/joseph-ayodele/cfdi-tracker/internal/repository"
)

// Service wires the HTTP handlers to the batch store and the aggregator.
type Service struct {
	batches    repository.BatchRepository
	aggregator *batch.Aggregator
	exporter   *export.Service
	metrics    *metrics.Metrics
	logger     *slog.Logger
	maxMemory  int64
}

func NewService(batches repository.BatchRepository, agg *batch.Aggregator, exp *export.Service, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		batches:    batches,
		aggregator: agg,
		exporter:   exp,
		metrics:    m,
		logger:     logger,
		maxMemory:  32 << 20,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Service) Router() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = s.maxMemory
	r.Use(requestID(), accessLog(s.logger, s.metrics), recovery(s.logger))

	r.GET("/health", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api/v1")
	{
		batches := api.Group("/batches")
		{
			batches.POST("", s.createBatch)
			batches.GET("/:id", s.getBatch)
			batches.POST("/:id/documents", s.uploadDocuments)
			batches.DELETE("/:id/records", s.clearRecords)
			batches.GET("/:id/export", s.exportBatch)
		}
	}
	return r
}

func (s *Service) health(c *gin.Context) {
	if err := repository.HealthCheck(c.Request.Context(), s.batches, 0, s.logger); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "cfdi-tracker"})
}

// batchID parses the :id path parameter and tags the request context with it.
func batchID(c *gin.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	v := common.NewValidator().Field("batch_id", raw, common.Required, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, common.NewAppError("INVALID_BATCH_ID", "batch id must be a UUID", common.ErrInvalidInput)
	}
	c.Request = c.Request.WithContext(common.WithBatchID(c.Request.Context(), id.String()))
	return id, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// sendError answers with the status mapped from err and logs server faults.
func (s *Service) sendError(c *gin.Context, err error) {
	code := common.HTTPStatus(err)
	log := common.LoggerFromContext(c.Request.Context(), s.logger)
	if code >= http.StatusInternalServerError {
		log.Error("http.request.failed", "path", c.FullPath(), "err", err)
	} else {
		log.Warn("http.request.rejected", "path", c.FullPath(), "status", code, "err", err)
	}
	c.AbortWithStatusJSON(code, errorResponse{
		Error:   http.StatusText(code),
		Message: err.Error(),
		Code:    code,
	})
}
