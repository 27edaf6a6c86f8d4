package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/cfdi-tracker/internal/export"
)

// exportBatch downloads the batch as a workbook. An empty batch answers 409.
func (s *Service) exportBatch(c *gin.Context) {
	id, err := batchID(c)
	if err != nil {
		s.sendError(c, err)
		return
	}
	data, name, err := s.exporter.ExportBatchXLSX(c.Request.Context(), id)
	if err != nil {
		s.sendError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, export.ContentType, data)
}
