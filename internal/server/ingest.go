package server

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/cfdi-tracker/internal/batch"
	"github.com/joseph-ayodele/cfdi-tracker/internal/common"
	"github.com/joseph-ayodele/cfdi-tracker/internal/entity"
)

// FormFiles is the multipart field that carries the uploaded documents.
const FormFiles = "files"

type uploadResponse struct {
	BatchID string `json:"batch_id"`
	entity.BatchResult
}

// uploadDocuments runs every uploaded file through the aggregator and appends
// the resulting records to the batch, in upload order.
func (s *Service) uploadDocuments(c *gin.Context) {
	id, err := batchID(c)
	if err != nil {
		s.sendError(c, err)
		return
	}
	ctx := c.Request.Context()
	log := common.LoggerFromContext(ctx, s.logger)

	if _, err := s.batches.Get(ctx, id); err != nil {
		s.sendError(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		s.sendError(c, common.NewAppError("INVALID_FORM", "failed to parse multipart form", common.ErrInvalidInput))
		return
	}
	files := form.File[FormFiles]
	if len(files) == 0 {
		s.sendError(c, common.NewAppError("NO_FILES", "no files provided", common.ErrInvalidInput))
		return
	}

	uploads := make([]batch.Upload, 0, len(files))
	for _, fh := range files {
		uploads = append(uploads, toUpload(fh))
	}

	log.Info("batch.upload.start", "files", len(uploads))
	res, err := s.aggregator.Process(ctx, uploads)
	if err != nil {
		s.sendError(c, err)
		return
	}
	if len(res.Records) > 0 {
		if err := s.batches.AppendRecords(ctx, id, res.Records); err != nil {
			s.sendError(c, err)
			return
		}
	}
	log.Info("batch.upload.ok",
		"records", len(res.Records),
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"rejected", len(res.Rejected),
	)

	if res.Records == nil {
		res.Records = []entity.ExtractedRecord{}
	}
	if res.Rejected == nil {
		res.Rejected = []entity.Rejection{}
	}
	if res.FailedFiles == nil {
		res.FailedFiles = []string{}
	}
	c.JSON(http.StatusOK, uploadResponse{BatchID: id.String(), BatchResult: res})
}

func toUpload(fh *multipart.FileHeader) batch.Upload {
	return batch.Upload{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
}
