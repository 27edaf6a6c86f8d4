package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/cfdi-tracker/constants"
	"github.com/joseph-ayodele/cfdi-tracker/internal/batch"
	"github.com/joseph-ayodele/cfdi-tracker/internal/export"
	"github.com/joseph-ayodele/cfdi-tracker/internal/extract"
	"github.com/joseph-ayodele/cfdi-tracker/internal/metrics"
	"github.com/joseph-ayodele/cfdi-tracker/internal/repository"
)

const restaurantDoc = `<?xml version="1.0" encoding="UTF-8"?>
<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" SubTotal="1000.00" Total="1160.00">
  <cfdi:Emisor Rfc="AAA010101AAA"/>
  <cfdi:Receptor Rfc="BBB020202BBB"/>
  <cfdi:Impuestos>
    <cfdi:Traslados>
      <cfdi:Traslado Impuesto="002" Importe="160.00"/>
    </cfdi:Traslados>
  </cfdi:Impuestos>
</cfdi:Comprobante>`

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type harness struct {
	router  *gin.Engine
	metrics *metrics.Metrics
}

func newHarness(t *testing.T) harness {
	t.Helper()
	repo, err := repository.Open(context.Background(), repository.Config{Driver: repository.DriverSQLite, DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	m := metrics.New()
	x, err := extract.New(extract.DefaultTuning(), nil, extract.WithObserver(m))
	require.NoError(t, err)
	agg := batch.NewAggregator(x, nil, batch.WithWorkers(2), batch.WithRejectObserver(m))
	svc := NewService(repo, agg, export.NewService(repo, nil), m, nil)
	return harness{router: svc.Router(), metrics: m}
}

func (h harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h harness) createBatch(t *testing.T) string {
	t.Helper()
	w := h.do(httptest.NewRequest(http.MethodPost, "/api/v1/batches", nil))
	require.Equal(t, http.StatusCreated, w.Code)
	var body batchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.ID)
	assert.Equal(t, 0, body.Count)
	return body.ID
}

func multipartBody(t *testing.T, files map[string]string, order []string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for _, name := range order {
		fw, err := mw.CreateFormFile(FormFiles, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func (h harness) upload(t *testing.T, id string, files map[string]string, order []string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, files, order)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/"+id+"/documents", body)
	req.Header.Set("Content-Type", ct)
	return h.do(req)
}

func TestBatchLifecycle(t *testing.T) {
	h := newHarness(t)
	id := h.createBatch(t)

	files := map[string]string{
		"restaurant.xml": restaurantDoc,
		"broken.xml":     restaurantDoc[:len(restaurantDoc)/2],
		"notes.pdf":      "%PDF-1.4",
	}
	w := h.upload(t, id, files, []string{"restaurant.xml", "broken.xml", "notes.pdf"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var up uploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))
	assert.Equal(t, id, up.BatchID)
	assert.Equal(t, 1, up.Succeeded)
	assert.Equal(t, 1, up.Failed)
	assert.Equal(t, []string{"broken.xml"}, up.FailedFiles)
	require.Len(t, up.Rejected, 1)
	assert.Equal(t, "notes.pdf", up.Rejected[0].FileName)
	require.Len(t, up.Records, 2)
	assert.Equal(t, "160.00", up.Records[0].ValueAddedTax)
	assert.Equal(t, "broken.xml"+constants.ErrorFileSuffix, up.Records[1].SourceFileName)

	// A second upload appends after the first.
	w = h.upload(t, id, map[string]string{"again.xml": restaurantDoc}, []string{"again.xml"})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got batchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, 3, got.Count)
	assert.Equal(t, "restaurant.xml", got.Records[0].SourceFileName)
	assert.Equal(t, "again.xml", got.Records[2].SourceFileName)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+id+"/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `attachment; filename="extracted-data_`)

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	w = h.do(httptest.NewRequest(http.MethodDelete, "/api/v1/batches/"+id+"/records", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+id+"/export", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBatchErrors(t *testing.T) {
	h := newHarness(t)

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/batches/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var invalid errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &invalid))
	assert.Contains(t, invalid.Message, "batch_id")

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/v1/batches/00000000-0000-4000-8000-000000000000", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.upload(t, "00000000-0000-4000-8000-000000000000", map[string]string{"a.xml": restaurantDoc}, []string{"a.xml"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	id := h.createBatch(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/"+id+"/documents", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	w = h.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var e errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, http.StatusBadRequest, e.Code)
}

func TestHealthMetricsAndRequestID(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w := h.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))

	w = h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	id := h.createBatch(t)
	h.upload(t, id, map[string]string{"a.xml": restaurantDoc, "b.txt": "x"}, []string{"a.xml", "b.txt"})

	w = h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	out := w.Body.String()
	assert.Contains(t, out, `cfdi_documents_total{status="ok"} 1`)
	assert.Contains(t, out, `cfdi_uploads_rejected_total{reason="unsupported_type"} 1`)
	assert.Contains(t, out, `cfdi_http_requests_total{code="200",route="/health"} 2`)
}

func TestGRPCHealth(t *testing.T) {
	gs, hs := NewGRPCServer()
	defer gs.Stop()
	require.NotNil(t, hs)
	assert.Contains(t, gs.GetServiceInfo(), "grpc.health.v1.Health")
}
