package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("batch x: %w", ErrNotFound), http.StatusNotFound},
		{NewAppError("BAD", "bad", ErrInvalidInput), http.StatusBadRequest},
		{ErrValidation, http.StatusBadRequest},
		{ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{ErrUnsupportedType, http.StatusUnsupportedMediaType},
		{ErrMalformedDocument, http.StatusUnprocessableEntity},
		{ErrDocumentTooComplex, http.StatusUnprocessableEntity},
		{ErrEmptyBatch, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), "%v", tc.err)
	}
}

func TestAppError(t *testing.T) {
	err := NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	assert.Equal(t, "CONFIG_ERROR: DB_URL is required: invalid input", err.Error())
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, WrapError(nil, "ignored"))
	assert.ErrorIs(t, WrapError(ErrDatabase, "ping"), ErrDatabase)
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Optional("issuer_tax_id", "HOT010101AB1", TaxID).
		Optional("recipient_tax_id", "", TaxID).
		Optional("document_id", "6F1E2D3C-4B5A-4978-8E7D-1A2B3C4D5E6F", UUID).
		Field("subtotal", "4350.00", Required, Decimal)
	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Error())

	v = NewValidator().
		Optional("issuer_tax_id", "NOT-AN-RFC", TaxID).
		Optional("document_id", "xyz", UUID).
		Field("subtotal", "-1", Decimal).
		Field("total", "  ", Required)
	require.Len(t, v.Errors(), 4)
	assert.ErrorIs(t, v.Error(), ErrValidation)
	assert.Contains(t, v.ErrorMessage(), "issuer_tax_id")
	assert.ErrorIs(t, ValidateAndReturnError(v), ErrInvalidInput)
}

func TestIsDecimal(t *testing.T) {
	for _, ok := range []string{"0", "150", "150.00"} {
		assert.True(t, IsDecimal(ok), ok)
	}
	for _, bad := range []string{"", "-1", "1e3", "1,000.00", "$5", "12.", ".5"} {
		assert.False(t, IsDecimal(bad), bad)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_URL", "postgres://localhost/cfdi")
	t.Setenv("EXTRACT_WORKERS", "8")
	t.Setenv("DB_DIAL_TIMEOUT", "2s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MAX_UPLOAD_BYTES", "not-a-number")

	cfg := LoadConfig()
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 8, cfg.Extract.Workers)
	assert.Equal(t, 2*time.Second, cfg.Database.DialTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, int64(50<<20), cfg.Extract.MaxUploadBytes)
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mysql"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidInput)
}

func TestContextIDs(t *testing.T) {
	ctx := WithBatchID(WithRequestID(context.Background(), "req-1"), "batch-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "batch-1", BatchIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.NotNil(t, LoggerFromContext(ctx, nil))
}
