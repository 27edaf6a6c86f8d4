package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/cfdi-tracker/internal/export"
)

func copyFixture(t *testing.T, name, dst string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "internal", "extract", "testdata", name))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, data, 0o644))
}

func TestExtractCommand(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("LOG_LEVEL", "ERROR")

	dir := t.TempDir()
	copyFixture(t, "hotel_local_tax.xml", filepath.Join(dir, "hotel.xml"))
	copyFixture(t, "restaurant_vat_only.xml", filepath.Join(dir, "restaurant.xml"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.xml"), []byte("<cfdi:Comprobante"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))
	out := filepath.Join(t.TempDir(), "report.xlsx")

	var stdout bytes.Buffer
	cmd := newRootCmd(&app{})
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"extract", "--dir", dir, "--out", out, "--env-file", filepath.Join(dir, "missing.env")})
	require.NoError(t, cmd.Execute())

	text := stdout.String()
	assert.Contains(t, text, "- Files processed: 3")
	assert.Contains(t, text, "- Succeeded: 2")
	assert.Contains(t, text, "- Failed: 1")
	assert.Contains(t, text, "    broken.xml\n")
	assert.Contains(t, text, "- Output: "+out)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "hotel.xml", rows[2][1])
	assert.Equal(t, "150.00", rows[2][8])
}

func TestExtractCommandNeedsDir(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	cmd := newRootCmd(&app{})
	cmd.SetArgs([]string{"extract", "--env-file", filepath.Join(t.TempDir(), "missing.env")})
	assert.EqualError(t, cmd.Execute(), "--dir is required")
}
