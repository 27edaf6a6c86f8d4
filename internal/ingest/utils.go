package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/cfdi-tracker/constants"
)

// AllowedExt checks if the path has an accepted document extension.
func AllowedExt(path string) bool {
	return constants.IsAllowedExt(filepath.Ext(path))
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return base != "." && base != ".." && strings.HasPrefix(base, ".")
}
