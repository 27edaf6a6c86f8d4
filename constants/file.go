package constants

import "strings"

// MaxUploadBytes is the default per-file size limit (50 MiB).
const MaxUploadBytes int64 = 50 << 20

// AllowedExtensions holds the file extensions accepted for extraction.
var AllowedExtensions = map[string]struct{}{
	"xml": {},
}

// XMLContentTypes are the declared media types accepted for an upload.
// Generic types are allowed because browsers and curl often send them for .xml files.
var XMLContentTypes = map[string]struct{}{
	"text/xml":                 {},
	"application/xml":          {},
	"text/plain":               {},
	"application/octet-stream": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without dot) is accepted.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
