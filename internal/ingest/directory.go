package ingest

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/cfdi-tracker/internal/batch"
)

// FileUpload describes the file at path as an upload. Content is read lazily
// when the aggregator opens it.
func FileUpload(path string) (batch.Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return batch.Upload{}, err
	}
	if info.IsDir() {
		return batch.Upload{}, fmt.Errorf("%s is a directory", path)
	}
	return batch.Upload{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// Directory walks root, skips hidden entries if requested, and returns one
// upload per document file in lexical path order. Other files are counted as
// skipped.
func Directory(root string, skipHidden bool) ([]batch.Upload, []PathError, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root path is required")
	}

	var (
		uploads []batch.Upload
		failed  []PathError
		stats   DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			failed = append(failed, PathError{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(path) {
			stats.Skipped++
			return nil
		}

		u, err := FileUpload(path)
		if err != nil {
			failed = append(failed, PathError{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		uploads = append(uploads, u)
		stats.Matched++
		return nil
	})
	if err != nil {
		return uploads, failed, stats, fmt.Errorf("walk: %w", err)
	}
	return uploads, failed, stats, nil
}
