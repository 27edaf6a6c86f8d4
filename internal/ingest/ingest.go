// Package ingest turns files on the local filesystem into batch uploads,
// either by walking a directory once or by watching it for new documents.
package ingest

// DirStats summarizes a directory walk.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
	Failed  uint32
}

// PathError records a path that could not be turned into an upload.
type PathError struct {
	Path string
	Err  string
}
