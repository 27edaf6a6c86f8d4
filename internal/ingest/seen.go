package ingest

import (
	"os"
	"sync"
	"time"
)

type fileStamp struct {
	size    int64
	modTime time.Time
}

// Seen remembers the size and modification time of every file handed out by
// Changed. A file is handed out again only once either one differs.
type Seen struct {
	mu    sync.Mutex
	files map[string]fileStamp
}

func NewSeen() *Seen {
	return &Seen{files: make(map[string]fileStamp)}
}

// Changed stats path and reports whether it is new or differs from the last
// time it was reported. A true result marks the current stamp.
func (s *Seen) Changed(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	stamp := fileStamp{size: fi.Size(), modTime: fi.ModTime()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.files[path]; ok && prev.size == stamp.size && prev.modTime.Equal(stamp.modTime) {
		return false, nil
	}
	s.files[path] = stamp
	return true, nil
}

// Forget drops path so the next Changed reports it again.
func (s *Seen) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}
