package run_manager

import (
	"errors"
	"os"
	"sync"
)

// Scope tracks every temp path produced while handling one request so that
// all of them can be removed on any exit path.
type Scope struct {
	base  string
	mu    sync.Mutex
	paths []string
}

// NewScope creates temp artifacts under base, or under the system temp dir
// when base is empty.
func NewScope(base string) *Scope {
	return &Scope{base: base}
}

func (s *Scope) MkdirTemp(pattern string) (string, error) {
	dir, err := os.MkdirTemp(s.base, pattern)
	if err != nil {
		return "", err
	}
	s.Track(dir)
	return dir, nil
}

func (s *Scope) CreateTemp(pattern string) (*os.File, error) {
	f, err := os.CreateTemp(s.base, pattern)
	if err != nil {
		return nil, err
	}
	s.Track(f.Name())
	return f, nil
}

// Track registers paths created elsewhere for removal.
func (s *Scope) Track(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, paths...)
}

func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Clean removes every tracked path, newest first. Paths that are already
// gone are not an error.
func (s *Scope) Clean() error {
	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	var errs []error
	for i := len(paths) - 1; i >= 0; i-- {
		if err := os.RemoveAll(paths[i]); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
