// Package run_manager owns the node's runtime directory and the temp
// artifacts each request creates inside it.
package run_manager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const runtimeSuffix = "connector-runtime"

type RunManager struct {
	dir    string
	nodeID string
}

// Create makes the runtime directory for the node with the given id.
func Create(nodeID string) (*RunManager, error) {
	path, err := os.MkdirTemp("", fmt.Sprintf("*-%s-%s", nodeID, runtimeSuffix))
	if err != nil {
		return nil, err
	}
	return &RunManager{dir: path, nodeID: nodeID}, nil
}

func (r *RunManager) Dir() string {
	return r.dir
}

// Scope starts a request scope rooted in the runtime directory.
func (r *RunManager) Scope() *Scope {
	return NewScope(r.dir)
}

func (r *RunManager) Clean() error {
	return os.RemoveAll(r.dir)
}

// siblings lists the other runtime directories of the same node id.
func (r *RunManager) siblings() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), fmt.Sprintf("*-%s-%s", r.nodeID, runtimeSuffix)))
	if err != nil {
		return nil, err
	}
	out := matches[:0]
	for _, path := range matches {
		if filepath.Clean(path) == filepath.Clean(r.dir) {
			continue
		}
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			out = append(out, path)
		}
	}
	return out, nil
}

// CleanStale removes runtime directories left behind by earlier runs of
// this node. It fails with ErrNodeRunning when one of them still belongs to
// a live process.
func (r *RunManager) CleanStale() (int, error) {
	dirs, err := r.siblings()
	if err != nil {
		return 0, err
	}

	var (
		n    int
		errs []error
	)
	for _, path := range dirs {
		if lock, err := ReadLock(path); err == nil && lock.Alive() {
			return n, fmt.Errorf("%w: pid %d in %s", ErrNodeRunning, lock.PID, path)
		}
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
