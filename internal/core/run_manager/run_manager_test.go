package run_manager

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_Clean(t *testing.T) {
	base := t.TempDir()
	s := NewScope(base)

	dir, err := s.MkdirTemp("extract-*")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1_product.jpg"), []byte("x"), 0644))

	f, err := s.CreateTemp("archive-*.zip")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	outside := filepath.Join(base, "fetched.png")
	require.NoError(t, os.WriteFile(outside, []byte("y"), 0644))
	s.Track(outside, filepath.Join(base, "never-created"))

	assert.Len(t, s.Paths(), 4)
	require.NoError(t, s.Clean())

	for _, p := range []string{dir, f.Name(), outside} {
		_, err := os.Stat(p)
		assert.ErrorIs(t, err, os.ErrNotExist, p)
	}
	assert.Empty(t, s.Paths())
	assert.NoError(t, s.Clean())
}

func TestRunManager(t *testing.T) {
	rm, err := Create("testnode")
	require.NoError(t, err)
	t.Cleanup(func() { rm.Clean() })

	info, err := os.Stat(rm.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	scope := rm.Scope()
	dir, err := scope.MkdirTemp("req-*")
	require.NoError(t, err)
	assert.Equal(t, rm.Dir(), filepath.Dir(dir))
	require.NoError(t, scope.Clean())

	require.NoError(t, rm.Clean())
	_, err = os.Stat(rm.Dir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunManager_Lock(t *testing.T) {
	rm, err := Create("locknode")
	require.NoError(t, err)
	t.Cleanup(func() { rm.Clean() })

	started := time.Unix(1700000000, 0)
	path, err := rm.WriteLock(LockInfo{PID: os.Getpid(), Version: "v1.0.0", NodeID: "locknode", Started: started})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(rm.Dir(), LockFileName), path)

	lock, err := ReadLock(rm.Dir())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), lock.PID)
	assert.Equal(t, "v1.0.0", lock.Version)
	assert.Equal(t, started, lock.Started)
	assert.False(t, lock.Alive())
}

func TestRunManager_CleanStale(t *testing.T) {
	stale, err := Create("stalenode")
	require.NoError(t, err)
	_, err = stale.WriteLock(LockInfo{PID: 1 << 22, NodeID: "stalenode", Started: time.Now()})
	require.NoError(t, err)

	other, err := Create("othernode")
	require.NoError(t, err)
	t.Cleanup(func() { other.Clean() })

	rm, err := Create("stalenode")
	require.NoError(t, err)
	t.Cleanup(func() { rm.Clean() })

	n, err := rm.CleanStale()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoDirExists(t, stale.Dir())
	assert.DirExists(t, other.Dir())
	assert.DirExists(t, rm.Dir())
}
