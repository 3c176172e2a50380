package run_manager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/ini.v1"
)

const LockFileName = "run.lock"

var ErrNodeRunning = errors.New("a node with the same identifier is running")

// LockInfo is the content of run.lock.
type LockInfo struct {
	PID     int
	Version string
	NodeID  string
	Started time.Time
}

// Alive reports whether the process that wrote the lock still exists.
func (l *LockInfo) Alive() bool {
	if l.PID <= 0 || l.PID == os.Getpid() {
		return false
	}
	err := syscall.Kill(l.PID, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// WriteLock stores run.lock in the runtime directory.
func (r *RunManager) WriteLock(info LockInfo) (string, error) {
	lockFile := ini.Empty()
	secRun, err := lockFile.NewSection("runtime")
	if err != nil {
		return "", err
	}
	secRun.Key("pid").SetValue(fmt.Sprintf("%d", info.PID))
	secRun.Key("version").SetValue(info.Version)
	secRun.Key("uuid").SetValue(info.NodeID)
	secRun.Key("timestamp").SetValue(info.Started.Format("2006-01-02/15:04:05 MST"))
	secRun.Key("timestamp-unix").SetValue(fmt.Sprintf("%d", info.Started.Unix()))

	path := filepath.Join(r.dir, LockFileName)
	if err := lockFile.SaveTo(path); err != nil {
		return "", err
	}
	return path, nil
}

func ReadLock(dir string) (*LockInfo, error) {
	f, err := ini.Load(filepath.Join(dir, LockFileName))
	if err != nil {
		return nil, err
	}
	sec := f.Section("runtime")
	pid, err := sec.Key("pid").Int()
	if err != nil {
		return nil, fmt.Errorf("run.lock pid: %w", err)
	}
	return &LockInfo{
		PID:     pid,
		Version: sec.Key("version").String(),
		NodeID:  sec.Key("uuid").String(),
		Started: time.Unix(sec.Key("timestamp-unix").MustInt64(0), 0),
	}, nil
}
