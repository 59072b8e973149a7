package workspace

import (
	"os"
	"path/filepath"
	"syscall"

	apperrors "github.com/hatloop/hatloop/pkg/errors"
)

// LockFileName is the conventional advisory lock file inside a
// workspace's app directory, e.g. "<workspace>/.hatloop/loop.lock".
const LockFileName = "loop.lock"

// LockState is the result of inspecting a LoopLock without holding it.
type LockState string

const (
	LockActive   LockState = "active"   // lock file exists and is held by a live process
	LockInactive LockState = "inactive" // no lock file at all
	LockStale    LockState = "stale"    // lock file exists but flock succeeds, i.e. no live holder
)

// LoopLock guards one workspace for the duration of a loop run via an
// advisory flock. Acquire blocks; this package never polls.
type LoopLock struct {
	path string
	file *os.File
}

// Path returns the lock file path for an app-directory under workspace.
func Path(appDir string) string {
	return filepath.Join(appDir, LockFileName)
}

// Inspect reports the current state of the lock at path without
// acquiring it, per the same flock-probe technique the holder itself
// uses to take the lock.
func Inspect(path string) (LockState, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return LockInactive, nil
		}
		return "", apperrors.NewIoError("stat loop lock", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return "", apperrors.NewIoError("open loop lock for inspection", err)
	}
	defer f.Close()

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		if err == syscall.EWOULDBLOCK {
			return LockActive, nil
		}
		return "", apperrors.NewIoError("flock loop lock for inspection", err)
	}
	// We now hold the lock ourselves; release it immediately, this was
	// only a probe. A lock nobody else holds is Stale, not Active.
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return LockStale, nil
}

// Acquire opens (creating if necessary) and exclusively flocks path,
// blocking until it is available. The returned LoopLock must be
// Released when the loop ends.
func Acquire(path string) (*LoopLock, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.NewIoError("create loop lock directory", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, apperrors.NewIoError("open loop lock", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, apperrors.NewLockContendedError("could not acquire loop lock: " + err.Error())
	}

	return &LoopLock{path: path, file: f}, nil
}

// Release unlocks and closes the lock file.
func (l *LoopLock) Release() error {
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		return apperrors.NewIoError("unlock loop lock", err)
	}
	return l.file.Close()
}
