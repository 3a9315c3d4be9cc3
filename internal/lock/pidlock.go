package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// FileLock is an exclusive flock(2) held on an open file descriptor.
type FileLock struct {
	path string
	f    *os.File
}

// Lock blocks until an exclusive lock on lockPath is held. The file is
// created if missing and left in place on release.
func Lock(lockPath string) (*FileLock, error) {
	return acquire(lockPath, syscall.LOCK_EX)
}

// TryLock is Lock without waiting. It fails if another descriptor holds the lock.
func TryLock(lockPath string) (*FileLock, error) {
	return acquire(lockPath, syscall.LOCK_EX|syscall.LOCK_NB)
}

func acquire(lockPath string, how int) (*FileLock, error) {
	if lockPath == "" {
		return nil, fmt.Errorf("lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	for {
		err = syscall.Flock(int(f.Fd()), how)
		if err != syscall.EINTR {
			break
		}
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	return &FileLock{path: lockPath, f: f}, nil
}

// Release unlocks and closes the file. Safe to call more than once.
func (l *FileLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}

// PIDLock is a single-instance lock implemented via a PID file + flock(2).
// Keep the lock alive by keeping the file descriptor open.
type PIDLock struct {
	*FileLock
}

// AcquirePIDLock acquires an exclusive non-blocking lock at lockPath, writes the
// current PID into the file, and returns a handle that must be released.
func AcquirePIDLock(lockPath string) (*PIDLock, error) {
	fl, err := TryLock(lockPath)
	if err != nil {
		return nil, err
	}
	f := fl.f

	if err := f.Truncate(0); err != nil {
		_ = fl.Release()
		return nil, fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = fl.Release()
		return nil, fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		_ = fl.Release()
		return nil, fmt.Errorf("write pid: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = fl.Release()
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &PIDLock{FileLock: fl}, nil
}
