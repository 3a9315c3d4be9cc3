package lock

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestAcquirePIDLockWritesPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "line-webhook.pid")
	l, err := AcquirePIDLock(lockPath)
	if err != nil {
		t.Fatalf("AcquirePIDLock: %v", err)
	}
	t.Cleanup(func() { _ = l.Release() })

	b, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		t.Fatalf("expected PID in lock file, got empty")
	}
}

func TestAcquirePIDLockExclusive(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "nested", "line-webhook.pid")
	first, err := AcquirePIDLock(lockPath)
	if err != nil {
		t.Fatalf("AcquirePIDLock: %v", err)
	}

	if _, err := AcquirePIDLock(lockPath); err == nil {
		t.Fatalf("second AcquirePIDLock should fail while the first is held")
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("second Release should be a no-op, got %v", err)
	}

	again, err := AcquirePIDLock(lockPath)
	if err != nil {
		t.Fatalf("AcquirePIDLock after release: %v", err)
	}
	_ = again.Release()
}

func TestLockBlocksUntilReleased(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "messages.json.lock")
	held, err := Lock(lockPath)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		l, err := Lock(lockPath)
		if err != nil {
			t.Errorf("Lock (waiter): %v", err)
			return
		}
		acquired.Store(true)
		_ = l.Release()
	}()

	time.Sleep(50 * time.Millisecond)
	if acquired.Load() {
		t.Fatalf("waiter acquired the lock while it was held")
	}

	_ = held.Release()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("waiter never acquired the lock")
	}
	if !acquired.Load() {
		t.Fatalf("waiter did not acquire the lock")
	}
}

func TestLockEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := Lock(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
