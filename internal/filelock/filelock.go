// Package filelock provides the cross-process run lock and atomic file writes.
//
// A conductor run owns its data directory for its whole lifetime: the service
// it starts writes the persisted state there, so two runs sharing a data
// directory would race on it. The run lock makes the second run fail fast.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked indicates the lock is held by another process.
var ErrLocked = errors.New("lock is held by another process")

// RunLockName is the lock file created inside the data directory.
const RunLockName = ".conductor.lock"

// FileLock wraps a flock file lock for coordinating access to files.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// NewFileLock creates a new file lock for the given path.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// Path returns the lock file path.
func (fl *FileLock) Path() string {
	return fl.path
}

// TryLock attempts to acquire an exclusive lock without blocking.
// Returns true if the lock was acquired, false if another process holds it.
func (fl *FileLock) TryLock() (bool, error) {
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", fl.path, err)
	}
	return acquired, nil
}

// LockWithin retries TryLock until it succeeds or wait elapses.
// Returns ErrLocked when the wait elapses with the lock still held elsewhere.
func (fl *FileLock) LockWithin(ctx context.Context, wait, retryDelay time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	acquired, err := fl.flock.TryLockContext(ctx, retryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to acquire lock on %s: %w", fl.path, err)
	}
	if !acquired {
		return fmt.Errorf("%s: %w", fl.path, ErrLocked)
	}
	return nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fl.path, err)
	}
	return nil
}

// AcquireRunLock takes the run lock for dataDir without waiting.
// The caller must Unlock it when the run, including teardown, is over.
func AcquireRunLock(dataDir string) (*FileLock, error) {
	lock := NewFileLock(filepath.Join(dataDir, RunLockName))

	acquired, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("%s: %w", lock.path, ErrLocked)
	}
	return lock, nil
}

// WaitRunLock takes the run lock for dataDir, waiting up to wait for another
// run to release it. A zero wait behaves like AcquireRunLock.
func WaitRunLock(ctx context.Context, dataDir string, wait time.Duration) (*FileLock, error) {
	if wait <= 0 {
		return AcquireRunLock(dataDir)
	}

	lock := NewFileLock(filepath.Join(dataDir, RunLockName))
	if err := lock.LockWithin(ctx, wait, 200*time.Millisecond); err != nil {
		return nil, err
	}
	return lock, nil
}

// AtomicWrite writes data to a file atomically using a temp file and rename strategy.
// Readers never see a partial file; on failure the original file is unchanged.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Same directory keeps the rename on one filesystem
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	tempFile = nil
	return nil
}
