package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffix = ".lock"
	lockRetryDelay = 100 * time.Millisecond
)

// DBLock serializes alert writers across trackwatch processes. It is held
// around a recorded run or notification, never for a whole server lifetime.
// Readers open the database without it.
type DBLock struct {
	lock *flock.Flock
	path string
}

func NewDBLock(dbPath string) (*DBLock, error) {
	absPath, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute db path: %w", err)
	}
	return &DBLock{lock: flock.New(absPath + lockFileSuffix), path: absPath + lockFileSuffix}, nil
}

// Lock waits for the lock without a deadline.
func (l *DBLock) Lock() error {
	return l.LockContext(context.Background())
}

// LockContext waits for the lock until ctx is done.
func (l *DBLock) LockContext(ctx context.Context) error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	if locked {
		return nil
	}

	Log.Infof("Another trackwatch process is writing to the database, waiting...")
	locked, err = l.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock on %s", l.path)
	}
	return nil
}

func (l *DBLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

func (l *DBLock) Path() string { return l.path }

// GetAbsDBPath resolves the database path. An empty path means the default
// location under the user's config directory.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "trackwatch", "trackwatch.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
