package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RepoLock guards a repository directory against concurrent processes.
// The engine index tolerates exactly one writer; taking the lock before
// opening anything turns a corrupting race into a clean error.
type RepoLock struct {
	flock *flock.Flock
}

// NewRepoLock prepares a lock on <dir>/.contentdex.lock.
func NewRepoLock(dir string) *RepoLock {
	return &RepoLock{flock: flock.New(filepath.Join(dir, ".contentdex.lock"))}
}

// TryLock attempts to take the lock without blocking. It returns false
// when another process holds the repository.
func (l *RepoLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire repo lock: %w", err)
	}
	return ok, nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *RepoLock) Unlock() error {
	return l.flock.Unlock()
}
