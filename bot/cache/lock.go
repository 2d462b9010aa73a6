package cache

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked means another process already serves the same cache database.
var ErrLocked = errors.New("cache: database is locked by another process")

// LockDatabase takes an exclusive advisory lock next to the database file.
// Two bots sharing one cache would each load a private copy and diverge.
func LockDatabase(dbPath string) (*flock.Flock, error) {
	lock := flock.New(dbPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock cache database: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dbPath)
	}
	return lock, nil
}
