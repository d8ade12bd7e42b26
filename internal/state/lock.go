package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alexflint/go-filemutex"
)

// ErrLocked is returned when another process holds the state lock.
var ErrLocked = errors.New("state is locked by another run")

// Lock takes the exclusive state lock without waiting. The returned function
// releases it.
func (s *Store) Lock() (func() error, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	m, err := filemutex.New(filepath.Join(s.dir, lockFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open state lock: %w", err)
	}

	if err := m.TryLock(); err != nil {
		_ = m.Close()
		if errors.Is(err, filemutex.AlreadyLocked) {
			return nil, fmt.Errorf("%w (%s)", ErrLocked, s.dir)
		}
		return nil, fmt.Errorf("failed to acquire state lock: %w", err)
	}

	return func() error {
		if err := m.Unlock(); err != nil {
			_ = m.Close()
			return fmt.Errorf("failed to release state lock: %w", err)
		}
		return m.Close()
	}, nil
}
