// Package runlock serialises ttfr runs on one host through an exclusive
// file lock, so two harnesses never start servers against the same port at
// the same time.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const retryDelay = 50 * time.Millisecond

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("another run holds the lock")

// Lock is a held run lock.
type Lock struct {
	f *flock.Flock
}

// Acquire takes the lock at path. With a zero timeout it fails at once when
// the lock is busy; otherwise it retries until the timeout elapses.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	if path == "" {
		return nil, errors.New("lock path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock directory: %w", err)
		}
	}

	f := flock.New(path)
	var (
		ok  bool
		err error
	)
	if timeout <= 0 {
		ok, err = f.TryLock()
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ok, err = f.TryLockContext(waitCtx, retryDelay)
		if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			ok, err = false, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &Lock{f: f}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.f.Path()
}

// Release unlocks. It is safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	if err := l.f.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", l.f.Path(), err)
	}
	return nil
}
