package runlock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "ttfr.lock")

	lock, err := Acquire(context.Background(), path, 0)
	require.NoError(t, err)
	assert.Equal(t, path, lock.Path())
	require.NoError(t, lock.Release())

	again, err := Acquire(context.Background(), path, 0)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquireBusyFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttfr.lock")
	held, err := Acquire(context.Background(), path, 0)
	require.NoError(t, err)
	defer held.Release()

	_, err = Acquire(context.Background(), path, 0)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestAcquireWaitsForRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttfr.lock")
	held, err := Acquire(context.Background(), path, 0)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = held.Release()
	}()

	lock, err := Acquire(context.Background(), path, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestAcquireTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttfr.lock")
	held, err := Acquire(context.Background(), path, 0)
	require.NoError(t, err)
	defer held.Release()

	start := time.Now()
	_, err = Acquire(context.Background(), path, 150*time.Millisecond)
	assert.ErrorIs(t, err, ErrLocked)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestAcquireCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttfr.lock")
	held, err := Acquire(context.Background(), path, 0)
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Acquire(ctx, path, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquireEmptyPath(t *testing.T) {
	_, err := Acquire(context.Background(), "", 0)
	assert.Error(t, err)
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
