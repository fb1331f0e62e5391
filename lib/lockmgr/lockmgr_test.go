package lockmgr

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) ILockManager {
	return NewLockManager(filepath.Join(t.TempDir(), "lock.log"))
}

func TestAcquireCreatesFile(t *testing.T) {
	mgr := newTestManager(t)

	l, err := mgr.Acquire(Shared)
	require.NoError(t, err)
	defer l.Release()

	_, err = os.Stat(mgr.Path())
	assert.NoError(t, err)
	assert.Equal(t, Shared, l.Mode())
}

func TestSharedLocksCoexist(t *testing.T) {
	mgr := newTestManager(t)

	first, err := mgr.Acquire(Shared)
	require.NoError(t, err)
	defer first.Release()

	second, err := mgr.TryAcquire(Shared)
	require.NoError(t, err)
	defer second.Release()
}

func TestExclusiveExcludesAll(t *testing.T) {
	mgr := newTestManager(t)

	excl, err := mgr.Acquire(Exclusive)
	require.NoError(t, err)

	_, err = mgr.TryAcquire(Shared)
	assert.ErrorIs(t, err, ErrWouldBlock)

	_, err = mgr.TryAcquire(Exclusive)
	assert.ErrorIs(t, err, ErrWouldBlock)

	require.NoError(t, excl.Release())

	again, err := mgr.TryAcquire(Exclusive)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestSharedBlocksExclusive(t *testing.T) {
	mgr := newTestManager(t)

	shared, err := mgr.Acquire(Shared)
	require.NoError(t, err)

	_, err = mgr.TryAcquire(Exclusive)
	assert.ErrorIs(t, err, ErrWouldBlock)

	require.NoError(t, shared.Release())
}

func TestAcquireWaitsForRelease(t *testing.T) {
	mgr := newTestManager(t)

	excl, err := mgr.Acquire(Exclusive)
	require.NoError(t, err)

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		l, err := mgr.Acquire(Exclusive)
		if err != nil {
			return
		}
		acquired.Store(true)
		_ = l.Release()
	}()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, acquired.Load(), "second exclusive lock must wait for the first to be released")

	require.NoError(t, excl.Release())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waiting acquirer never obtained the lock")
	}
	assert.True(t, acquired.Load())
}

func TestReleaseIsIdempotent(t *testing.T) {
	mgr := newTestManager(t)

	l, err := mgr.Acquire(Exclusive)
	require.NoError(t, err)

	require.NoError(t, l.Release())
	require.NoError(t, l.Release())

	var nilLock *Lock
	assert.NoError(t, nilLock.Release())
}

func TestAcquireFailsForMissingDirectory(t *testing.T) {
	mgr := NewLockManager(filepath.Join(t.TempDir(), "missing", "lock.log"))

	_, err := mgr.Acquire(Shared)
	assert.Error(t, err)
}
