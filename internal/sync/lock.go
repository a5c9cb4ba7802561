package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bobg/flock"
)

// LockFileName is the advisory lock taken next to the canonical root while
// a push or pull modifies files.
const LockFileName = ".claudesync.lock"

const (
	// lockDuration is how long a lock file counts as held without a
	// refresh. A lock left behind by a killed process expires after it.
	lockDuration = 30 * time.Second

	lockRetryMin = 50 * time.Millisecond
	lockRetryMax = time.Second
)

// newLocker returns a Locker whose lock file is the path it is given.
func newLocker() flock.Locker {
	return flock.Locker{
		Lockfile: func(path string) string { return path },
		LockDur:  lockDuration,
	}
}

// lockPath returns the lock file shared by every run on the canonical root.
func (e *Engine) lockPath() string {
	return filepath.Join(filepath.Dir(e.cfg.Paths.CanonicalRoot), LockFileName)
}

// lock waits until no other claudesync process holds the lock, then holds
// it until the returned release func is called. The lock file is refreshed
// in the background so long runs stay exclusive. Dry runs do not lock.
func (e *Engine) lock(ctx context.Context) (func(), error) {
	if e.dryRun {
		return func() {}, nil
	}

	path := e.lockPath()
	delay := lockRetryMin
	for {
		err := e.locker.Lock(path)
		if err == nil {
			break
		}
		if !errors.Is(err, flock.ErrLocked) {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
		}
		if delay == lockRetryMin {
			e.logger.Info("waiting for another claudesync run to finish", "lock", path)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire lock %s: %w", path, ctx.Err())
		case <-time.After(delay):
		}
		delay = min(delay*2, lockRetryMax)
	}
	e.logger.Debug("acquired lock", "path", path)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(e.locker.LockDur / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := e.locker.Refresh(path); err != nil {
					e.logger.Warn("failed to refresh lock", "path", path, "error", err)
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
		if err := e.locker.Unlock(path); err != nil {
			e.logger.Warn("failed to release lock", "path", path, "error", err)
		}
	}, nil
}
