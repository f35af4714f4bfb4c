// Package lock is the cluster lock manager: the single serialization point
// for mutating operations against a cluster.
package lock

import (
	"fmt"

	"github.com/cuemby/ridge/pkg/apierr"
	"github.com/cuemby/ridge/pkg/storage"
)

// Manager acquires and releases the per-cluster exclusive lock. Acquisition
// is delegated to the store's single-transaction AcquireLock so that two
// concurrent callers can never both observe the lock as idle.
type Manager struct {
	store storage.Store
}

// New returns a lock Manager backed by store.
func New(store storage.Store) *Manager {
	return &Manager{store: store}
}

// Acquire attempts to take the lock for clusterID on behalf of jobID,
// naming operation for the conflict message a rejected caller sees.
func (m *Manager) Acquire(clusterID, jobID, operation string) error {
	if err := m.store.AcquireLock(clusterID, jobID, operation); err != nil {
		if e, ok := apierr.As(err); ok && e.Kind == apierr.KindConflict {
			return err
		}
		return fmt.Errorf("failed to acquire lock for cluster %s: %w", clusterID, err)
	}
	return nil
}

// Release returns the lock for clusterID to idle. It is idempotent and
// safe to call even if acquisition never succeeded.
func (m *Manager) Release(clusterID string) error {
	if err := m.store.ReleaseLock(clusterID); err != nil {
		return fmt.Errorf("failed to release lock for cluster %s: %w", clusterID, err)
	}
	return nil
}

// WithLock acquires the lock for clusterID, runs fn, and releases the lock
// on every exit path — including a panic inside fn, which is recovered and
// rethrown after release.
func (m *Manager) WithLock(clusterID, jobID, operation string, fn func() error) error {
	if err := m.Acquire(clusterID, jobID, operation); err != nil {
		return err
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := m.Release(clusterID); err != nil {
			// Release failure here means the store is unreachable; surfacing it
			// would mask the original error or panic, so it is discarded and
			// the lock is left for the startup reconciler.
			_ = err
		}
	}

	defer func() {
		if r := recover(); r != nil {
			release()
			panic(r)
		}
	}()

	err := fn()
	release()
	return err
}
