// Package reconciler runs the one-shot startup pass that rehabilitates
// locks left running by a process that no longer exists: a cluster whose
// lock is running but whose current job never reached a terminal status
// is not actually in progress anymore, since nothing survives a restart
// to finish it.
package reconciler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/ridge/pkg/lock"
	"github.com/cuemby/ridge/pkg/log"
	"github.com/cuemby/ridge/pkg/metrics"
	"github.com/cuemby/ridge/pkg/storage"
	"github.com/cuemby/ridge/pkg/types"
)

const orphanedReason = "orphaned by restart"

// Reconciler rehabilitates orphaned cluster locks at process startup.
type Reconciler struct {
	store  storage.Store
	locks  *lock.Manager
	logger zerolog.Logger
}

// New returns a Reconciler backed by store and locks.
func New(store storage.Store, locks *lock.Manager) *Reconciler {
	return &Reconciler{store: store, locks: locks, logger: log.WithComponent("reconciler")}
}

// Run scans every cluster once, failing and releasing the lock of any
// whose current job is not actually running. It is meant to be called
// exactly once, before the server starts accepting requests: nothing in
// this process could have resumed a job that started before this Run call,
// so a running lock found here is always orphaned.
func (r *Reconciler) Run() error {
	clusters, err := r.store.ListClusters()
	if err != nil {
		return fmt.Errorf("failed to list clusters for startup reconciliation: %w", err)
	}

	for _, cluster := range clusters {
		if cluster.Lock.Status != types.LockRunning {
			continue
		}
		r.reconcileOne(cluster)
	}
	return nil
}

func (r *Reconciler) reconcileOne(cluster *types.Cluster) {
	jobID := cluster.Lock.CurrentJobID

	if jobID != "" {
		job, err := r.store.GetJob(jobID)
		switch {
		case err != nil:
			r.logger.Error().Err(err).Str("cluster_id", cluster.ID).Str("job_id", jobID).
				Msg("failed to load job referenced by a running lock")
		case !job.Status.IsTerminal():
			now := time.Now()
			job.Status = types.JobStatusFailed
			job.FailureReason = orphanedReason
			job.CompletedAt = &now
			if err := r.store.UpdateJob(job); err != nil {
				r.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark orphaned job as failed")
			}
		}
	}

	if err := r.locks.Release(cluster.ID); err != nil {
		r.logger.Error().Err(err).Str("cluster_id", cluster.ID).Msg("failed to release orphaned lock")
		return
	}

	metrics.ReconciledLocksTotal.Inc()
	r.logger.Warn().Str("cluster_id", cluster.ID).Str("job_id", jobID).Msg("released orphaned lock at startup")
}
