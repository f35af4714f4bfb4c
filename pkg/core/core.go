// Package core is the Job API Surface: the service façade
// that ties the topology store, lock manager, guardrails, stage
// orchestrator, and event bus registry together behind the operations the
// transport layer (pkg/api, cmd/ridgectl) calls.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/ridge/pkg/apierr"
	"github.com/cuemby/ridge/pkg/collaborators"
	"github.com/cuemby/ridge/pkg/events"
	"github.com/cuemby/ridge/pkg/guardrails"
	"github.com/cuemby/ridge/pkg/lock"
	"github.com/cuemby/ridge/pkg/log"
	"github.com/cuemby/ridge/pkg/orchestrator"
	"github.com/cuemby/ridge/pkg/storage"
	"github.com/cuemby/ridge/pkg/types"
)

// Service is the Job API Surface.
type Service struct {
	store    storage.Store
	locks    *lock.Manager
	events   *events.Registry
	orch     *orchestrator.Orchestrator
	analyzer collaborators.Analyzer

	// cancelFuncs lets Cancel stop a running job's context without the
	// orchestrator itself needing to know about job bookkeeping.
	cancelFuncs map[string]context.CancelFunc
}

// New returns a Service wired to its collaborators.
func New(store storage.Store, locks *lock.Manager, registry *events.Registry, orch *orchestrator.Orchestrator, analyzer collaborators.Analyzer) *Service {
	return &Service{
		store:       store,
		locks:       locks,
		events:      registry,
		orch:        orch,
		analyzer:    analyzer,
		cancelFuncs: make(map[string]context.CancelFunc),
	}
}

// CreateCluster registers a new cluster record, fresh or already-running
// depending on kind. The topology store is the only thing touched — no
// lock is taken and no job is created.
func (s *Service) CreateCluster(c *types.Cluster) (*types.Cluster, error) {
	if c.Name == "" {
		return nil, apierr.Validation("cluster name is required")
	}
	c.ID = uuid.New().String()
	c.Lock = types.LockRecord{Status: types.LockIdle}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	if err := s.store.CreateCluster(c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetCluster reads one cluster by ID.
func (s *Service) GetCluster(id string) (*types.Cluster, error) {
	return s.store.GetCluster(id)
}

// ListClusters reads every cluster.
func (s *Service) ListClusters() ([]*types.Cluster, error) {
	return s.store.ListClusters()
}

// DeleteCluster removes a cluster and its nodes/jobs. Refuses while a job
// is running against it.
func (s *Service) DeleteCluster(id string) error {
	cluster, err := s.store.GetCluster(id)
	if err != nil {
		return err
	}
	if cluster.Lock.Status == types.LockRunning {
		return apierr.Conflict("cluster %s has a job running and cannot be deleted", id)
	}
	return s.store.DeleteCluster(id)
}

// GetJob reads one job by ID.
func (s *Service) GetJob(id string) (*types.Job, error) {
	return s.store.GetJob(id)
}

// ListJobs reads every job, optionally filtered to one cluster.
func (s *Service) ListJobs(clusterID string) ([]*types.Job, error) {
	if clusterID != "" {
		return s.store.ListJobsByCluster(clusterID)
	}
	clusters, err := s.store.ListClusters()
	if err != nil {
		return nil, err
	}
	var all []*types.Job
	for _, c := range clusters {
		jobs, err := s.store.ListJobsByCluster(c.ID)
		if err != nil {
			return nil, err
		}
		all = append(all, jobs...)
	}
	return all, nil
}

// Stream opens a subscription on job's event bus: the chunks published so
// far plus a channel of subsequent live chunks.
func (s *Service) Stream(jobID string) ([]types.OutputChunk, <-chan types.OutputChunk, func()) {
	bus := s.events.GetOrCreate(jobID)
	return bus.Subscribe()
}

// Cancel requests cooperative termination of a running job by cancelling
// its context. It returns a not-found error if the job is not currently
// running.
func (s *Service) Cancel(jobID string) error {
	cancel, ok := s.cancelFuncs[jobID]
	if !ok {
		return apierr.NotFound("no running job %s to cancel", jobID)
	}
	cancel()
	return nil
}

// Install creates an install job for a fresh cluster. G1 is not evaluated
// here: it guards scale-add, and a fresh cluster has no active initial
// master yet.
func (s *Service) Install(ctx context.Context, clusterID string, dial func(context.Context, string) error) (*types.Job, error) {
	cluster, err := s.store.GetCluster(clusterID)
	if err != nil {
		return nil, err
	}
	nodes, err := s.store.ListNodesByCluster(clusterID)
	if err != nil {
		return nil, err
	}

	job := &types.Job{
		ID:            uuid.New().String(),
		ClusterID:     clusterID,
		Kind:          types.JobKindInstall,
		Status:        types.JobStatusPending,
		CreatedAt:     time.Now(),
		TargetVersion: cluster.TargetVersion,
	}
	if err := s.store.CreateJob(job); err != nil {
		return nil, err
	}

	plan := orchestrator.Plan{
		Job:            job,
		Cluster:        cluster,
		AllNodes:       nodes,
		ServerEndpoint: cluster.APIEndpoint,
		UserFor:        func(n *types.Node) string { return "root" },
	}
	s.runAsync(job, plan)
	return job, nil
}

// Uninstall requires the caller to echo the cluster's name back as
// confirmation before it will tear the cluster down.
func (s *Service) Uninstall(ctx context.Context, clusterID, confirmationText string) (*types.Job, error) {
	cluster, err := s.store.GetCluster(clusterID)
	if err != nil {
		return nil, err
	}
	if confirmationText != cluster.Name {
		return nil, apierr.Validation("confirmation text %q does not match cluster name", confirmationText)
	}

	nodes, err := s.store.ListNodesByCluster(clusterID)
	if err != nil {
		return nil, err
	}

	job := &types.Job{
		ID:        uuid.New().String(),
		ClusterID: clusterID,
		Kind:      types.JobKindUninstall,
		Status:    types.JobStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateJob(job); err != nil {
		return nil, err
	}

	plan := orchestrator.Plan{
		Job:            job,
		Cluster:        cluster,
		AllNodes:       nodes,
		ExplicitNodes:  nodes,
		ServerEndpoint: cluster.APIEndpoint,
		UserFor:        func(n *types.Node) string { return "root" },
	}
	s.runAsync(job, plan)
	return job, nil
}

// AddNodes runs G4 then G1. When a request mixes control-plane and worker
// specs, only the control-plane job is created and run; the worker specs
// are left untouched and SplitRolesPending is set so the caller knows to
// resubmit them in a follow-up call once the control-plane job completes.
// The worker job is never auto-scheduled.
func (s *Service) AddNodes(ctx context.Context, clusterID string, specs []types.NewNodeSpec, dial func(context.Context, string) error) (*types.AddNodesResult, error) {
	cluster, err := s.store.GetCluster(clusterID)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ListNodesByCluster(clusterID)
	if err != nil {
		return nil, err
	}

	if rej := guardrails.G4NodeIdentity(existing, specs); rej != nil {
		return nil, rej.AsAPIError("G4_node_identity")
	}

	hasControlPlane, hasWorkers := guardrails.SplitRoles(specs)

	var masterSpecs, workerSpecs []types.NewNodeSpec
	for _, spec := range specs {
		if spec.Role.IsControlPlane() {
			masterSpecs = append(masterSpecs, spec)
		} else {
			workerSpecs = append(workerSpecs, spec)
		}
	}

	splitPending := hasControlPlane && hasWorkers

	kind := types.JobKindScaleAddWorkers
	runSpecs := workerSpecs
	if hasControlPlane {
		kind = types.JobKindScaleAddMasters
		runSpecs = masterSpecs
	}

	job, err := s.addNodesJob(ctx, cluster, existing, runSpecs, kind, dial)
	if err != nil {
		return nil, err
	}
	return &types.AddNodesResult{Job: job, SplitRolesPending: splitPending}, nil
}

func (s *Service) addNodesJob(ctx context.Context, cluster *types.Cluster, existing []*types.Node, specs []types.NewNodeSpec, kind types.JobKind, dial func(context.Context, string) error) (*types.Job, error) {
	if rej := guardrails.G1BootstrapPrerequisite(ctx, cluster, existing, dial); rej != nil {
		return nil, rej.AsAPIError("G1_bootstrap_prerequisite")
	}

	now := time.Now()
	var newNodes []*types.Node
	for _, spec := range specs {
		n := &types.Node{
			ID:              uuid.New().String(),
			ClusterID:       cluster.ID,
			Hostname:        spec.Hostname,
			InternalAddress: spec.InternalAddress,
			ExternalAddress: spec.ExternalAddress,
			UseExternal:     spec.UseExternal,
			Role:            spec.Role,
			Status:          types.NodeStatusPending,
			Vars:            spec.Vars,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.store.CreateNode(n); err != nil {
			return nil, err
		}
		newNodes = append(newNodes, n)
	}

	job := &types.Job{
		ID:        uuid.New().String(),
		ClusterID: cluster.ID,
		Kind:      kind,
		Status:    types.JobStatusPending,
		CreatedAt: now,
	}
	if err := s.store.CreateJob(job); err != nil {
		return nil, err
	}

	credentialBySpec := make(map[string]string, len(specs))
	for _, spec := range specs {
		credentialBySpec[spec.Hostname] = spec.CredentialID
	}

	plan := orchestrator.Plan{
		Job:            job,
		Cluster:        cluster,
		AllNodes:       append(existing, newNodes...),
		ExplicitNodes:  newNodes,
		ServerEndpoint: cluster.APIEndpoint,
		CredentialFor:  func(n *types.Node) string { return credentialBySpec[n.Hostname] },
		UserFor:        func(n *types.Node) string { return "root" },
	}
	s.runAsync(job, plan)
	return job, nil
}

// RemoveNodes runs G2 before creating the removal job. confirm must be true
// when the batch includes a control-plane node. An even remaining
// control-plane count after removal is not a rejection: it is recorded on
// the job's Warning field and the removal proceeds.
func (s *Service) RemoveNodes(clusterID string, refs []types.NodeRef, confirm bool) (*types.Job, error) {
	cluster, err := s.store.GetCluster(clusterID)
	if err != nil {
		return nil, err
	}
	allNodes, err := s.store.ListNodesByCluster(clusterID)
	if err != nil {
		return nil, err
	}

	toRemove, err := resolveRefs(allNodes, refs)
	if err != nil {
		return nil, err
	}

	var activeControlPlane []*types.Node
	for _, n := range allNodes {
		if n.Role.IsControlPlane() && n.Status.IsActive() {
			activeControlPlane = append(activeControlPlane, n)
		}
	}

	var warning string
	if rej := guardrails.G2SafeRemoval(activeControlPlane, toRemove, confirm); rej != nil {
		if rej.Reason != "" {
			return nil, rej.AsAPIError("G2_safe_removal")
		}
		warning = rej.Warning
	}

	job := &types.Job{
		ID:        uuid.New().String(),
		ClusterID: clusterID,
		Kind:      types.JobKindScaleRemove,
		Status:    types.JobStatusPending,
		CreatedAt: time.Now(),
		Warning:   warning,
	}
	if err := s.store.CreateJob(job); err != nil {
		return nil, err
	}

	plan := orchestrator.Plan{
		Job:            job,
		Cluster:        cluster,
		AllNodes:       allNodes,
		ExplicitNodes:  toRemove,
		ServerEndpoint: cluster.APIEndpoint,
		UserFor:        func(n *types.Node) string { return "root" },
	}
	s.runAsync(job, plan)
	return job, nil
}

// Check runs a preflight or upgrade-check job. Checks never take the
// cluster lock and never mutate node status — they are read-only
// diagnostics.
func (s *Service) Check(ctx context.Context, clusterID string, kind types.JobKind, targetVersion string) (*types.Job, error) {
	cluster, err := s.store.GetCluster(clusterID)
	if err != nil {
		return nil, err
	}
	nodes, err := s.store.ListNodesByCluster(clusterID)
	if err != nil {
		return nil, err
	}

	job := &types.Job{
		ID:            uuid.New().String(),
		ClusterID:     clusterID,
		Kind:          kind,
		Status:        types.JobStatusRunning,
		CreatedAt:     time.Now(),
		TargetVersion: targetVersion,
	}
	now := time.Now()
	job.StartedAt = &now
	if err := s.store.CreateJob(job); err != nil {
		return nil, err
	}

	plan := orchestrator.Plan{
		Job:            job,
		Cluster:        cluster,
		AllNodes:       nodes,
		ExplicitNodes:  nodes,
		ServerEndpoint: cluster.APIEndpoint,
		UserFor:        func(n *types.Node) string { return "root" },
	}

	go s.runCheck(ctx, job, plan)
	return job, nil
}

func (s *Service) runCheck(ctx context.Context, job *types.Job, plan orchestrator.Plan) {
	err := s.orch.Execute(ctx, plan)
	s.finishCheck(job, plan, err)
}

func (s *Service) finishCheck(job *types.Job, plan orchestrator.Plan, runErr error) {
	now := time.Now()
	job.CompletedAt = &now

	// The runner appended output to the stored record, not to job.
	if stored, err := s.store.GetJob(job.ID); err == nil {
		job.Output = stored.Output
	}

	bus := s.events.GetOrCreate(job.ID)
	defer bus.Close()

	if runErr != nil {
		job.Status = types.JobStatusFailed
		job.FailureReason = runErr.Error()
		_ = s.store.UpdateJob(job)
		return
	}

	job.Status = types.JobStatusSuccess
	job.Readiness = &types.ReadinessResult{Verdict: types.VerdictGo}

	if s.analyzer != nil {
		var combined string
		for _, chunk := range job.Output {
			combined += chunk.Text + "\n"
		}
		summary, err := s.analyzer.Summarize(context.Background(), combined, job.TargetVersion)
		if err != nil {
			log.Errorf(fmt.Sprintf("analyzer summarize failed for job %s", job.ID), err)
		} else {
			job.AnalyzerSummary = summary
			if summary.Verdict != "" {
				job.Readiness.Verdict = summary.Verdict
			}
			job.Readiness.Blockers = summary.Blockers
			job.Readiness.Risks = summary.Risks
			job.Readiness.ActionPlan = summary.ActionPlan
		}
	}

	_ = s.store.UpdateJob(job)
}

// runAsync acquires the cluster lock, runs the orchestrator in a
// background goroutine, and releases the lock and finalizes the job on
// completion, cancellation, or panic.
func (s *Service) runAsync(job *types.Job, plan orchestrator.Plan) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFuncs[job.ID] = cancel

	go func() {
		defer cancel()
		defer delete(s.cancelFuncs, job.ID)

		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("job panicked: %v", r)
				}
			}()
			return s.locks.WithLock(plan.Cluster.ID, job.ID, string(job.Kind), func() error {
				now := time.Now()
				job.Status = types.JobStatusRunning
				job.StartedAt = &now
				_ = s.store.UpdateJob(job)
				return s.orch.Execute(ctx, plan)
			})
		}()

		s.finishJob(job, err, ctx)
	}()
}

func (s *Service) finishJob(job *types.Job, runErr error, ctx context.Context) {
	now := time.Now()
	job.CompletedAt = &now

	// The runner appended output to the stored record, not to job.
	if stored, err := s.store.GetJob(job.ID); err == nil {
		job.Output = stored.Output
	}

	bus := s.events.GetOrCreate(job.ID)
	defer bus.Close()

	switch {
	case runErr == nil:
		job.Status = types.JobStatusSuccess
	case ctx.Err() != nil:
		job.Status = types.JobStatusCancelled
		job.FailureReason = runErr.Error()
	default:
		job.Status = types.JobStatusFailed
		job.FailureReason = runErr.Error()
	}

	if err := s.store.UpdateJob(job); err != nil {
		log.Errorf(fmt.Sprintf("failed to persist terminal status for job %s", job.ID), err)
	}
}

func resolveRefs(nodes []*types.Node, refs []types.NodeRef) ([]*types.Node, error) {
	byID := make(map[string]*types.Node, len(nodes))
	byHostname := make(map[string]*types.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		byHostname[n.Hostname] = n
	}

	var resolved []*types.Node
	for _, ref := range refs {
		if ref.ID != "" {
			n, ok := byID[ref.ID]
			if !ok {
				return nil, apierr.NotFound("no node with id %s", ref.ID)
			}
			resolved = append(resolved, n)
			continue
		}
		n, ok := byHostname[ref.Hostname]
		if !ok {
			return nil, apierr.NotFound("no node with hostname %s", ref.Hostname)
		}
		resolved = append(resolved, n)
	}
	return resolved, nil
}
