// Package orchestrator sequences a job's stages: it decides which stages a
// job kind requires, renders each stage's inventory, runs it, and updates
// node and cluster state from the outcome. Stages always run
// strictly in sequence — the orchestrator never starts stage N+1 before
// stage N has reached a terminal state.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/ridge/pkg/inventory"
	"github.com/cuemby/ridge/pkg/runner"
	"github.com/cuemby/ridge/pkg/storage"
	"github.com/cuemby/ridge/pkg/types"
)

// playbookFor maps an inventory stage to the playbook file that implements
// it. File names are looked up under the configured playbook directory.
var playbookFor = map[inventory.Stage]string{
	inventory.StageInitialMaster:  "install-initial-master.yml",
	inventory.StageJoiningMasters: "join-masters.yml",
	inventory.StageWorkers:        "join-workers.yml",
	inventory.StageScaleAdd:       "join-workers.yml",
	inventory.StageRemove:         "remove-node.yml",
	inventory.StageUninstall:      "uninstall.yml",
	inventory.StagePreflight:      "preflight-check.yml",
}

// Stages returns the ordered stage sequence a job kind requires, given
// which roles are present among the nodes the job touches. install skips a
// stage entirely when the cluster has no nodes of that role yet; the other
// kinds always run their one stage.
func Stages(kind types.JobKind, hasControlPlane, hasWorkers bool) []inventory.Stage {
	switch kind {
	case types.JobKindInstall:
		stages := []inventory.Stage{inventory.StageInitialMaster}
		if hasControlPlane {
			stages = append(stages, inventory.StageJoiningMasters)
		}
		if hasWorkers {
			stages = append(stages, inventory.StageWorkers)
		}
		return stages
	case types.JobKindScaleAddMasters:
		return []inventory.Stage{inventory.StageJoiningMasters}
	case types.JobKindScaleAddWorkers:
		return []inventory.Stage{inventory.StageWorkers}
	case types.JobKindScaleRemove:
		return []inventory.Stage{inventory.StageRemove}
	case types.JobKindUninstall:
		return []inventory.Stage{inventory.StageUninstall}
	case types.JobKindPreflightCheck, types.JobKindUpgradeCheck:
		return []inventory.Stage{inventory.StagePreflight}
	default:
		return nil
	}
}

// Orchestrator runs a job's stage sequence end to end.
type Orchestrator struct {
	store    storage.Store
	runner   *runner.Runner
	dataDir  string
}

// New returns an Orchestrator.
func New(store storage.Store, r *runner.Runner, dataDir string) *Orchestrator {
	return &Orchestrator{store: store, runner: r, dataDir: dataDir}
}

// Plan is everything Execute needs to run a job: the job and cluster
// records, the full current node fleet, any explicit node subset the
// operation targets (scale add/remove/preflight), the server join endpoint
// to render for non-initial stages, and the credential to mount for each
// stage's host access.
type Plan struct {
	Job            *types.Job
	Cluster        *types.Cluster
	AllNodes       []*types.Node
	ExplicitNodes  []*types.Node
	ServerEndpoint string
	PrivateKeyPath string
	CredentialFor  func(*types.Node) string // credential ID to mount for a stage's nodes
	UserFor        func(*types.Node) string
}

// Execute runs every stage of plan.Job's kind in sequence, updating node
// status and the cluster's current stage as it goes; a preflight stage
// updates neither. It returns the first stage error
// encountered; the caller (pkg/core) is responsible for translating that
// into the job's terminal failed/cancelled status and release of the
// cluster lock.
func (o *Orchestrator) Execute(ctx context.Context, plan Plan) error {
	hasControlPlane, hasWorkers := rolesPresent(plan.AllNodes, plan.ExplicitNodes, plan.Job.Kind)
	stages := Stages(plan.Job.Kind, hasControlPlane, hasWorkers)
	if len(stages) == 0 {
		return fmt.Errorf("no stages defined for job kind %s", plan.Job.Kind)
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Checks are read-only: they leave the cluster record and node
		// statuses as they are.
		readOnly := stage == inventory.StagePreflight

		if !readOnly {
			// Reload the cluster so the lock record held for this job is not
			// overwritten by the copy read before the lock was taken.
			current, err := o.store.GetCluster(plan.Cluster.ID)
			if err != nil {
				return fmt.Errorf("failed to record current stage: %w", err)
			}
			current.CurrentStage = string(stage)
			current.UpdatedAt = time.Now()
			if err := o.store.UpdateCluster(current); err != nil {
				return fmt.Errorf("failed to record current stage: %w", err)
			}
			plan.Cluster.CurrentStage = current.CurrentStage
		}

		doc, err := inventory.BuildGroups(stage, plan.AllNodes, plan.ExplicitNodes, plan.UserFor)
		if err != nil {
			return fmt.Errorf("stage %s: failed to build inventory: %w", stage, err)
		}

		stageNodes := nodesForStage(doc, plan.AllNodes, plan.ExplicitNodes)
		if !readOnly {
			o.markNodesStarting(stage, stageNodes)
		}

		vars := inventory.BuildExtraVars(plan.Cluster, o.dataDir, serverEndpointFor(stage, plan.ServerEndpoint), plan.PrivateKeyPath)

		credentialID := ""
		if plan.CredentialFor != nil && len(stageNodes) > 0 {
			credentialID = plan.CredentialFor(stageNodes[0])
		}

		exitCode, runErr := o.runner.Run(ctx, runner.StageInput{
			JobID:        plan.Job.ID,
			PlaybookName: playbookFor[stage],
			Doc:          doc,
			Vars:         vars,
			CredentialID: credentialID,
		})

		if runErr != nil || exitCode != 0 {
			if !readOnly {
				o.markNodesFailed(stageNodes, runErr, exitCode)
			}
			if runErr != nil {
				return fmt.Errorf("stage %s failed: %w", stage, runErr)
			}
			return fmt.Errorf("stage %s failed with exit code %d", stage, exitCode)
		}

		if !readOnly {
			o.markNodesDone(stage, stageNodes)
		}
	}

	return nil
}

func rolesPresent(allNodes, explicit []*types.Node, kind types.JobKind) (hasControlPlane, hasWorkers bool) {
	nodes := allNodes
	if kind != types.JobKindInstall {
		nodes = explicit
	}
	for _, n := range nodes {
		if n.Status == types.NodeStatusRemoved {
			continue
		}
		// The initial master has its own stage; only joining masters make
		// install run the joining-masters stage.
		if n.Role == types.NodeRoleInitialMaster {
			continue
		}
		if n.Role.IsControlPlane() {
			hasControlPlane = true
		} else {
			hasWorkers = true
		}
	}
	return hasControlPlane, hasWorkers
}

func nodesForStage(doc *inventory.Document, allNodes, explicit []*types.Node) []*types.Node {
	byHostname := make(map[string]*types.Node, len(allNodes)+len(explicit))
	for _, n := range allNodes {
		byHostname[n.Hostname] = n
	}
	for _, n := range explicit {
		byHostname[n.Hostname] = n
	}

	var nodes []*types.Node
	for _, h := range append(append([]inventory.HostEntry{}, doc.Servers...), doc.Agents...) {
		if n, ok := byHostname[h.Hostname]; ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func serverEndpointFor(stage inventory.Stage, endpoint string) string {
	if stage == inventory.StageInitialMaster {
		return ""
	}
	return endpoint
}

func (o *Orchestrator) markNodesStarting(stage inventory.Stage, nodes []*types.Node) {
	now := time.Now()
	for _, n := range nodes {
		if stage == inventory.StageRemove {
			n.Status = types.NodeStatusDraining
		} else {
			n.Status = types.NodeStatusInstalling
		}
		n.InstallStartedAt = &now
		n.UpdatedAt = now
		_ = o.store.UpdateNode(n)
	}
}

func (o *Orchestrator) markNodesDone(stage inventory.Stage, nodes []*types.Node) {
	now := time.Now()
	for _, n := range nodes {
		if stage == inventory.StageRemove || stage == inventory.StageUninstall {
			n.Status = types.NodeStatusRemoved
		} else {
			n.Status = types.NodeStatusActive
		}
		n.InstallEndedAt = &now
		n.UpdatedAt = now
		_ = o.store.UpdateNode(n)
	}
}

func (o *Orchestrator) markNodesFailed(nodes []*types.Node, err error, exitCode int) {
	now := time.Now()
	reason := fmt.Sprintf("stage exited with code %d", exitCode)
	if err != nil {
		reason = err.Error()
	}
	for _, n := range nodes {
		n.Status = types.NodeStatusFailed
		n.LastError = reason
		n.InstallEndedAt = &now
		n.UpdatedAt = now
		_ = o.store.UpdateNode(n)
	}
}
