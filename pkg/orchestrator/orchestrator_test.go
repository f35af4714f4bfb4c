package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/ridge/pkg/inventory"
	"github.com/cuemby/ridge/pkg/types"
)

func TestStages_InstallFreshCluster(t *testing.T) {
	stages := Stages(types.JobKindInstall, false, false)
	assert.Equal(t, []inventory.Stage{inventory.StageInitialMaster}, stages)
}

func TestStages_InstallWithControlPlaneAndWorkers(t *testing.T) {
	stages := Stages(types.JobKindInstall, true, true)
	assert.Equal(t, []inventory.Stage{
		inventory.StageInitialMaster,
		inventory.StageJoiningMasters,
		inventory.StageWorkers,
	}, stages)
}

func TestStages_ScaleAddSplitsByRole(t *testing.T) {
	assert.Equal(t, []inventory.Stage{inventory.StageJoiningMasters}, Stages(types.JobKindScaleAddMasters, true, false))
	assert.Equal(t, []inventory.Stage{inventory.StageWorkers}, Stages(types.JobKindScaleAddWorkers, false, true))
}

func TestStages_RemoveAndUninstall(t *testing.T) {
	assert.Equal(t, []inventory.Stage{inventory.StageRemove}, Stages(types.JobKindScaleRemove, false, false))
	assert.Equal(t, []inventory.Stage{inventory.StageUninstall}, Stages(types.JobKindUninstall, false, false))
}

func TestStages_ChecksShareThePreflightStage(t *testing.T) {
	assert.Equal(t, []inventory.Stage{inventory.StagePreflight}, Stages(types.JobKindPreflightCheck, false, false))
	assert.Equal(t, []inventory.Stage{inventory.StagePreflight}, Stages(types.JobKindUpgradeCheck, false, false))
}

func TestStages_UnknownKind(t *testing.T) {
	assert.Nil(t, Stages(types.JobKind("bogus"), true, true))
}

func TestServerEndpointFor_EmptyOnInitialMaster(t *testing.T) {
	assert.Empty(t, serverEndpointFor(inventory.StageInitialMaster, "10.0.0.1:9345"))
	assert.Equal(t, "10.0.0.1:9345", serverEndpointFor(inventory.StageJoiningMasters, "10.0.0.1:9345"))
}

func TestRolesPresent_InstallUsesAllNodes(t *testing.T) {
	all := []*types.Node{
		{Role: types.NodeRoleInitialMaster, Status: types.NodeStatusActive},
		{Role: types.NodeRoleWorker, Status: types.NodeStatusActive},
	}
	hasCP, hasWorkers := rolesPresent(all, nil, types.JobKindInstall)
	// The initial master alone does not call for a joining-masters stage.
	assert.False(t, hasCP)
	assert.True(t, hasWorkers)
}

func TestRolesPresent_NonInstallUsesExplicit(t *testing.T) {
	all := []*types.Node{{Role: types.NodeRoleInitialMaster, Status: types.NodeStatusActive}}
	explicit := []*types.Node{{Role: types.NodeRoleWorker, Status: types.NodeStatusActive}}
	hasCP, hasWorkers := rolesPresent(all, explicit, types.JobKindScaleAddWorkers)
	assert.False(t, hasCP)
	assert.True(t, hasWorkers)
}

func TestRolesPresent_SkipsRemovedNodes(t *testing.T) {
	all := []*types.Node{{Role: types.NodeRoleWorker, Status: types.NodeStatusRemoved}}
	hasCP, hasWorkers := rolesPresent(all, nil, types.JobKindInstall)
	assert.False(t, hasCP)
	assert.False(t, hasWorkers)
}
