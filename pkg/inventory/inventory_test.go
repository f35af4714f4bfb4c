package inventory

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/ridge/pkg/types"
)

func node(role types.NodeRole, status types.NodeStatus, hostname string) *types.Node {
	return &types.Node{Hostname: hostname, InternalAddress: "10.0.0.1", Role: role, Status: status}
}

func userFor(n *types.Node) string { return "ridge" }

func TestBuildGroups_InitialMaster(t *testing.T) {
	nodes := []*types.Node{node(types.NodeRoleInitialMaster, types.NodeStatusActive, "m1")}
	doc, err := BuildGroups(StageInitialMaster, nodes, nil, userFor)
	require.NoError(t, err)
	require.Len(t, doc.Servers, 1)
	assert.Equal(t, "m1", doc.Servers[0].Hostname)
	assert.Empty(t, doc.Agents)
}

func TestBuildGroups_InitialMaster_WrongCount(t *testing.T) {
	_, err := BuildGroups(StageInitialMaster, nil, nil, userFor)
	assert.Error(t, err)

	nodes := []*types.Node{
		node(types.NodeRoleInitialMaster, types.NodeStatusActive, "m1"),
		node(types.NodeRoleInitialMaster, types.NodeStatusActive, "m2"),
	}
	_, err = BuildGroups(StageInitialMaster, nodes, nil, userFor)
	assert.Error(t, err)
}

func TestBuildGroups_All_SkipsRemoved(t *testing.T) {
	nodes := []*types.Node{
		node(types.NodeRoleInitialMaster, types.NodeStatusActive, "m1"),
		node(types.NodeRoleWorker, types.NodeStatusActive, "w1"),
		node(types.NodeRoleWorker, types.NodeStatusRemoved, "w2"),
	}
	doc, err := BuildGroups(StageAll, nodes, nil, userFor)
	require.NoError(t, err)
	assert.Len(t, doc.Servers, 1)
	assert.Len(t, doc.Agents, 1)
}

func TestBuildGroups_ScaleAdd_UsesExplicitList(t *testing.T) {
	explicit := []*types.Node{node(types.NodeRoleWorker, types.NodeStatusPending, "w3")}
	doc, err := BuildGroups(StageScaleAdd, nil, explicit, userFor)
	require.NoError(t, err)
	require.Len(t, doc.Agents, 1)
	assert.Equal(t, "w3", doc.Agents[0].Hostname)
}

func TestBuildGroups_JoiningMasters_ExplicitExcludesExistingActive(t *testing.T) {
	all := []*types.Node{
		node(types.NodeRoleMaster, types.NodeStatusActive, "m1"),
		node(types.NodeRoleMaster, types.NodeStatusActive, "m2"),
	}
	explicit := []*types.Node{node(types.NodeRoleMaster, types.NodeStatusPending, "m3")}
	doc, err := BuildGroups(StageJoiningMasters, all, explicit, userFor)
	require.NoError(t, err)
	require.Len(t, doc.Servers, 1)
	assert.Equal(t, "m3", doc.Servers[0].Hostname)
}

func TestBuildGroups_Workers_ExplicitExcludesExistingActive(t *testing.T) {
	all := []*types.Node{node(types.NodeRoleWorker, types.NodeStatusActive, "w1")}
	explicit := []*types.Node{node(types.NodeRoleWorker, types.NodeStatusPending, "w2")}
	doc, err := BuildGroups(StageWorkers, all, explicit, userFor)
	require.NoError(t, err)
	require.Len(t, doc.Agents, 1)
	assert.Equal(t, "w2", doc.Agents[0].Hostname)
}

func TestBuildGroups_JoiningMasters_NoExplicitFallsBackToAllNodes(t *testing.T) {
	all := []*types.Node{node(types.NodeRoleMaster, types.NodeStatusActive, "m1")}
	doc, err := BuildGroups(StageJoiningMasters, all, nil, userFor)
	require.NoError(t, err)
	require.Len(t, doc.Servers, 1)
	assert.Equal(t, "m1", doc.Servers[0].Hostname)
}

func TestBuildGroups_UnknownStage(t *testing.T) {
	_, err := BuildGroups(Stage("bogus"), nil, nil, userFor)
	assert.Error(t, err)
}

func TestBuildExtraVars_InitialMasterHasNoServerEndpoint(t *testing.T) {
	cluster := &types.Cluster{TargetVersion: "v1.28.0+rke2r1"}
	vars := BuildExtraVars(cluster, "/var/lib/rancher/rke2", "", "/tmp/key")
	assert.Empty(t, vars.ServerEndpoint)
	assert.Equal(t, "/tmp/key", vars.PrivateKeyPath)
	assert.Equal(t, cluster.TargetVersion, vars.TargetVersion)
}

func TestRendererRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)

	doc := &Document{
		Servers: []HostEntry{{Hostname: "m1", Address: "10.0.0.1", User: "ridge", Role: types.NodeRoleInitialMaster}},
	}
	vars := ExtraVars{TargetVersion: "v1.28.0+rke2r1"}

	invPath, extrasPath, err := r.Render("job-1", doc, vars)
	require.NoError(t, err)

	invData, err := os.ReadFile(invPath)
	require.NoError(t, err)
	assert.Contains(t, string(invData), "m1")

	extrasData, err := os.ReadFile(extrasPath)
	require.NoError(t, err)
	assert.Contains(t, string(extrasData), "v1.28.0+rke2r1")

	require.NoError(t, r.Cleanup("job-1"))
	_, err = os.Stat(invPath)
	assert.True(t, os.IsNotExist(err))
}
