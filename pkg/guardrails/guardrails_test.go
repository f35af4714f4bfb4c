package guardrails

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/ridge/pkg/apierr"
	"github.com/cuemby/ridge/pkg/types"
)

func activeMaster() *types.Node {
	return &types.Node{
		ID:              "n1",
		Hostname:        "master-1",
		InternalAddress: "10.0.0.1",
		Role:            types.NodeRoleInitialMaster,
		Status:          types.NodeStatusActive,
	}
}

func TestG1BootstrapPrerequisite_NoInitialMaster(t *testing.T) {
	rej := G1BootstrapPrerequisite(context.Background(), &types.Cluster{}, nil, func(ctx context.Context, addr string) error {
		t.Fatal("dial should not be called")
		return nil
	})
	require.NotNil(t, rej)
	assert.Contains(t, rej.Reason, "no active initial master")
}

func TestG1BootstrapPrerequisite_DialFails(t *testing.T) {
	nodes := []*types.Node{activeMaster()}
	rej := G1BootstrapPrerequisite(context.Background(), &types.Cluster{}, nodes, func(ctx context.Context, addr string) error {
		return errors.New("connection refused")
	})
	require.NotNil(t, rej)
	assert.Contains(t, rej.Reason, "unreachable")
}

func TestG1BootstrapPrerequisite_Succeeds(t *testing.T) {
	nodes := []*types.Node{activeMaster()}
	rej := G1BootstrapPrerequisite(context.Background(), &types.Cluster{}, nodes, func(ctx context.Context, addr string) error {
		assert.Equal(t, "10.0.0.1:6443", addr)
		return nil
	})
	assert.Nil(t, rej)
}

func masters(n int) []*types.Node {
	out := make([]*types.Node, n)
	for i := range out {
		out[i] = &types.Node{Role: types.NodeRoleMaster, Status: types.NodeStatusActive}
	}
	return out
}

func TestG2SafeRemoval_NoControlPlaneInBatch(t *testing.T) {
	rej := G2SafeRemoval(masters(3), []*types.Node{{Role: types.NodeRoleWorker}}, false)
	assert.Nil(t, rej)
}

func TestG2SafeRemoval_RequiresConfirm(t *testing.T) {
	active := masters(3)
	rej := G2SafeRemoval(active, []*types.Node{active[0]}, false)
	require.NotNil(t, rej)
	assert.Contains(t, rej.Reason, "confirm_master_removal")
}

func TestG2SafeRemoval_RejectsBelowOne(t *testing.T) {
	active := masters(1)
	rej := G2SafeRemoval(active, []*types.Node{active[0]}, true)
	require.NotNil(t, rej)
	assert.Contains(t, rej.Reason, "at least 1 required")
}

func TestG2SafeRemoval_RejectsBelowMajority(t *testing.T) {
	active := masters(5)
	rej := G2SafeRemoval(active, active[:3], true)
	require.NotNil(t, rej)
	assert.Contains(t, rej.Reason, "below consensus majority")
}

func TestG2SafeRemoval_WarnsOnEvenRemaining(t *testing.T) {
	active := masters(5)
	rej := G2SafeRemoval(active, active[:1], true)
	require.NotNil(t, rej)
	assert.Empty(t, rej.Reason)
	assert.Contains(t, rej.Warning, "even count")
}

func TestG2SafeRemoval_CleanOddRemaining(t *testing.T) {
	active := masters(5)
	rej := G2SafeRemoval(active, active[:2], true)
	assert.Nil(t, rej)
}

func TestSplitRoles(t *testing.T) {
	cp, workers := SplitRoles([]types.NewNodeSpec{
		{Role: types.NodeRoleMaster},
		{Role: types.NodeRoleWorker},
	})
	assert.True(t, cp)
	assert.True(t, workers)

	cp, workers = SplitRoles([]types.NewNodeSpec{{Role: types.NodeRoleWorker}})
	assert.False(t, cp)
	assert.True(t, workers)
}

func TestG4NodeIdentity_DuplicateHostname(t *testing.T) {
	existing := []*types.Node{{Hostname: "worker-1", InternalAddress: "10.0.0.5", Status: types.NodeStatusActive}}
	rej := G4NodeIdentity(existing, []types.NewNodeSpec{{Hostname: "worker-1", InternalAddress: "10.0.0.9"}})
	require.NotNil(t, rej)
	assert.Contains(t, rej.Reason, "duplicate hostname")
}

func TestG4NodeIdentity_DuplicateAddress(t *testing.T) {
	existing := []*types.Node{{Hostname: "worker-1", InternalAddress: "10.0.0.5", Status: types.NodeStatusActive}}
	rej := G4NodeIdentity(existing, []types.NewNodeSpec{{Hostname: "worker-2", InternalAddress: "10.0.0.5"}})
	require.NotNil(t, rej)
	assert.Contains(t, rej.Reason, "duplicate address")
}

func TestG4NodeIdentity_DuplicateWithinBatch(t *testing.T) {
	rej := G4NodeIdentity(nil, []types.NewNodeSpec{
		{Hostname: "worker-3", InternalAddress: "10.0.0.7"},
		{Hostname: "worker-3", InternalAddress: "10.0.0.8"},
	})
	require.NotNil(t, rej)
	assert.Contains(t, rej.Reason, "duplicate hostname")
}

func TestG4NodeIdentity_IgnoresRemovedNodes(t *testing.T) {
	existing := []*types.Node{{Hostname: "worker-1", InternalAddress: "10.0.0.5", Status: types.NodeStatusRemoved}}
	rej := G4NodeIdentity(existing, []types.NewNodeSpec{{Hostname: "worker-1", InternalAddress: "10.0.0.9"}})
	assert.Nil(t, rej)
}

func TestG4NodeIdentity_NoConflict(t *testing.T) {
	rej := G4NodeIdentity(nil, []types.NewNodeSpec{{Hostname: "worker-1", InternalAddress: "10.0.0.5"}})
	assert.Nil(t, rej)
}

func TestRejection_AsAPIError(t *testing.T) {
	var nilRej *Rejection
	assert.Nil(t, nilRej.AsAPIError("G1"))

	rej := &Rejection{Reason: "no active initial master"}
	err := rej.AsAPIError("G1")
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindGuardrail, apiErr.Kind)
}
