package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/ridge/pkg/lock"
	"github.com/cuemby/ridge/pkg/types"
)

// fakeStore is an in-memory storage.Store sufficient for reconciler tests.
type fakeStore struct {
	clusters map[string]*types.Cluster
	jobs     map[string]*types.Job
}

func newFakeStore() *fakeStore {
	return &fakeStore{clusters: map[string]*types.Cluster{}, jobs: map[string]*types.Job{}}
}

func (f *fakeStore) CreateCluster(c *types.Cluster) error { f.clusters[c.ID] = c; return nil }
func (f *fakeStore) GetCluster(id string) (*types.Cluster, error) { return f.clusters[id], nil }
func (f *fakeStore) ListClusters() ([]*types.Cluster, error) {
	var out []*types.Cluster
	for _, c := range f.clusters {
		out = append(out, c)
	}
	return out, nil
}
func (f *fakeStore) UpdateCluster(c *types.Cluster) error { f.clusters[c.ID] = c; return nil }
func (f *fakeStore) DeleteCluster(id string) error        { delete(f.clusters, id); return nil }

func (f *fakeStore) AcquireLock(clusterID, jobID, operation string) error {
	c := f.clusters[clusterID]
	c.Lock = types.LockRecord{Status: types.LockRunning, CurrentJobID: jobID, OperationName: operation}
	return nil
}
func (f *fakeStore) ReleaseLock(clusterID string) error {
	c := f.clusters[clusterID]
	c.Lock = types.LockRecord{Status: types.LockIdle}
	return nil
}

func (f *fakeStore) CreateNode(*types.Node) error                     { panic("not used") }
func (f *fakeStore) GetNode(string) (*types.Node, error)              { panic("not used") }
func (f *fakeStore) ListNodesByCluster(string) ([]*types.Node, error) { panic("not used") }
func (f *fakeStore) UpdateNode(*types.Node) error                     { panic("not used") }
func (f *fakeStore) DeleteNode(string) error                          { panic("not used") }

func (f *fakeStore) CreateJob(j *types.Job) error         { f.jobs[j.ID] = j; return nil }
func (f *fakeStore) GetJob(id string) (*types.Job, error) { return f.jobs[id], nil }
func (f *fakeStore) ListJobsByCluster(string) ([]*types.Job, error) { panic("not used") }
func (f *fakeStore) UpdateJob(j *types.Job) error                   { f.jobs[j.ID] = j; return nil }
func (f *fakeStore) AppendJobOutput(string, types.OutputChunk) error { panic("not used") }

func (f *fakeStore) CreateCredential(*types.Credential) error        { panic("not used") }
func (f *fakeStore) GetCredential(string) (*types.Credential, error)  { panic("not used") }
func (f *fakeStore) ListCredentials() ([]*types.Credential, error)   { panic("not used") }
func (f *fakeStore) DeleteCredential(string) error                    { panic("not used") }
func (f *fakeStore) Close() error                                     { return nil }

func TestRun_OrphanedLockIsReleasedAndJobFailed(t *testing.T) {
	store := newFakeStore()
	store.clusters["c1"] = &types.Cluster{ID: "c1", Lock: types.LockRecord{Status: types.LockRunning, CurrentJobID: "job-1"}}
	store.jobs["job-1"] = &types.Job{ID: "job-1", ClusterID: "c1", Status: types.JobStatusRunning}

	r := New(store, lock.New(store))
	require.NoError(t, r.Run())

	assert.Equal(t, types.LockIdle, store.clusters["c1"].Lock.Status)
	assert.Equal(t, types.JobStatusFailed, store.jobs["job-1"].Status)
	assert.Equal(t, orphanedReason, store.jobs["job-1"].FailureReason)
	assert.NotNil(t, store.jobs["job-1"].CompletedAt)
}

func TestRun_IdleClustersAreUntouched(t *testing.T) {
	store := newFakeStore()
	store.clusters["c1"] = &types.Cluster{ID: "c1", Lock: types.LockRecord{Status: types.LockIdle}}

	r := New(store, lock.New(store))
	require.NoError(t, r.Run())

	assert.Equal(t, types.LockIdle, store.clusters["c1"].Lock.Status)
}

func TestRun_TerminalJobLeftAlone(t *testing.T) {
	store := newFakeStore()
	store.clusters["c1"] = &types.Cluster{ID: "c1", Lock: types.LockRecord{Status: types.LockRunning, CurrentJobID: "job-1"}}
	store.jobs["job-1"] = &types.Job{ID: "job-1", ClusterID: "c1", Status: types.JobStatusSuccess}

	r := New(store, lock.New(store))
	require.NoError(t, r.Run())

	assert.Equal(t, types.LockIdle, store.clusters["c1"].Lock.Status)
	assert.Equal(t, types.JobStatusSuccess, store.jobs["job-1"].Status)
}

func TestRun_MissingCurrentJobStillReleasesLock(t *testing.T) {
	store := newFakeStore()
	store.clusters["c1"] = &types.Cluster{ID: "c1", Lock: types.LockRecord{Status: types.LockRunning, CurrentJobID: ""}}

	r := New(store, lock.New(store))
	require.NoError(t, r.Run())

	assert.Equal(t, types.LockIdle, store.clusters["c1"].Lock.Status)
}
