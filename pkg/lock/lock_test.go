package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/ridge/pkg/apierr"
	"github.com/cuemby/ridge/pkg/types"
)

// fakeStore implements only the lock-related slice of storage.Store that
// Manager exercises; everything else panics if ever called.
type fakeStore struct {
	running bool
	jobID   string
	op      string
}

func (f *fakeStore) AcquireLock(clusterID, jobID, operation string) error {
	if f.running {
		return apierr.Conflict("cluster %s already has job %s running", clusterID, f.jobID)
	}
	f.running = true
	f.jobID = jobID
	f.op = operation
	return nil
}

func (f *fakeStore) ReleaseLock(clusterID string) error {
	f.running = false
	f.jobID = ""
	f.op = ""
	return nil
}

func (f *fakeStore) CreateCluster(*types.Cluster) error               { panic("not used") }
func (f *fakeStore) GetCluster(string) (*types.Cluster, error)        { panic("not used") }
func (f *fakeStore) ListClusters() ([]*types.Cluster, error)          { panic("not used") }
func (f *fakeStore) UpdateCluster(*types.Cluster) error               { panic("not used") }
func (f *fakeStore) DeleteCluster(string) error                       { panic("not used") }
func (f *fakeStore) CreateNode(*types.Node) error                     { panic("not used") }
func (f *fakeStore) GetNode(string) (*types.Node, error)              { panic("not used") }
func (f *fakeStore) ListNodesByCluster(string) ([]*types.Node, error) { panic("not used") }
func (f *fakeStore) UpdateNode(*types.Node) error                     { panic("not used") }
func (f *fakeStore) DeleteNode(string) error                          { panic("not used") }
func (f *fakeStore) CreateJob(*types.Job) error                       { panic("not used") }
func (f *fakeStore) GetJob(string) (*types.Job, error)                { panic("not used") }
func (f *fakeStore) ListJobsByCluster(string) ([]*types.Job, error)   { panic("not used") }
func (f *fakeStore) UpdateJob(*types.Job) error                       { panic("not used") }
func (f *fakeStore) AppendJobOutput(string, types.OutputChunk) error  { panic("not used") }
func (f *fakeStore) CreateCredential(*types.Credential) error         { panic("not used") }
func (f *fakeStore) GetCredential(string) (*types.Credential, error)  { panic("not used") }
func (f *fakeStore) ListCredentials() ([]*types.Credential, error)    { panic("not used") }
func (f *fakeStore) DeleteCredential(string) error                    { panic("not used") }
func (f *fakeStore) Close() error                                     { panic("not used") }

func TestAcquireRelease(t *testing.T) {
	store := &fakeStore{}
	m := New(store)

	require.NoError(t, m.Acquire("c1", "job-1", "install"))
	assert.True(t, store.running)

	require.NoError(t, m.Release("c1"))
	assert.False(t, store.running)
}

func TestAcquireConflict(t *testing.T) {
	store := &fakeStore{}
	m := New(store)

	require.NoError(t, m.Acquire("c1", "job-1", "install"))
	err := m.Acquire("c1", "job-2", "uninstall")
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindConflict, apiErr.Kind)
}

func TestWithLockReleasesOnSuccess(t *testing.T) {
	store := &fakeStore{}
	m := New(store)

	err := m.WithLock("c1", "job-1", "install", func() error {
		assert.True(t, store.running)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, store.running)
}

func TestWithLockReleasesOnError(t *testing.T) {
	store := &fakeStore{}
	m := New(store)

	sentinel := assert.AnError
	err := m.WithLock("c1", "job-1", "install", func() error {
		return sentinel
	})
	assert.Equal(t, sentinel, err)
	assert.False(t, store.running)
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	store := &fakeStore{}
	m := New(store)

	assert.Panics(t, func() {
		_ = m.WithLock("c1", "job-1", "install", func() error {
			panic("boom")
		})
	})
	assert.False(t, store.running)
}
