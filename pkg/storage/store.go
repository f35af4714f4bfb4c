// Package storage persists the topology store: clusters, their nodes and
// jobs, and the credential catalog, plus the per-cluster lock record that
// the cluster lock manager reads and writes inside a single transaction.
package storage

import (
	"github.com/cuemby/ridge/pkg/types"
)

// Store is the topology store's persistence interface.
// Nodes and jobs are scoped to a cluster but stored flat, filtered by
// ClusterID.
type Store interface {
	// Clusters
	CreateCluster(cluster *types.Cluster) error
	GetCluster(id string) (*types.Cluster, error)
	ListClusters() ([]*types.Cluster, error)
	UpdateCluster(cluster *types.Cluster) error
	// DeleteCluster removes the cluster and cascades to its nodes and jobs.
	DeleteCluster(id string) error

	// AcquireLock atomically checks the cluster's lock is idle and sets it
	// to running for jobID/operation in a single transaction, so two
	// concurrent callers can never both observe idle.
	AcquireLock(clusterID, jobID, operation string) error
	// ReleaseLock sets the cluster's lock back to idle. It is idempotent:
	// releasing an already-idle lock is not an error.
	ReleaseLock(clusterID string) error

	// Nodes
	CreateNode(node *types.Node) error
	GetNode(id string) (*types.Node, error)
	ListNodesByCluster(clusterID string) ([]*types.Node, error)
	UpdateNode(node *types.Node) error
	DeleteNode(id string) error

	// Jobs
	CreateJob(job *types.Job) error
	GetJob(id string) (*types.Job, error)
	ListJobsByCluster(clusterID string) ([]*types.Job, error)
	UpdateJob(job *types.Job) error
	// AppendJobOutput appends a single output chunk to a job's persisted
	// buffer; used by the job runner as it streams subprocess output.
	AppendJobOutput(jobID string, chunk types.OutputChunk) error

	// Credentials
	CreateCredential(cred *types.Credential) error
	GetCredential(id string) (*types.Credential, error)
	ListCredentials() ([]*types.Credential, error)
	DeleteCredential(id string) error

	Close() error
}
