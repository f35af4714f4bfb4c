package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/ridge/pkg/apierr"
	"github.com/cuemby/ridge/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketClusters    = []byte("clusters")
	bucketNodes       = []byte("nodes")
	bucketJobs        = []byte("jobs")
	bucketCredentials = []byte("credentials")
)

// BoltStore implements Store using an embedded BoltDB file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) the BoltDB file under dataDir and
// ensures its buckets exist.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "ridge.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketClusters, bucketNodes, bucketJobs, bucketCredentials}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// --- Clusters ---

func (s *BoltStore) CreateCluster(cluster *types.Cluster) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		data, err := json.Marshal(cluster)
		if err != nil {
			return err
		}
		return b.Put([]byte(cluster.ID), data)
	})
}

func (s *BoltStore) GetCluster(id string) (*types.Cluster, error) {
	var cluster types.Cluster
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		data := b.Get([]byte(id))
		if data == nil {
			return apierr.NotFound("cluster %s not found", id)
		}
		return json.Unmarshal(data, &cluster)
	})
	if err != nil {
		return nil, err
	}
	return &cluster, nil
}

func (s *BoltStore) ListClusters() ([]*types.Cluster, error) {
	var clusters []*types.Cluster
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		return b.ForEach(func(k, v []byte) error {
			var cluster types.Cluster
			if err := json.Unmarshal(v, &cluster); err != nil {
				return err
			}
			clusters = append(clusters, &cluster)
			return nil
		})
	})
	return clusters, err
}

func (s *BoltStore) UpdateCluster(cluster *types.Cluster) error {
	return s.CreateCluster(cluster)
}

// DeleteCluster removes the cluster along with every node and job scoped
// to it, in a single transaction so a crash mid-delete cannot leave
// orphaned nodes or jobs behind.
func (s *BoltStore) DeleteCluster(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketClusters).Delete([]byte(id)); err != nil {
			return err
		}

		nb := tx.Bucket(bucketNodes)
		if err := deleteWhereClusterID(nb, id); err != nil {
			return err
		}

		jb := tx.Bucket(bucketJobs)
		return deleteWhereClusterID(jb, id)
	})
}

func deleteWhereClusterID(b *bolt.Bucket, clusterID string) error {
	var stale [][]byte
	err := b.ForEach(func(k, v []byte) error {
		var probe struct {
			ClusterID string `json:"cluster_id"`
		}
		if err := json.Unmarshal(v, &probe); err != nil {
			return err
		}
		if probe.ClusterID == clusterID {
			key := make([]byte, len(k))
			copy(key, k)
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range stale {
		if err := b.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// --- Lock ---

// AcquireLock is the single atomic transaction underpinning the cluster
// lock manager: it reads the cluster, checks the lock is idle, and writes
// it back as running, all under one bolt write transaction so BoltDB's
// single-writer guarantee serializes concurrent acquire attempts.
func (s *BoltStore) AcquireLock(clusterID, jobID, operation string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		data := b.Get([]byte(clusterID))
		if data == nil {
			return apierr.NotFound("cluster %s not found", clusterID)
		}
		var cluster types.Cluster
		if err := json.Unmarshal(data, &cluster); err != nil {
			return err
		}
		if cluster.Lock.Status == types.LockRunning {
			return apierr.Conflict("cluster %s already has job %s running operation %q", clusterID, cluster.Lock.CurrentJobID, cluster.Lock.OperationName)
		}
		now := time.Now().UTC()
		cluster.Lock = types.LockRecord{
			Status:        types.LockRunning,
			CurrentJobID:  jobID,
			OperationName: operation,
			StartedAt:     &now,
		}
		cluster.UpdatedAt = now
		out, err := json.Marshal(&cluster)
		if err != nil {
			return err
		}
		return b.Put([]byte(clusterID), out)
	})
}

func (s *BoltStore) ReleaseLock(clusterID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusters)
		data := b.Get([]byte(clusterID))
		if data == nil {
			return apierr.NotFound("cluster %s not found", clusterID)
		}
		var cluster types.Cluster
		if err := json.Unmarshal(data, &cluster); err != nil {
			return err
		}
		cluster.Lock = types.LockRecord{Status: types.LockIdle}
		cluster.UpdatedAt = time.Now().UTC()
		out, err := json.Marshal(&cluster)
		if err != nil {
			return err
		}
		return b.Put([]byte(clusterID), out)
	})
}

// --- Nodes ---

func (s *BoltStore) CreateNode(node *types.Node) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		data, err := json.Marshal(node)
		if err != nil {
			return err
		}
		return b.Put([]byte(node.ID), data)
	})
}

func (s *BoltStore) GetNode(id string) (*types.Node, error) {
	var node types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		data := b.Get([]byte(id))
		if data == nil {
			return apierr.NotFound("node %s not found", id)
		}
		return json.Unmarshal(data, &node)
	})
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (s *BoltStore) ListNodesByCluster(clusterID string) ([]*types.Node, error) {
	var nodes []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		return b.ForEach(func(k, v []byte) error {
			var node types.Node
			if err := json.Unmarshal(v, &node); err != nil {
				return err
			}
			if node.ClusterID == clusterID {
				nodes = append(nodes, &node)
			}
			return nil
		})
	})
	return nodes, err
}

func (s *BoltStore) UpdateNode(node *types.Node) error {
	return s.CreateNode(node)
}

func (s *BoltStore) DeleteNode(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		return b.Delete([]byte(id))
	})
}

// --- Jobs ---

func (s *BoltStore) CreateJob(job *types.Job) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return b.Put([]byte(job.ID), data)
	})
}

func (s *BoltStore) GetJob(id string) (*types.Job, error) {
	var job types.Job
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data := b.Get([]byte(id))
		if data == nil {
			return apierr.NotFound("job %s not found", id)
		}
		return json.Unmarshal(data, &job)
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *BoltStore) ListJobsByCluster(clusterID string) ([]*types.Job, error) {
	var jobs []*types.Job
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		return b.ForEach(func(k, v []byte) error {
			var job types.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			if job.ClusterID == clusterID {
				jobs = append(jobs, &job)
			}
			return nil
		})
	})
	return jobs, err
}

func (s *BoltStore) UpdateJob(job *types.Job) error {
	return s.CreateJob(job)
}

// AppendJobOutput appends a chunk under the same write transaction that
// reads the current job, so concurrent runner goroutines writing output
// for different jobs never block on each other beyond BoltDB's single
// writer lock, and a given job's chunks stay strictly ordered.
func (s *BoltStore) AppendJobOutput(jobID string, chunk types.OutputChunk) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		data := b.Get([]byte(jobID))
		if data == nil {
			return apierr.NotFound("job %s not found", jobID)
		}
		var job types.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return err
		}
		job.Output = append(job.Output, chunk)
		out, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		return b.Put([]byte(jobID), out)
	})
}

// --- Credentials ---

func (s *BoltStore) CreateCredential(cred *types.Credential) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		data, err := json.Marshal(cred)
		if err != nil {
			return err
		}
		return b.Put([]byte(cred.ID), data)
	})
}

func (s *BoltStore) GetCredential(id string) (*types.Credential, error) {
	var cred types.Credential
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		data := b.Get([]byte(id))
		if data == nil {
			return apierr.NotFound("credential %s not found", id)
		}
		return json.Unmarshal(data, &cred)
	})
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *BoltStore) ListCredentials() ([]*types.Credential, error) {
	var creds []*types.Credential
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		return b.ForEach(func(k, v []byte) error {
			var cred types.Credential
			if err := json.Unmarshal(v, &cred); err != nil {
				return err
			}
			creds = append(creds, &cred)
			return nil
		})
	})
	return creds, err
}

func (s *BoltStore) DeleteCredential(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		return b.Delete([]byte(id))
	})
}
