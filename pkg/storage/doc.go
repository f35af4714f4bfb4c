/*
Package storage implements the Topology Store: ridge's single-writer,
BoltDB-backed persistence for clusters, nodes, jobs, and credentials.

Store is the interface every other package depends on; BoltStore is the
only implementation, one file (<dataDir>/ridge.db) with four top-level
buckets — clusters, nodes, jobs, credentials — each keyed by ID and holding
JSON-encoded values. Every operation runs inside a single bbolt
transaction, so a cluster's lock record, its nodes, and its jobs are never
observed in a partially-updated state.

DeleteCluster cascades: it removes the cluster record and every node and
job whose ClusterID matches, inside the same transaction.

	store, err := storage.NewBoltStore(cfg.DataDir)
	defer store.Close()

	cluster, err := store.GetCluster(clusterID)
	err = store.AcquireLock(clusterID, jobID, "install")

AppendJobOutput appends one output chunk to a job's persisted output log;
it is the durable counterpart to the in-memory Event Bus (pkg/events),
written on every line a playbook subprocess produces so a job's output
survives a controller restart.
*/
package storage
