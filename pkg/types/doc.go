/*
Package types defines the core data structures shared by every ridge
package: the Topology Store's domain model plus the Job API Surface's
request/response shapes.

# Core Types

Cluster topology:
  - Cluster: one managed RKE2 cluster, its target version, network plugin,
    registry config, current stage and lock record
  - Node: one cluster member, its role and status
  - NodeRole / NodeStatus: typed enums with IsControlPlane/IsActive helpers
  - LockRecord / LockStatus: the Cluster Lock Manager's persisted lock state

Jobs:
  - Job: one run of the Stage Orchestrator against a cluster
  - JobKind: install, uninstall, scale_add_masters, scale_add_workers,
    scale_remove, preflight_check, upgrade_check
  - JobStatus: pending, running, success, failed, cancelled, with
    IsTerminal()
  - OutputChunk: one indexed, timestamped line of playbook output

Credentials:
  - Credential: an encrypted SSH key or password used to reach cluster
    hosts
  - CredentialKind: key or password

Readiness:
  - ReadinessResult / Verdict: the structured result of a preflight or
    upgrade check, optionally enriched by an AnalyzerSummary

All types are plain structs, serializable as JSON for both BoltDB storage
and the HTTP Job API Surface; mutation is the caller's responsibility, the
Topology Store's transactions are what make updates atomic.
*/
package types
