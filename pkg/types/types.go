// Package types defines the data model shared across the cluster lifecycle
// controller: clusters, nodes, jobs and credentials, and the tagged enums
// that constrain their fields at the API boundary.
package types

import "time"

// Cluster is the top-level topology record. It owns its nodes and jobs
// (cascade delete) and carries the lock record that serializes mutating
// operations against it.
type Cluster struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Kind           ClusterKind       `json:"kind"`
	TargetVersion  string            `json:"target_version"`
	NetworkPlugin  NetworkPlugin     `json:"network_plugin"`
	APIEndpoint    string            `json:"api_endpoint"`
	BootstrapToken string            `json:"-"` // never serialized to API responses
	SANs           []string          `json:"sans,omitempty"`
	Registry       *RegistryConfig   `json:"registry,omitempty"`
	ImageOverrides map[string]string `json:"image_overrides,omitempty"`
	Config         map[string]any    `json:"config,omitempty"`
	CurrentStage   string            `json:"current_stage,omitempty"`
	Lock           LockRecord        `json:"lock"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ClusterKind distinguishes a cluster this controller bootstraps from one
// it only takes over the lifecycle of.
type ClusterKind string

const (
	ClusterKindFresh      ClusterKind = "fresh"
	ClusterKindRegistered ClusterKind = "registered"
)

// NetworkPlugin is the CNI selection rendered into extra-variables.
type NetworkPlugin string

const (
	NetworkPluginCanal   NetworkPlugin = "canal"
	NetworkPluginCalico  NetworkPlugin = "calico"
	NetworkPluginCilium  NetworkPlugin = "cilium"
	NetworkPluginFlannel NetworkPlugin = "flannel"
)

// RegistryConfig carries optional private-registry settings rendered into
// extra-variables; never logged verbatim since it may include auth.
type RegistryConfig struct {
	Mirror   string `json:"mirror,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"-"`
}

// LockRecord is the per-cluster exclusive operation lock.
type LockRecord struct {
	Status        LockStatus `json:"status"`
	CurrentJobID  string     `json:"current_job_id,omitempty"`
	OperationName string     `json:"operation_name,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
}

// LockStatus is the cluster lock's two-value state.
type LockStatus string

const (
	LockIdle    LockStatus = "idle"
	LockRunning LockStatus = "running"
)

// Node is one fleet member under a cluster.
type Node struct {
	ID               string            `json:"id"`
	ClusterID        string            `json:"cluster_id"`
	Hostname         string            `json:"hostname"`
	InternalAddress  string            `json:"internal_address"`
	ExternalAddress  string            `json:"external_address,omitempty"`
	UseExternal      bool              `json:"use_external"`
	Role             NodeRole          `json:"role"`
	Status           NodeStatus        `json:"status"`
	InstallStartedAt *time.Time        `json:"install_started_at,omitempty"`
	InstallEndedAt   *time.Time        `json:"install_ended_at,omitempty"`
	LastError        string            `json:"last_error,omitempty"`
	Vars             map[string]string `json:"vars,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Address returns the address the execution tool should connect to.
func (n *Node) Address() string {
	if n.UseExternal && n.ExternalAddress != "" {
		return n.ExternalAddress
	}
	return n.InternalAddress
}

// NodeRole is the node's role in the consensus/worker topology.
type NodeRole string

const (
	NodeRoleInitialMaster NodeRole = "initial_master"
	NodeRoleMaster        NodeRole = "master"
	NodeRoleWorker        NodeRole = "worker"
)

// IsControlPlane reports whether the role participates in consensus.
func (r NodeRole) IsControlPlane() bool {
	return r == NodeRoleInitialMaster || r == NodeRoleMaster
}

// NodeStatus is the node's lifecycle state.
type NodeStatus string

const (
	NodeStatusPending    NodeStatus = "pending"
	NodeStatusInstalling NodeStatus = "installing"
	NodeStatusActive     NodeStatus = "active"
	NodeStatusFailed     NodeStatus = "failed"
	NodeStatusDraining   NodeStatus = "draining"
	NodeStatusRemoved    NodeStatus = "removed"
)

// IsActive reports whether the node currently counts toward the fleet
// (i.e. has not been removed).
func (s NodeStatus) IsActive() bool {
	return s != NodeStatusRemoved
}

// Job is the persistent record of one user intent's execution.
type Job struct {
	ID              string           `json:"id"`
	ClusterID       string           `json:"cluster_id"`
	Kind            JobKind          `json:"kind"`
	Status          JobStatus        `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	Output          []OutputChunk    `json:"output,omitempty"`
	Readiness       *ReadinessResult `json:"readiness,omitempty"`
	AnalyzerSummary *AnalyzerSummary `json:"analyzer_summary,omitempty"`
	TargetVersion   string           `json:"target_version,omitempty"`
	FailureReason   string           `json:"failure_reason,omitempty"`
	Warning         string           `json:"warning,omitempty"`
}

// OutputChunk is one line-oriented unit of captured subprocess output,
// identified by a monotonic index so subscribers can de-duplicate across
// the snapshot/live boundary.
type OutputChunk struct {
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// JobKind is the operation a job performs.
type JobKind string

const (
	JobKindInstall         JobKind = "install"
	JobKindUninstall       JobKind = "uninstall"
	JobKindScaleAddMasters JobKind = "scale_add_masters"
	JobKindScaleAddWorkers JobKind = "scale_add_workers"
	JobKindScaleRemove     JobKind = "scale_remove"
	JobKindPreflightCheck  JobKind = "preflight_check"
	JobKindUpgradeCheck    JobKind = "upgrade_check"
)

// JobStatus is the job's terminal or in-flight state.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSuccess   JobStatus = "success"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status will never change again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSuccess, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// ReadinessResult is the structured output of a preflight/upgrade check.
type ReadinessResult struct {
	Verdict    Verdict  `json:"verdict"`
	Blockers   []string `json:"blockers,omitempty"`
	Risks      []string `json:"risks,omitempty"`
	ActionPlan []string `json:"action_plan,omitempty"`
}

// Verdict is the analyzer's or preflight check's recommendation.
type Verdict string

const (
	VerdictGo      Verdict = "GO"
	VerdictCaution Verdict = "CAUTION"
	VerdictNoGo    Verdict = "NO-GO"
)

// AnalyzerSummary is the optional LLM-backed analysis of a preflight
// document. Failures to obtain one are surfaced as job warnings, never
// fatal.
type AnalyzerSummary struct {
	Verdict    Verdict  `json:"verdict"`
	Blockers   []string `json:"blockers,omitempty"`
	Risks      []string `json:"risks,omitempty"`
	ActionPlan []string `json:"action_plan,omitempty"`
	ModelID    string   `json:"model_id,omitempty"`
	TokenCount int      `json:"token_count,omitempty"`
	Warning    string   `json:"warning,omitempty"`
}

// Credential is an opaque, encrypted secret the core never inspects beyond
// its kind and login user.
type Credential struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	LoginUser     string         `json:"login_user"`
	Kind          CredentialKind `json:"kind"`
	EncryptedData []byte         `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
}

// CredentialKind is how the credential authenticates over SSH.
type CredentialKind string

const (
	CredentialKindKey      CredentialKind = "key"
	CredentialKindPassword CredentialKind = "password"
)

// NodeRef identifies a node for operations that accept either form.
type NodeRef struct {
	ID       string `json:"id,omitempty"`
	Hostname string `json:"hostname,omitempty"`
}

// AddNodesResult is the response to an add-nodes request. Job is the
// control-plane job when the request mixed roles, or the single job for a
// single-role request. SplitRolesPending is true when the request included
// both control-plane and worker specs: only the control-plane job was
// created and run, and the caller must submit the worker specs again in a
// follow-up request once it completes.
type AddNodesResult struct {
	Job               *Job `json:"job"`
	SplitRolesPending bool `json:"split_roles_pending"`
}

// NewNodeSpec describes a node to be added to a cluster.
type NewNodeSpec struct {
	Hostname        string            `json:"hostname"`
	InternalAddress string            `json:"internal_address"`
	ExternalAddress string            `json:"external_address,omitempty"`
	UseExternal     bool              `json:"use_external"`
	Role            NodeRole          `json:"role"`
	CredentialID    string            `json:"credential_id"`
	Vars            map[string]string `json:"vars,omitempty"`
}
