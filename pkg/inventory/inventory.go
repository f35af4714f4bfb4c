// Package inventory renders a filtered view of the topology into the
// inventory and extra-variables documents a stage's playbook subprocess
// consumes.
package inventory

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/ridge/pkg/types"
)

// Stage names a contiguous phase of an operation.
type Stage string

const (
	StageInitialMaster  Stage = "initial_master"
	StageJoiningMasters Stage = "joining_masters"
	StageWorkers        Stage = "workers"
	StageAll            Stage = "all"
	StageScaleAdd       Stage = "scale_add"
	StageRemove         Stage = "remove"
	StageUninstall      Stage = "uninstall"
	StagePreflight      Stage = "preflight"
)

// HostEntry is one inventory line: a node plus the connection attributes
// the execution tool needs.
type HostEntry struct {
	Hostname string
	Address  string
	User     string
	Role     types.NodeRole
}

// Document is the rendered inventory: a grouped host list.
type Document struct {
	Servers []HostEntry `yaml:"-"`
	Agents  []HostEntry `yaml:"-"`
}

// inventoryYAML is the on-disk shape of the rendered inventory file.
type inventoryYAML struct {
	Servers []hostYAML `yaml:"servers,omitempty"`
	Agents  []hostYAML `yaml:"agents,omitempty"`
}

type hostYAML struct {
	Hostname string `yaml:"hostname"`
	Address  string `yaml:"ansible_host"`
	User     string `yaml:"ansible_user"`
	Role     string `yaml:"role"`
}

// BuildGroups splits nodes into the servers (control-plane) and agents
// (worker) inventory groups appropriate for a given stage.
func BuildGroups(stage Stage, allNodes []*types.Node, explicit []*types.Node, userFor func(*types.Node) string) (*Document, error) {
	doc := &Document{}

	add := func(n *types.Node, group *[]HostEntry) {
		*group = append(*group, HostEntry{
			Hostname: n.Hostname,
			Address:  n.Address(),
			User:     userFor(n),
			Role:     n.Role,
		})
	}

	switch stage {
	case StageInitialMaster:
		for _, n := range allNodes {
			if n.Role == types.NodeRoleInitialMaster && n.Status != types.NodeStatusRemoved {
				add(n, &doc.Servers)
			}
		}
		if len(doc.Servers) != 1 {
			return nil, fmt.Errorf("initial_master stage requires exactly one eligible node, found %d", len(doc.Servers))
		}

	case StageJoiningMasters:
		candidates := allNodes
		if len(explicit) > 0 {
			candidates = explicit
		}
		for _, n := range candidates {
			if n.Role == types.NodeRoleMaster && n.Status != types.NodeStatusRemoved {
				add(n, &doc.Servers)
			}
		}

	case StageWorkers:
		candidates := allNodes
		if len(explicit) > 0 {
			candidates = explicit
		}
		for _, n := range candidates {
			if n.Role == types.NodeRoleWorker && n.Status != types.NodeStatusRemoved {
				add(n, &doc.Agents)
			}
		}

	case StageAll, StageUninstall:
		for _, n := range allNodes {
			if n.Status == types.NodeStatusRemoved {
				continue
			}
			if n.Role.IsControlPlane() {
				add(n, &doc.Servers)
			} else {
				add(n, &doc.Agents)
			}
		}

	case StageScaleAdd:
		for _, n := range explicit {
			if n.Role.IsControlPlane() {
				add(n, &doc.Servers)
			} else {
				add(n, &doc.Agents)
			}
		}

	case StageRemove, StagePreflight:
		for _, n := range explicit {
			if n.Role.IsControlPlane() {
				add(n, &doc.Servers)
			} else {
				add(n, &doc.Agents)
			}
		}

	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}

	return doc, nil
}

// ExtraVars carries the cluster-wide variables every stage needs:
// distribution version, data directory, control-plane API address,
// bootstrap token, network plugin, optional registry/image overrides.
// PrivateKeyPath is a file reference, never the secret bytes themselves.
type ExtraVars struct {
	TargetVersion  string            `yaml:"target_version"`
	DataDir        string            `yaml:"data_dir"`
	APIEndpoint    string            `yaml:"api_endpoint"`
	BootstrapToken string            `yaml:"bootstrap_token"`
	NetworkPlugin  types.NetworkPlugin `yaml:"network_plugin"`
	Registry       *types.RegistryConfig `yaml:"registry,omitempty"`
	ImageOverrides map[string]string `yaml:"image_overrides,omitempty"`
	ClusterConfig  map[string]any    `yaml:"cluster_config,omitempty"`
	// omitempty guarantees the renderer's invariant: the initial master
	// variant, rendered with an empty endpoint, carries no server endpoint
	// field at all.
	ServerEndpoint string `yaml:"server_endpoint,omitempty"`
	PrivateKeyPath string `yaml:"private_key_path,omitempty"`
}

// BuildExtraVars assembles the extra-variables document for a stage. For
// the initial-master stage serverEndpoint must be "" — the renderer's
// caller must never pass a join endpoint for that variant.
func BuildExtraVars(cluster *types.Cluster, dataDir, serverEndpoint, privateKeyPath string) ExtraVars {
	return ExtraVars{
		TargetVersion:  cluster.TargetVersion,
		DataDir:        dataDir,
		APIEndpoint:    cluster.APIEndpoint,
		BootstrapToken: cluster.BootstrapToken,
		NetworkPlugin:  cluster.NetworkPlugin,
		Registry:       cluster.Registry,
		ImageOverrides: cluster.ImageOverrides,
		ClusterConfig:  cluster.Config,
		ServerEndpoint: serverEndpoint,
		PrivateKeyPath: privateKeyPath,
	}
}

// Renderer writes rendered documents to a per-job working directory.
type Renderer struct {
	baseDir string
}

// New returns a Renderer rooted at baseDir (typically a subdirectory of
// the configured data directory).
func New(baseDir string) *Renderer {
	return &Renderer{baseDir: baseDir}
}

// WorkDir returns (creating if needed) the working directory for jobID.
func (r *Renderer) WorkDir(jobID string) (string, error) {
	dir := filepath.Join(r.baseDir, jobID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create job working directory: %w", err)
	}
	return dir, nil
}

// Render writes the inventory and extra-variables YAML documents into the
// job's working directory and returns their paths.
func (r *Renderer) Render(jobID string, doc *Document, vars ExtraVars) (inventoryPath, extrasPath string, err error) {
	dir, err := r.WorkDir(jobID)
	if err != nil {
		return "", "", err
	}

	inv := inventoryYAML{}
	for _, h := range doc.Servers {
		inv.Servers = append(inv.Servers, hostYAML{Hostname: h.Hostname, Address: h.Address, User: h.User, Role: string(h.Role)})
	}
	for _, h := range doc.Agents {
		inv.Agents = append(inv.Agents, hostYAML{Hostname: h.Hostname, Address: h.Address, User: h.User, Role: string(h.Role)})
	}

	invData, err := yaml.Marshal(&inv)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal inventory: %w", err)
	}
	inventoryPath = filepath.Join(dir, "inventory.yaml")
	if err := os.WriteFile(inventoryPath, invData, 0600); err != nil {
		return "", "", fmt.Errorf("failed to write inventory: %w", err)
	}

	extrasData, err := yaml.Marshal(&vars)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal extra-variables: %w", err)
	}
	extrasPath = filepath.Join(dir, "extravars.yaml")
	if err := os.WriteFile(extrasPath, extrasData, 0600); err != nil {
		return "", "", fmt.Errorf("failed to write extra-variables: %w", err)
	}

	return inventoryPath, extrasPath, nil
}

// Cleanup removes a job's entire working directory: the inventory, the
// extras file, and the in-flight secret file. The runner calls it when each
// stage's run returns. The output buffer lives in the store, not the
// filesystem.
func (r *Renderer) Cleanup(jobID string) error {
	dir := filepath.Join(r.baseDir, jobID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clean up job working directory: %w", err)
	}
	return nil
}
