// Package guardrails implements the pure predicates evaluated after lock
// acquisition and before any mutation or subprocess spawn.
package guardrails

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/ridge/pkg/apierr"
	"github.com/cuemby/ridge/pkg/types"
)

// Rejection carries the reason a guardrail refused a request, plus any
// non-fatal warning that still let the request through (e.g. G2's even
// remaining-count warning).
type Rejection struct {
	Reason  string
	Warning string
}

const bootstrapProbeTimeout = 3 * time.Second

// G1 checks the bootstrap prerequisite for scale-add: an active initial
// master must exist, and a best-effort TCP probe of the control-plane join
// port should reach it. dial is nil-safe for tests that don't want to
// touch the network; when nil, dialTCP is used.
func G1BootstrapPrerequisite(ctx context.Context, cluster *types.Cluster, nodes []*types.Node, dial func(ctx context.Context, addr string) error) *Rejection {
	var initial *types.Node
	for _, n := range nodes {
		if n.Role == types.NodeRoleInitialMaster && n.Status.IsActive() && n.Status == types.NodeStatusActive {
			initial = n
			break
		}
	}
	if initial == nil {
		return &Rejection{Reason: "cluster has no active initial master"}
	}

	if dial == nil {
		dial = dialTCP
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dial(gctx, fmt.Sprintf("%s:6443", initial.Address()))
	})
	if err := g.Wait(); err != nil {
		return &Rejection{Reason: fmt.Sprintf("control-plane join port unreachable: %v", err)}
	}
	return nil
}

func dialTCP(ctx context.Context, addr string) error {
	dctx, cancel := context.WithTimeout(ctx, bootstrapProbeTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// G2 checks that removing the given control-plane nodes leaves at least
// one active control-plane node and preserves consensus majority. An even
// remaining count is allowed with a warning, not a rejection. Removing any
// control-plane node at all requires confirm == true.
func G2SafeRemoval(activeControlPlane []*types.Node, toRemove []*types.Node, confirm bool) *Rejection {
	removingControlPlane := 0
	for _, n := range toRemove {
		if n.Role.IsControlPlane() {
			removingControlPlane++
		}
	}
	if removingControlPlane == 0 {
		return nil
	}
	if !confirm {
		return &Rejection{Reason: "removing a control-plane node requires confirm_master_removal=true"}
	}

	total := len(activeControlPlane)
	remaining := total - removingControlPlane
	majority := total/2 + 1

	if remaining < 1 {
		return &Rejection{Reason: fmt.Sprintf("removal leaves %d active control-plane nodes, at least 1 required", remaining)}
	}
	if remaining < majority {
		return &Rejection{Reason: fmt.Sprintf("removal leaves %d active control-plane nodes, below consensus majority of %d (out of %d total)", remaining, majority, total)}
	}

	rej := &Rejection{}
	if remaining%2 == 0 {
		rej.Warning = fmt.Sprintf("%d remaining control-plane nodes is an even count; consider an odd number for clean majorities", remaining)
	}
	if rej.Warning == "" {
		return nil
	}
	return rej
}

// SplitRoles reports whether an add_nodes request mixes control-plane and
// worker nodes. When true the orchestrator creates only the control-plane
// job and asks the caller to submit workers separately.
func SplitRoles(specs []types.NewNodeSpec) (hasControlPlane, hasWorkers bool) {
	for _, s := range specs {
		if s.Role.IsControlPlane() {
			hasControlPlane = true
		} else {
			hasWorkers = true
		}
	}
	return hasControlPlane, hasWorkers
}

// G4 checks new node specs against the existing, non-removed nodes in the
// cluster for duplicate hostnames or addresses.
func G4NodeIdentity(existing []*types.Node, specs []types.NewNodeSpec) *Rejection {
	hostnames := make(map[string]bool, len(existing))
	addresses := make(map[string]bool, len(existing)*2)
	for _, n := range existing {
		if !n.Status.IsActive() {
			continue
		}
		hostnames[n.Hostname] = true
		addresses[n.InternalAddress] = true
		if n.ExternalAddress != "" {
			addresses[n.ExternalAddress] = true
		}
	}

	seenHostnames := make(map[string]bool, len(specs))
	seenAddresses := make(map[string]bool, len(specs)*2)
	for _, s := range specs {
		if hostnames[s.Hostname] || seenHostnames[s.Hostname] {
			return &Rejection{Reason: fmt.Sprintf("duplicate hostname %q", s.Hostname)}
		}
		seenHostnames[s.Hostname] = true

		if addresses[s.InternalAddress] || seenAddresses[s.InternalAddress] {
			return &Rejection{Reason: fmt.Sprintf("duplicate address %q", s.InternalAddress)}
		}
		seenAddresses[s.InternalAddress] = true

		if s.ExternalAddress != "" {
			if addresses[s.ExternalAddress] || seenAddresses[s.ExternalAddress] {
				return &Rejection{Reason: fmt.Sprintf("duplicate address %q", s.ExternalAddress)}
			}
			seenAddresses[s.ExternalAddress] = true
		}
	}
	return nil
}

// AsAPIError converts a non-nil Rejection into the apierr.Guardrail kind
// used by the HTTP transport's status-code mapping.
func (r *Rejection) AsAPIError(guardrail string) error {
	if r == nil {
		return nil
	}
	return apierr.Guardrail(guardrail, "%s", r.Reason)
}
