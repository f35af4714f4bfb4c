package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/cuemby/ridge/pkg/apierr"
	"github.com/cuemby/ridge/pkg/types"
)

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	clusters, err := s.service.ListClusters()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clusters)
}

// handleCreateCluster returns a handler for either /clusters/new (a fresh
// cluster this controller will bootstrap) or /clusters/register (an
// already-running cluster this controller only takes over the lifecycle
// of), distinguished only by the recorded ClusterKind.
func (s *Server) handleCreateCluster(registered bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var cluster types.Cluster
		if err := json.NewDecoder(r.Body).Decode(&cluster); err != nil {
			writeError(w, apierr.Validation("invalid request body: %v", err))
			return
		}
		if registered {
			cluster.Kind = types.ClusterKindRegistered
		} else {
			cluster.Kind = types.ClusterKindFresh
		}
		created, err := s.service.CreateCluster(&cluster)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// handleClusterByID dispatches /clusters/{id} and its action sub-paths.
func (s *Server) handleClusterByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/clusters/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	clusterID := parts[0]
	if clusterID == "" {
		writeError(w, apierr.Validation("cluster id is required"))
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			cluster, err := s.service.GetCluster(clusterID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, cluster)
		case http.MethodDelete:
			if err := s.service.DeleteCluster(clusterID); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch parts[1] {
	case "scale":
		if len(parts) < 3 {
			writeError(w, apierr.Validation("scale action is required"))
			return
		}
		s.handleScale(w, r, clusterID, parts[2])
	case "preflight-check":
		s.handleCheck(w, r, clusterID, types.JobKindPreflightCheck)
	case "upgrade-check":
		s.handleCheck(w, r, clusterID, types.JobKindUpgradeCheck)
	default:
		http.NotFound(w, r)
	}
}

type addNodesRequest struct {
	Nodes []types.NewNodeSpec `json:"nodes"`
}

type removeNodesRequest struct {
	Nodes []types.NodeRef `json:"nodes"`
}

func (s *Server) handleScale(w http.ResponseWriter, r *http.Request, clusterID, action string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "add":
		var req addNodesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apierr.Validation("invalid request body: %v", err))
			return
		}
		result, err := s.service.AddNodes(r.Context(), clusterID, req.Nodes, nil)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, result)

	case "remove":
		var req removeNodesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apierr.Validation("invalid request body: %v", err))
			return
		}
		confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm_master_removal"))
		job, err := s.service.RemoveNodes(clusterID, req.Nodes, confirm)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, job)

	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request, clusterID string, kind types.JobKind) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	targetVersion := r.URL.Query().Get("target_version")
	job, err := s.service.Check(r.Context(), clusterID, kind, targetVersion)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}
