package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cuemby/ridge/pkg/apierr"
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jobs, err := s.service.ListJobs(r.URL.Query().Get("cluster_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	clusterID := strings.TrimPrefix(r.URL.Path, "/jobs/install/")
	if clusterID == "" {
		writeError(w, apierr.Validation("cluster id is required"))
		return
	}
	job, err := s.service.Install(r.Context(), clusterID, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	clusterID := strings.TrimPrefix(r.URL.Path, "/jobs/uninstall/")
	if clusterID == "" {
		writeError(w, apierr.Validation("cluster id is required"))
		return
	}
	confirmation := r.URL.Query().Get("confirmation")
	job, err := s.service.Uninstall(r.Context(), clusterID, confirmation)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// handleJobByID dispatches GET /jobs/{id}, POST /jobs/{id}/terminate, and
// GET /jobs/{id}/stream.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/jobs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	jobID := parts[0]
	if jobID == "" {
		writeError(w, apierr.Validation("job id is required"))
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		job, err := s.service.GetJob(jobID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
		return
	}

	switch parts[1] {
	case "terminate":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := s.service.Cancel(jobID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	case "stream":
		s.handleStream(w, r, jobID)
	default:
		http.NotFound(w, r)
	}
}

// handleStream serves a job's output as Server-Sent Events: the buffered
// history first, then live chunks as they are published, until the job
// terminates or the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	snapshot, live, cancel := s.service.Stream(jobID)
	defer cancel()

	for _, chunk := range snapshot {
		if !writeSSE(w, chunk) {
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case chunk, ok := <-live:
			if !ok {
				return
			}
			if !writeSSE(w, chunk) {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err == nil
}
