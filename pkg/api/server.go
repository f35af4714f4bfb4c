package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cuemby/ridge/pkg/apierr"
	"github.com/cuemby/ridge/pkg/core"
	"github.com/cuemby/ridge/pkg/log"
	"github.com/cuemby/ridge/pkg/metrics"
	"github.com/cuemby/ridge/pkg/storage"
)

// Server is ridge's HTTP API server.
type Server struct {
	service *core.Service
	store   storage.Store
	mux     *http.ServeMux
}

// NewServer builds the ServeMux and wires every route to service.
func NewServer(service *core.Service, store storage.Store) *Server {
	mux := http.NewServeMux()
	s := &Server{service: service, store: store, mux: mux}

	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/ready", s.ready)
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/clusters", s.withMetrics("/clusters", s.handleClusters))
	mux.HandleFunc("/clusters/new", s.withMetrics("/clusters/new", s.handleCreateCluster(false)))
	mux.HandleFunc("/clusters/register", s.withMetrics("/clusters/register", s.handleCreateCluster(true)))
	mux.HandleFunc("/clusters/", s.withMetrics("/clusters/{id}", s.handleClusterByID))

	mux.HandleFunc("/jobs", s.withMetrics("/jobs", s.handleListJobs))
	mux.HandleFunc("/jobs/install/", s.withMetrics("/jobs/install/{cluster_id}", s.handleInstall))
	mux.HandleFunc("/jobs/uninstall/", s.withMetrics("/jobs/uninstall/{cluster_id}", s.handleUninstall))
	mux.HandleFunc("/jobs/", s.withMetrics("/jobs/{id}", s.handleJobByID))

	return s
}

// Start runs the HTTP server, blocking until it stops.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // streaming endpoints must not be cut off
		IdleTimeout:  120 * time.Second,
	}
	log.Info("api server listening on " + addr)
	return srv.ListenAndServe()
}

// Handler exposes the ServeMux for embedding or testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) withMetrics(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, route, http.StatusText(rw.status)).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, r.Method, route)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an apierr.Kind to its HTTP status code.
func writeError(w http.ResponseWriter, err error) {
	kind := apierr.KindOf(err)
	var status int
	switch kind {
	case apierr.KindConflict:
		status = http.StatusConflict
	case apierr.KindValidation, apierr.KindGuardrail:
		status = http.StatusBadRequest
	case apierr.KindNotFound:
		status = http.StatusNotFound
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
