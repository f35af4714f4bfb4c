package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/ridge/pkg/types"
)

// fakeStore implements storage.Store just enough for handler tests; every
// method beyond ListClusters fails loudly if exercised by a test that
// didn't expect it.
type fakeStore struct {
	clusters    []*types.Cluster
	listErr     error
}

func (f *fakeStore) CreateCluster(*types.Cluster) error                  { return errors.New("not implemented") }
func (f *fakeStore) GetCluster(string) (*types.Cluster, error)            { return nil, errors.New("not implemented") }
func (f *fakeStore) ListClusters() ([]*types.Cluster, error)              { return f.clusters, f.listErr }
func (f *fakeStore) UpdateCluster(*types.Cluster) error                  { return errors.New("not implemented") }
func (f *fakeStore) DeleteCluster(string) error                          { return errors.New("not implemented") }
func (f *fakeStore) AcquireLock(string, string, string) error            { return errors.New("not implemented") }
func (f *fakeStore) ReleaseLock(string) error                            { return errors.New("not implemented") }
func (f *fakeStore) CreateNode(*types.Node) error                        { return errors.New("not implemented") }
func (f *fakeStore) GetNode(string) (*types.Node, error)                 { return nil, errors.New("not implemented") }
func (f *fakeStore) ListNodesByCluster(string) ([]*types.Node, error)    { return nil, errors.New("not implemented") }
func (f *fakeStore) UpdateNode(*types.Node) error                        { return errors.New("not implemented") }
func (f *fakeStore) DeleteNode(string) error                             { return errors.New("not implemented") }
func (f *fakeStore) CreateJob(*types.Job) error                          { return errors.New("not implemented") }
func (f *fakeStore) GetJob(string) (*types.Job, error)                   { return nil, errors.New("not implemented") }
func (f *fakeStore) ListJobsByCluster(string) ([]*types.Job, error)      { return nil, errors.New("not implemented") }
func (f *fakeStore) UpdateJob(*types.Job) error                          { return errors.New("not implemented") }
func (f *fakeStore) AppendJobOutput(string, types.OutputChunk) error     { return errors.New("not implemented") }
func (f *fakeStore) CreateCredential(*types.Credential) error            { return errors.New("not implemented") }
func (f *fakeStore) GetCredential(string) (*types.Credential, error)     { return nil, errors.New("not implemented") }
func (f *fakeStore) ListCredentials() ([]*types.Credential, error)       { return nil, errors.New("not implemented") }
func (f *fakeStore) DeleteCredential(string) error                       { return errors.New("not implemented") }
func (f *fakeStore) Close() error                                        { return nil }

func newTestServer(store *fakeStore) *Server {
	return NewServer(nil, store)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(&fakeStore{})

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{name: "GET request succeeds", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "POST request fails", method: http.MethodPost, expectedStatus: http.StatusMethodNotAllowed},
		{name: "PUT request fails", method: http.MethodPut, expectedStatus: http.StatusMethodNotAllowed},
		{name: "DELETE request fails", method: http.MethodDelete, expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			s.health(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				var response HealthResponse
				err := json.NewDecoder(w.Body).Decode(&response)
				assert.NoError(t, err)
				assert.Equal(t, "healthy", response.Status)
				assert.NotZero(t, response.Timestamp)
			}
		})
	}
}

func TestReadyHandler_StorageOK(t *testing.T) {
	s := newTestServer(&fakeStore{clusters: []*types.Cluster{{ID: "c1"}}})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	s.ready(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response ReadyResponse
	err := json.NewDecoder(w.Body).Decode(&response)
	assert.NoError(t, err)
	assert.Equal(t, "ready", response.Status)
	assert.Equal(t, "ok", response.Checks["storage"])
}

func TestReadyHandler_StorageUnreachable(t *testing.T) {
	s := newTestServer(&fakeStore{listErr: errors.New("db closed")})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	s.ready(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response ReadyResponse
	err := json.NewDecoder(w.Body).Decode(&response)
	assert.NoError(t, err)
	assert.Equal(t, "not ready", response.Status)
	assert.NotEmpty(t, response.Message)
}

func TestReadyHandler_MethodValidation(t *testing.T) {
	s := newTestServer(&fakeStore{})

	req := httptest.NewRequest(http.MethodPost, "/ready", nil)
	w := httptest.NewRecorder()

	s.ready(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServerRoutes(t *testing.T) {
	s := newTestServer(&fakeStore{})

	tests := []struct {
		path           string
		expectedStatus int
	}{
		{path: "/health", expectedStatus: http.StatusOK},
		{path: "/ready", expectedStatus: http.StatusOK},
		{path: "/metrics", expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			s.Handler().ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, "path: %s", tt.path)
		})
	}
}
