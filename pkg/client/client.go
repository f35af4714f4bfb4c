// Package client is the HTTP client cmd/ridgectl uses to talk to the
// controller's Job API Surface.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/ridge/pkg/types"
)

// Client wraps an HTTP connection to a ridge controller.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client targeting addr (e.g. "http://127.0.0.1:8080").
func NewClient(addr string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(addr, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, errResp.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListClusters returns every cluster known to the controller.
func (c *Client) ListClusters(ctx context.Context) ([]*types.Cluster, error) {
	var clusters []*types.Cluster
	err := c.do(ctx, http.MethodGet, "/clusters", nil, &clusters)
	return clusters, err
}

// GetCluster returns one cluster by ID.
func (c *Client) GetCluster(ctx context.Context, id string) (*types.Cluster, error) {
	var cluster types.Cluster
	err := c.do(ctx, http.MethodGet, "/clusters/"+id, nil, &cluster)
	return &cluster, err
}

// CreateCluster registers a fresh or already-running cluster, depending on
// registered.
func (c *Client) CreateCluster(ctx context.Context, cluster *types.Cluster, registered bool) (*types.Cluster, error) {
	path := "/clusters/new"
	if registered {
		path = "/clusters/register"
	}
	var created types.Cluster
	err := c.do(ctx, http.MethodPost, path, cluster, &created)
	return &created, err
}

// DeleteCluster removes a cluster and its nodes and jobs.
func (c *Client) DeleteCluster(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/clusters/"+id, nil, nil)
}

// Install starts an install job for a fresh cluster.
func (c *Client) Install(ctx context.Context, clusterID string) (*types.Job, error) {
	var job types.Job
	err := c.do(ctx, http.MethodPost, "/jobs/install/"+clusterID, nil, &job)
	return &job, err
}

// Uninstall starts an uninstall job, confirmed by the cluster's own name.
func (c *Client) Uninstall(ctx context.Context, clusterID, confirmationText string) (*types.Job, error) {
	path := "/jobs/uninstall/" + clusterID + "?confirmation=" + url.QueryEscape(confirmationText)
	var job types.Job
	err := c.do(ctx, http.MethodPost, path, nil, &job)
	return &job, err
}

// AddNodes scales a cluster up with the given node specs. When the specs
// mix control-plane and worker roles, only the control-plane job runs and
// the result's SplitRolesPending flags that the worker specs must be
// resubmitted in a follow-up call.
func (c *Client) AddNodes(ctx context.Context, clusterID string, nodes []types.NewNodeSpec) (*types.AddNodesResult, error) {
	body := map[string]interface{}{"nodes": nodes}
	var result types.AddNodesResult
	err := c.do(ctx, http.MethodPost, "/clusters/"+clusterID+"/scale/add", body, &result)
	return &result, err
}

// RemoveNodes scales a cluster down, requiring confirm when a control-plane
// node is included in refs.
func (c *Client) RemoveNodes(ctx context.Context, clusterID string, refs []types.NodeRef, confirm bool) (*types.Job, error) {
	path := "/clusters/" + clusterID + "/scale/remove?confirm_master_removal=" + strconv.FormatBool(confirm)
	body := map[string]interface{}{"nodes": refs}
	var job types.Job
	err := c.do(ctx, http.MethodPost, path, body, &job)
	return &job, err
}

// PreflightCheck runs a read-only preflight check against the cluster.
func (c *Client) PreflightCheck(ctx context.Context, clusterID, targetVersion string) (*types.Job, error) {
	path := "/clusters/" + clusterID + "/preflight-check"
	if targetVersion != "" {
		path += "?target_version=" + url.QueryEscape(targetVersion)
	}
	var job types.Job
	err := c.do(ctx, http.MethodPost, path, nil, &job)
	return &job, err
}

// UpgradeCheck runs a read-only upgrade-readiness check against the
// cluster's intended target version.
func (c *Client) UpgradeCheck(ctx context.Context, clusterID, targetVersion string) (*types.Job, error) {
	path := "/clusters/" + clusterID + "/upgrade-check"
	if targetVersion != "" {
		path += "?target_version=" + url.QueryEscape(targetVersion)
	}
	var job types.Job
	err := c.do(ctx, http.MethodPost, path, nil, &job)
	return &job, err
}

// ListJobs returns every job, optionally filtered to one cluster.
func (c *Client) ListJobs(ctx context.Context, clusterID string) ([]*types.Job, error) {
	path := "/jobs"
	if clusterID != "" {
		path += "?cluster_id=" + url.QueryEscape(clusterID)
	}
	var jobs []*types.Job
	err := c.do(ctx, http.MethodGet, path, nil, &jobs)
	return jobs, err
}

// GetJob returns one job by ID.
func (c *Client) GetJob(ctx context.Context, id string) (*types.Job, error) {
	var job types.Job
	err := c.do(ctx, http.MethodGet, "/jobs/"+id, nil, &job)
	return &job, err
}

// Cancel requests cooperative termination of a running job.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, "/jobs/"+jobID+"/terminate", nil, nil)
}

// Stream opens the job's output stream and invokes onLine for each chunk
// of text received, until the server closes the stream or ctx is
// cancelled.
func (c *Client) Stream(ctx context.Context, jobID string, onLine func(string)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID+"/stream", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("stream request: unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var chunk types.OutputChunk
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
			continue
		}
		onLine(chunk.Text)
	}
	return scanner.Err()
}
