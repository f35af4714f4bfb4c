package collaborators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/ridge/pkg/types"
)

// Analyzer turns raw preflight/upgrade-check output into a structured
// readiness verdict. When no analyzer endpoint is configured, the
// controller wires NoopAnalyzer, whose summary carries only a warning.
type Analyzer interface {
	Summarize(ctx context.Context, checkOutput string, targetVersion string) (*types.AnalyzerSummary, error)
}

// httpAnalyzer calls an HTTP inference endpoint that accepts a prompt and
// returns a structured completion.
type httpAnalyzer struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewHTTPAnalyzer returns an Analyzer backed by an HTTP endpoint.
func NewHTTPAnalyzer(endpoint, model string) Analyzer {
	return &httpAnalyzer{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type analyzeRequest struct {
	Model         string `json:"model"`
	CheckOutput   string `json:"check_output"`
	TargetVersion string `json:"target_version"`
}

type analyzeResponse struct {
	Verdict     types.Verdict `json:"verdict"`
	Blockers    []string      `json:"blockers"`
	Risks       []string      `json:"risks"`
	ActionPlan  []string      `json:"action_plan"`
	TokenCount  int           `json:"token_count"`
}

// Summarize posts the raw check output to the configured endpoint and
// parses the structured verdict. An unreachable endpoint, a non-200 status
// or an unparseable response is reported as a Warning on the returned
// summary with a nil error; only a failure to build the request is
// returned as an error.
func (a *httpAnalyzer) Summarize(ctx context.Context, checkOutput, targetVersion string) (*types.AnalyzerSummary, error) {
	reqBody, err := json.Marshal(analyzeRequest{
		Model:         a.model,
		CheckOutput:   checkOutput,
		TargetVersion: targetVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analyzer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build analyzer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return &types.AnalyzerSummary{
			ModelID: a.model,
			Warning: fmt.Sprintf("analyzer unreachable: %v", err),
		}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &types.AnalyzerSummary{
			ModelID: a.model,
			Warning: fmt.Sprintf("analyzer returned status %d", resp.StatusCode),
		}, nil
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return &types.AnalyzerSummary{
			ModelID: a.model,
			Warning: fmt.Sprintf("analyzer returned unparseable response: %v", err),
		}, nil
	}

	return &types.AnalyzerSummary{
		Verdict:    parsed.Verdict,
		Blockers:   parsed.Blockers,
		Risks:      parsed.Risks,
		ActionPlan: parsed.ActionPlan,
		ModelID:    a.model,
		TokenCount: parsed.TokenCount,
	}, nil
}

// NoopAnalyzer is used when no analyzer endpoint is configured
// (config.AnalyzerConfigured() == false). Summarize always returns a
// summary carrying only a warning, never a hard error, so callers can
// treat "no analyzer" and "analyzer unreachable" identically.
type NoopAnalyzer struct{}

func (NoopAnalyzer) Summarize(ctx context.Context, checkOutput, targetVersion string) (*types.AnalyzerSummary, error) {
	return &types.AnalyzerSummary{Warning: "no analyzer configured"}, nil
}
