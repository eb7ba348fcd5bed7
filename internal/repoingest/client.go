package repoingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"code-analysis-api/internal/shared/telemetry"
)

const (
	ingestPath     = "/api/v1/repo-ingest"
	repoFilesPath  = "/api/v1/repo-files"
	defaultTimeout = 300 * time.Second
	maxErrorBody   = 4096
)

// Ingestion is the ingest service's digest of a repository.
type Ingestion struct {
	IngestedRepository string   `json:"ingestedRepository"`
	Technologies       []string `json:"technologies"`
}

// Client talks to the repository ingest service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client. An empty baseURL yields a client whose calls
// fail with ErrNotConfigured.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Ingest asks the service to ingest the repository and returns its digest.
func (c *Client) Ingest(ctx context.Context, repositoryURL string) (Ingestion, error) {
	if !c.Configured() {
		return Ingestion{}, ErrNotConfigured
	}
	body, status, err := c.post(ctx, ingestPath, map[string]any{"repositoryUrl": repositoryURL}, "application/json")
	if err != nil {
		return Ingestion{}, err
	}
	if status != http.StatusOK {
		telemetry.Error("repoingest.ingest_failed", map[string]any{
			"repository_url": repositoryURL,
			"status":         status,
			"body":           truncate(body),
		})
		return Ingestion{}, fmt.Errorf("Repository Ingest API failed: %s", truncate(body))
	}

	var out Ingestion
	if err := json.Unmarshal(body, &out); err != nil {
		return Ingestion{}, fmt.Errorf("decode ingest response: %w", err)
	}
	if out.Technologies == nil {
		out.Technologies = []string{}
	}
	telemetry.Info("repoingest.ingested", map[string]any{
		"repository_url": repositoryURL,
		"digest_chars":   len(out.IngestedRepository),
		"technologies":   len(out.Technologies),
	})
	return out, nil
}

// RetrieveFiles fetches the contents of the given paths, keyed by path.
func (c *Client) RetrieveFiles(ctx context.Context, repositoryURL string, paths []string) (map[string]string, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	telemetry.Info("repoingest.retrieve_files", map[string]any{
		"repository_url": repositoryURL,
		"files":          len(paths),
	})
	body, status, err := c.post(ctx, repoFilesPath, map[string]any{
		"repositoryUrl": repositoryURL,
		"filePaths":     paths,
	}, "application/xml")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		telemetry.Error("repoingest.repo_files_failed", map[string]any{
			"repository_url": repositoryURL,
			"status":         status,
			"body":           truncate(body),
		})
		return nil, fmt.Errorf("Repo Files API failed: %s", truncate(body))
	}

	files, err := ParseFiles(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse repo files response: %w", err)
	}
	return files, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, accept string) ([]byte, int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	if id := telemetry.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
