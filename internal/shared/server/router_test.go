package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"code-analysis-api/internal/codeanalysis"
	"code-analysis-api/internal/services/health"
	"code-analysis-api/internal/shared/config"
)

func testRouter(cfg config.Config) http.Handler {
	svc := &codeanalysis.Service{Repo: codeanalysis.NewMemoryRepo()}
	return NewRouter(RouterDeps{
		Config:          cfg,
		AnalysisHandler: codeanalysis.NewHandler(svc),
		Health:          health.NewService(nil, false),
	})
}

func TestRootReportsStatus(t *testing.T) {
	r := testRouter(config.Config{})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error {
	return errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func TestRootStaysUpWhenDatabaseIsDown(t *testing.T) {
	r := NewRouter(RouterDeps{
		Config:          config.Config{},
		AnalysisHandler: codeanalysis.NewHandler(&codeanalysis.Service{Repo: codeanalysis.NewMemoryRepo()}),
		Health:          health.NewService(failingPinger{}, false),
	})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "10.0.0.5") {
		t.Fatalf("ping error leaked: %s", resp.Body.String())
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != health.StatusDegraded || body.Checks["database"] != "unavailable" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestMetricsRoute(t *testing.T) {
	r := testRouter(config.Config{})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "code_analysis_") {
		t.Fatalf("expected code_analysis metrics")
	}
}

func TestCreateWithoutPipelineIs503(t *testing.T) {
	r := testRouter(config.Config{})
	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/code-analysis", strings.NewReader(`{"repository_url":"https://github.com/acme/shop"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPollingUsesItsOwnBucket(t *testing.T) {
	r := testRouter(config.Config{
		RateLimitRPS:       0.001,
		RateLimitBurst:     1,
		PollRateLimitRPS:   0.001,
		PollRateLimitBurst: 2,
	})
	path := "/api/v1/code-analysis/6f1c2a52-6d3e-4f55-9b3a-0f4f3a9b8d21"

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusNotFound {
			t.Fatalf("poll %d: expected 404, got %d", i, resp.Code)
		}
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	root := httptest.NewRecorder()
	r.ServeHTTP(root, httptest.NewRequest(http.MethodGet, "/", nil))
	if root.Code != http.StatusOK {
		t.Fatalf("root should not be limited, got %d", root.Code)
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9090": ":9090", ":7070": ":7070"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
