package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeAPI struct {
	mu        sync.Mutex
	requests  []map[string]any
	responses []fakeResponse
}

type fakeResponse struct {
	status int
	body   string
}

func newFakeAPI(t *testing.T, responses ...fakeResponse) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{responses: responses}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		api.mu.Lock()
		idx := len(api.requests)
		api.requests = append(api.requests, payload)
		resp := api.responses[len(api.responses)-1]
		if idx < len(api.responses) {
			resp = api.responses[idx]
		}
		api.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	}))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) calls() []map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]map[string]any(nil), a.requests...)
}

func content(text string) fakeResponse {
	body, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": text},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return fakeResponse{status: http.StatusOK, body: string(body)}
}

func newTestClient(t *testing.T, srv *httptest.Server, model string) *Client {
	t.Helper()
	c, err := NewClient(Options{APIKey: "test-key", Model: model, BaseURL: srv.URL, Timeout: 5 * time.Second, MaxSteps: 3})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.retryDelay = time.Millisecond
	return c
}

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient(Options{Model: "gpt-4o"}); err == nil {
		t.Fatalf("expected error without api key")
	}
	if _, err := NewClient(Options{APIKey: "k"}); err == nil {
		t.Fatalf("expected error without model")
	}
	if res := Init(Options{APIKey: "k"}); res.OK() {
		t.Fatalf("expected failed init")
	}
	if res := Init(Options{APIKey: "k", Model: "gpt-4o"}); !res.OK() || res.Provider().Model() != "gpt-4o" {
		t.Fatalf("expected ready init, got %+v", res)
	}
}

func TestCompleteSendsSystemAndUser(t *testing.T) {
	api, srv := newFakeAPI(t, content("# PRD"))
	c := newTestClient(t, srv, "gpt-4o")

	out, err := c.Complete(context.Background(), "be terse", "write it")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "# PRD" {
		t.Fatalf("unexpected output %q", out)
	}
	req := api.calls()[0]
	if req["model"] != "gpt-4o" {
		t.Fatalf("unexpected model %v", req["model"])
	}
	msgs := req["messages"].([]any)
	if len(msgs) != 2 || msgs[0].(map[string]any)["role"] != "system" || msgs[1].(map[string]any)["content"] != "write it" {
		t.Fatalf("unexpected messages %v", msgs)
	}
	if _, ok := req["max_tokens"]; !ok {
		t.Fatalf("expected max_tokens for non-reasoning model")
	}
}

func TestCompleteUsesCompletionTokensForReasoningModels(t *testing.T) {
	api, srv := newFakeAPI(t, content("ok"))
	c := newTestClient(t, srv, "gpt-5-mini")

	if _, err := c.Complete(context.Background(), "", "hi"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	req := api.calls()[0]
	if _, ok := req["max_tokens"]; ok {
		t.Fatalf("expected max_tokens to be omitted")
	}
	if _, ok := req["max_completion_tokens"]; !ok {
		t.Fatalf("expected max_completion_tokens")
	}
}

func TestCompleteRetriesOnceOnServerError(t *testing.T) {
	api, srv := newFakeAPI(t,
		fakeResponse{status: http.StatusBadGateway, body: `{"error":{"message":"upstream","type":"server_error"}}`},
		content("recovered"),
	)
	c := newTestClient(t, srv, "gpt-4o")

	out, err := c.Complete(context.Background(), "", "hi")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "recovered" || len(api.calls()) != 2 {
		t.Fatalf("expected recovery on second call, got %q after %d calls", out, len(api.calls()))
	}
}

func TestCompleteNoInfiniteRetry(t *testing.T) {
	api, srv := newFakeAPI(t, fakeResponse{status: http.StatusServiceUnavailable, body: `{"error":{"message":"overloaded","type":"server_error"}}`})
	c := newTestClient(t, srv, "gpt-4o")

	if _, err := c.Complete(context.Background(), "", "hi"); err == nil {
		t.Fatalf("expected error")
	}
	if got := len(api.calls()); got != 2 {
		t.Fatalf("expected 2 requests (one retry), got %d", got)
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	api, srv := newFakeAPI(t, fakeResponse{status: http.StatusBadRequest, body: `{"error":{"message":"bad request","type":"invalid_request_error"}}`})
	c := newTestClient(t, srv, "gpt-4o")

	if _, err := c.Complete(context.Background(), "", "hi"); err == nil {
		t.Fatalf("expected error")
	}
	if got := len(api.calls()); got != 1 {
		t.Fatalf("expected a single request, got %d", got)
	}
}

func TestIsReasoningModel(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "uppercase", model: " GPT-5o ", want: true},
		{name: "o-series", model: "o3-mini", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isReasoningModel(tt.model); got != tt.want {
				t.Fatalf("isReasoningModel(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}
