package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai/jsonschema"

	"code-analysis-api/internal/llm"
)

func toolCall(id, name, args string) fakeResponse {
	body, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"role": "assistant",
				"tool_calls": []any{map[string]any{
					"id":       id,
					"type":     "function",
					"function": map[string]any{"name": name, "arguments": args},
				}},
			},
		}},
	})
	return fakeResponse{status: http.StatusOK, body: string(body)}
}

func echoTool(handler func(ctx context.Context, args json.RawMessage) (string, error)) llm.Tool {
	return llm.Tool{
		Name:        "retrieve_files",
		Description: "Fetch file contents",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"file_paths": {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}},
			},
			Required: []string{"file_paths"},
		},
		Handler: handler,
	}
}

func lastToolMessage(t *testing.T, req map[string]any) map[string]any {
	t.Helper()
	msgs := req["messages"].([]any)
	last := msgs[len(msgs)-1].(map[string]any)
	if last["role"] != "tool" {
		t.Fatalf("expected trailing tool message, got %v", last)
	}
	return last
}

func TestRunAgentExecutesToolsThenAnswers(t *testing.T) {
	api, srv := newFakeAPI(t,
		toolCall("call_1", "retrieve_files", `{"file_paths":["models/user.py"]}`),
		content("# Data Model\n- User"),
	)
	c := newTestClient(t, srv, "gpt-4o")

	var gotArgs string
	res := c.RunAgent(context.Background(), llm.AgentRequest{
		System: "analyze",
		Prompt: "files",
		Tools: []llm.Tool{echoTool(func(ctx context.Context, args json.RawMessage) (string, error) {
			gotArgs = string(args)
			return `{"models/user.py":"class User"}`, nil
		})},
	})
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err())
	}
	if res.Output() != "# Data Model\n- User" || res.Steps() != 2 {
		t.Fatalf("unexpected result %q after %d steps", res.Output(), res.Steps())
	}
	if !strings.Contains(gotArgs, "models/user.py") {
		t.Fatalf("tool received %q", gotArgs)
	}

	calls := api.calls()
	if _, ok := calls[0]["tools"]; !ok {
		t.Fatalf("expected tool definitions in request")
	}
	toolMsg := lastToolMessage(t, calls[1])
	if toolMsg["tool_call_id"] != "call_1" || toolMsg["content"] != `{"models/user.py":"class User"}` {
		t.Fatalf("unexpected tool message %v", toolMsg)
	}
}

func TestRunAgentReportsToolErrorsToModel(t *testing.T) {
	api, srv := newFakeAPI(t,
		toolCall("call_1", "retrieve_files", `{"file_paths":["a.go"]}`),
		content("done anyway"),
	)
	c := newTestClient(t, srv, "gpt-4o")

	res := c.RunAgent(context.Background(), llm.AgentRequest{
		Prompt: "files",
		Tools: []llm.Tool{echoTool(func(context.Context, json.RawMessage) (string, error) {
			return "", errors.New("Repo Files API failed: not found")
		})},
	})
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err())
	}
	toolMsg := lastToolMessage(t, api.calls()[1])
	if toolMsg["content"] != `{"error":"Repo Files API failed: not found"}` {
		t.Fatalf("unexpected tool error payload %v", toolMsg["content"])
	}
}

func TestRunAgentUnknownTool(t *testing.T) {
	api, srv := newFakeAPI(t,
		toolCall("call_1", "delete_repo", `{}`),
		content("ok"),
	)
	c := newTestClient(t, srv, "gpt-4o")

	res := c.RunAgent(context.Background(), llm.AgentRequest{Prompt: "files"})
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err())
	}
	if !strings.Contains(lastToolMessage(t, api.calls()[1])["content"].(string), "unknown tool") {
		t.Fatalf("expected unknown tool error")
	}
}

func TestRunAgentStepBudget(t *testing.T) {
	api, srv := newFakeAPI(t, toolCall("call_n", "retrieve_files", `{"file_paths":["a.go"]}`))
	c := newTestClient(t, srv, "gpt-4o")

	res := c.RunAgent(context.Background(), llm.AgentRequest{
		Prompt: "files",
		Tools: []llm.Tool{echoTool(func(context.Context, json.RawMessage) (string, error) {
			return "{}", nil
		})},
	})
	if res.OK() {
		t.Fatalf("expected failure when the step budget is exhausted")
	}
	if res.Output() != "" {
		t.Fatalf("failed result must not carry output")
	}
	if got := len(api.calls()); got != 3 {
		t.Fatalf("expected 3 model calls, got %d", got)
	}
}

func TestRunAgentTransportFailure(t *testing.T) {
	_, srv := newFakeAPI(t, fakeResponse{status: http.StatusUnauthorized, body: `{"error":{"message":"bad key","type":"auth"}}`})
	c := newTestClient(t, srv, "gpt-4o")

	res := c.RunAgent(context.Background(), llm.AgentRequest{Prompt: "files"})
	if res.OK() || !strings.Contains(res.Err().Error(), "bad key") {
		t.Fatalf("expected auth failure, got %v", res.Err())
	}
}

type fileList struct {
	Files []string `json:"files" description:"Repository file paths"`
}

func TestCompleteStructuredDecodes(t *testing.T) {
	api, srv := newFakeAPI(t, content(`{"files":["a.py","a.py","b.py"]}`))
	c := newTestClient(t, srv, "gpt-4o")

	var out fileList
	err := c.CompleteStructured(context.Background(), llm.StructuredRequest{Prompt: "list", SchemaName: "files"}, &out)
	if err != nil {
		t.Fatalf("CompleteStructured: %v", err)
	}
	if len(out.Files) != 3 {
		t.Fatalf("expected duplicates to be kept, got %v", out.Files)
	}
	format := api.calls()[0]["response_format"].(map[string]any)
	if format["type"] != "json_schema" {
		t.Fatalf("unexpected response format %v", format)
	}
}

func TestCompleteStructuredRejectsSchemaViolation(t *testing.T) {
	_, srv := newFakeAPI(t, content(`{"paths":["a.py"]}`))
	c := newTestClient(t, srv, "gpt-4o")

	var out fileList
	if err := c.CompleteStructured(context.Background(), llm.StructuredRequest{Prompt: "list"}, &out); err == nil {
		t.Fatalf("expected schema violation error")
	}
}

func TestCompleteStructuredRequiresPointer(t *testing.T) {
	_, srv := newFakeAPI(t, content(`{}`))
	c := newTestClient(t, srv, "gpt-4o")
	if err := c.CompleteStructured(context.Background(), llm.StructuredRequest{}, fileList{}); err == nil {
		t.Fatalf("expected error for non-pointer target")
	}
}
