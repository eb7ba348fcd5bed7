package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// ErrNotInitialized is returned when the model provider failed to start.
var ErrNotInitialized = errors.New("llm provider not initialized")

// Completer produces a single free-form completion.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// StructuredRequest describes a completion whose output must match the JSON
// schema of the destination value.
type StructuredRequest struct {
	System     string
	Prompt     string
	SchemaName string
}

// StructuredCompleter decodes a schema-constrained completion into out, which
// must be a pointer to a struct.
type StructuredCompleter interface {
	CompleteStructured(ctx context.Context, req StructuredRequest, out any) error
}

// Tool is a function the agent may call. Handler errors are reported back to
// the model rather than aborting the run.
type Tool struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
	Handler     func(ctx context.Context, args json.RawMessage) (string, error)
}

// AgentRequest is the input of one agent run.
type AgentRequest struct {
	System string
	Prompt string
	Tools  []Tool
}

// Agent runs a tool-calling loop until the model produces a final answer.
type Agent interface {
	RunAgent(ctx context.Context, req AgentRequest) AgentResult
}

// Provider is a model backend offering every capability the pipeline uses.
type Provider interface {
	Completer
	StructuredCompleter
	Agent
	Model() string
}

// AgentResult is either a final report or a failure. Failures never carry a
// partial report.
type AgentResult struct {
	output string
	err    error
	steps  int
}

// AgentSucceeded builds a successful result.
func AgentSucceeded(output string, steps int) AgentResult {
	return AgentResult{output: output, steps: steps}
}

// AgentFailed builds a failed result. A nil err is replaced with a generic one.
func AgentFailed(err error, steps int) AgentResult {
	if err == nil {
		err = errors.New("agent failed")
	}
	return AgentResult{err: err, steps: steps}
}

// OK reports whether the run produced a final answer.
func (r AgentResult) OK() bool { return r.err == nil }

// Output returns the final answer, empty on failure.
func (r AgentResult) Output() string { return r.output }

// Err returns the failure cause, nil on success.
func (r AgentResult) Err() error { return r.err }

// Steps returns how many model turns the run used.
func (r AgentResult) Steps() int { return r.steps }

// Init is the outcome of provider initialization: ready with a provider, or
// failed with the cause.
type Init struct {
	provider Provider
	err      error
}

// Ready wraps an initialized provider.
func Ready(p Provider) Init {
	if p == nil {
		return Failed(nil)
	}
	return Init{provider: p}
}

// Failed records an initialization failure.
func Failed(err error) Init {
	if err == nil {
		err = ErrNotInitialized
	}
	return Init{err: err}
}

// OK reports whether a provider is available.
func (i Init) OK() bool { return i.provider != nil }

// Provider returns the provider, nil when initialization failed.
func (i Init) Provider() Provider { return i.provider }

// Err returns the initialization failure, nil when ready.
func (i Init) Err() error {
	if i.OK() {
		return nil
	}
	if i.err == nil {
		return ErrNotInitialized
	}
	return i.err
}

// ToolError encodes err as the JSON object handed back to the model.
func ToolError(err error) string {
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(payload)
}
