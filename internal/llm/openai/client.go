package openai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"code-analysis-api/internal/llm"
	"code-analysis-api/internal/shared/metrics"
	"code-analysis-api/internal/shared/telemetry"
)

const (
	defaultTimeout    = 300 * time.Second
	defaultMaxTokens  = 16000
	defaultMaxSteps   = 25
	defaultRetryDelay = time.Second
)

// Options configures the client.
type Options struct {
	APIKey    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int
	MaxSteps  int
}

// Client implements llm.Provider on an OpenAI-compatible chat completions API.
type Client struct {
	api        *goopenai.Client
	model      string
	maxTokens  int
	maxSteps   int
	retryDelay time.Duration
}

// NewClient constructs a new client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cfg := goopenai.DefaultConfig(opts.APIKey)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}
	cfg.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	c := &Client{
		api:        goopenai.NewClientWithConfig(cfg),
		model:      strings.TrimSpace(opts.Model),
		maxTokens:  opts.MaxTokens,
		maxSteps:   opts.MaxSteps,
		retryDelay: defaultRetryDelay,
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.maxSteps <= 0 {
		c.maxSteps = defaultMaxSteps
	}
	return c, nil
}

// Init builds a client and reports the outcome as an llm.Init.
func Init(opts Options) llm.Init {
	c, err := NewClient(opts)
	if err != nil {
		telemetry.Error("llm.init_failed", map[string]any{"model": opts.Model, "error": err})
		return llm.Failed(err)
	}
	telemetry.Info("llm.init", map[string]any{"model": c.model, "base_url": opts.BaseURL})
	return llm.Ready(c)
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete returns the model's answer to a single system and user message.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := c.newRequest(messages(system, prompt))
	resp, err := c.createChat(ctx, "complete", req)
	if err != nil {
		return "", err
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("model response empty content")
	}
	return content, nil
}

func (c *Client) newRequest(msgs []goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	}
	if isReasoningModel(c.model) {
		req.MaxCompletionTokens = c.maxTokens
	} else {
		req.MaxTokens = c.maxTokens
	}
	return req
}

// createChat sends one chat completion, retrying once on transient failures.
func (c *Client) createChat(ctx context.Context, kind string, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	ctx, span := otel.Tracer("code-analysis-api/llm").Start(ctx, "llm."+kind)
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model), attribute.Int("llm.messages", len(req.Messages)))

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil && isTransient(ctx, err) {
		telemetry.Warn("llm.retry", map[string]any{"model": c.model, "kind": kind, "error": err})
		select {
		case <-ctx.Done():
		case <-time.After(c.retryDelay):
			resp, err = c.api.CreateChatCompletion(ctx, req)
		}
	}
	if err == nil && len(resp.Choices) == 0 {
		err = fmt.Errorf("model response missing choices")
	}
	metrics.IncLLMRequest(kind, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return goopenai.ChatCompletionResponse{}, fmt.Errorf("chat completion: %w", err)
	}
	logUsage(kind, c.model, req, resp.Usage)
	return resp, nil
}

// isTransient reports whether a failed request is worth one more attempt.
func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded)
}

func logUsage(kind, model string, req goopenai.ChatCompletionRequest, usage goopenai.Usage) {
	metrics.AddLLMTokens(usage.PromptTokens, usage.CompletionTokens)
	telemetry.Info("llm.response", map[string]any{
		"kind":              kind,
		"model":             model,
		"prompt_hash":       hashPromptString(promptStringFromMessages(req.Messages)),
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	})
}

// isReasoningModel reports models that take max_completion_tokens instead of max_tokens.
func isReasoningModel(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	for _, prefix := range []string{"gpt-5", "o1", "o3", "o4"} {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

func messages(system, prompt string) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(system) != "" {
		out = append(out, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: system})
	}
	return append(out, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: prompt})
}

func promptStringFromMessages(msgs []goopenai.ChatCompletionMessage) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

func hashPromptString(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

var _ llm.Provider = (*Client)(nil)
