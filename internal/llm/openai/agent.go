package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"code-analysis-api/internal/llm"
	"code-analysis-api/internal/shared/telemetry"
)

// RunAgent drives a tool-calling conversation until the model answers
// without requesting tools or the step budget is spent.
func (c *Client) RunAgent(ctx context.Context, req llm.AgentRequest) llm.AgentResult {
	tools := make(map[string]llm.Tool, len(req.Tools))
	defs := make([]goopenai.Tool, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools[t.Name] = t
		defs = append(defs, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	history := messages(req.System, req.Prompt)
	for step := 1; step <= c.maxSteps; step++ {
		chat := c.newRequest(history)
		if len(defs) > 0 {
			chat.Tools = defs
		}
		resp, err := c.createChat(ctx, "agent", chat)
		if err != nil {
			return llm.AgentFailed(err, step)
		}
		msg := resp.Choices[0].Message
		history = append(history, msg)

		if len(msg.ToolCalls) == 0 {
			content := strings.TrimSpace(msg.Content)
			if content == "" {
				return llm.AgentFailed(fmt.Errorf("agent returned an empty answer"), step)
			}
			telemetry.Info("llm.agent_done", map[string]any{
				"model":        c.model,
				"steps":        step,
				"result_chars": len(content),
			})
			return llm.AgentSucceeded(content, step)
		}

		for _, call := range msg.ToolCalls {
			history = append(history, goopenai.ChatCompletionMessage{
				Role:       goopenai.ChatMessageRoleTool,
				Content:    c.callTool(ctx, tools, call),
				ToolCallID: call.ID,
			})
		}
	}
	return llm.AgentFailed(fmt.Errorf("agent exceeded %d steps without a final answer", c.maxSteps), c.maxSteps)
}

func (c *Client) callTool(ctx context.Context, tools map[string]llm.Tool, call goopenai.ToolCall) string {
	tool, ok := tools[call.Function.Name]
	if !ok || tool.Handler == nil {
		return llm.ToolError(fmt.Errorf("unknown tool %q", call.Function.Name))
	}
	telemetry.Debug("llm.tool_call", map[string]any{
		"tool":       call.Function.Name,
		"call_id":    call.ID,
		"args_bytes": len(call.Function.Arguments),
	})
	out, err := tool.Handler(ctx, json.RawMessage(call.Function.Arguments))
	if err != nil {
		telemetry.Warn("llm.tool_error", map[string]any{"tool": call.Function.Name, "error": err})
		return llm.ToolError(err)
	}
	return out
}
