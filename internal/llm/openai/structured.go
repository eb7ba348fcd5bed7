package openai

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"code-analysis-api/internal/llm"
)

// CompleteStructured asks for a strict JSON-schema response generated from
// the type of out and validates the answer against that schema before
// decoding it.
func (c *Client) CompleteStructured(ctx context.Context, req llm.StructuredRequest, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("structured output target must be a non-nil pointer")
	}
	schema, err := jsonschema.GenerateSchemaForType(rv.Elem().Interface())
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	name := req.SchemaName
	if name == "" {
		name = "output"
	}

	chat := c.newRequest(messages(req.System, req.Prompt))
	chat.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
		Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
			Name:   name,
			Schema: schema,
			Strict: true,
		},
	}
	resp, err := c.createChat(ctx, "structured", chat)
	if err != nil {
		return err
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return fmt.Errorf("model response empty content")
	}
	if err := jsonschema.VerifySchemaAndUnmarshal(*schema, []byte(content), out); err != nil {
		return fmt.Errorf("response does not match schema %s: %w", name, err)
	}
	return nil
}
