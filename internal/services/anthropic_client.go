package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements LLMClient against the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicClient creates a new AnthropicClient for the given model.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete generates free-form text for a prompt.
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}

// CompleteStructured generates output that must parse as a JSON object.
// The prompt is reinforced with a JSON-only instruction; the raw response
// is stripped of markdown fences and, if still unparsable, scanned once
// for an embedded object before ErrUnparsableStructuredOutput is returned.
func (c *AnthropicClient) CompleteStructured(ctx context.Context, req CompletionRequest) (json.RawMessage, error) {
	structured := req
	structured.Prompt = req.Prompt + "\n\nRespond with valid JSON only."
	if structured.Temperature == 0 {
		structured.Temperature = 0.3
	}

	response, err := c.Complete(ctx, structured)
	if err != nil {
		return nil, err
	}

	return ParseStructuredOutput(response)
}

var embeddedObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// ParseStructuredOutput extracts a JSON object from a model response,
// tolerating markdown code fences and surrounding prose.
func ParseStructuredOutput(response string) (json.RawMessage, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if json.Valid([]byte(cleaned)) {
		return json.RawMessage(cleaned), nil
	}

	// One bounded salvage pass: scan for an embedded object.
	if match := embeddedObjectRe.FindString(cleaned); match != "" && json.Valid([]byte(match)) {
		return json.RawMessage(match), nil
	}

	return nil, fmt.Errorf("%w: %.120s", ErrUnparsableStructuredOutput, response)
}
