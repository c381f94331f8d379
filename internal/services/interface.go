// Package services contains clients for the external capabilities the
// pipeline consumes: the generative text model and the embedding sidecar.
package services

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrUnparsableStructuredOutput is returned when a structured generation
// call produced text that could not be parsed as JSON, even after the
// bounded salvage attempt.
var ErrUnparsableStructuredOutput = errors.New("structured output is not valid JSON")

// CompletionRequest describes a single generative call.
type CompletionRequest struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// LLMClient is the generative text capability consumed by the pipeline.
type LLMClient interface {
	// Complete generates free-form text for a prompt.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// CompleteStructured generates text that must parse as a JSON object.
	CompleteStructured(ctx context.Context, req CompletionRequest) (json.RawMessage, error)
}

// EmbeddingClient produces vector embeddings for text.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
