package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPEmbeddingClient is an HTTP implementation of the EmbeddingClient
// interface, backed by the embedding sidecar.
type HTTPEmbeddingClient struct {
	url    string
	client *http.Client
}

// NewHTTPEmbeddingClient creates a new HTTPEmbeddingClient.
func NewHTTPEmbeddingClient(url string) *HTTPEmbeddingClient {
	return &HTTPEmbeddingClient{url: url, client: http.DefaultClient}
}

// Embed returns the embedding vector for a given text.
func (c *HTTPEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	requestBody, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/embedding", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get embedding: status code %d", resp.StatusCode)
	}

	var embedding []float32
	if err := json.NewDecoder(resp.Body).Decode(&embedding); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	return embedding, nil
}
