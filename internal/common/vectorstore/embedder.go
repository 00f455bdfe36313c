package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	httpclient "parts-agent/internal/common/http"
)

// Embedder turns text into vectors for the semantic index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// HTTPEmbedder calls an embeddings service over HTTP.
type HTTPEmbedder struct {
	baseURL    string
	client     *httpclient.Client
	maxRetries int
}

func NewHTTPEmbedder(baseURL string, timeout time.Duration) *HTTPEmbedder {
	return &HTTPEmbedder{
		baseURL:    baseURL,
		client:     httpclient.NewClient(timeout),
		maxRetries: 2,
	}
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embeddings service returned no vectors")
	}
	return vectors[0], nil
}

func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	payload := map[string]interface{}{"texts": texts}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, lastErr = e.client.PostJSON(ctx, e.baseURL+"/embed", payload)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", lastErr)
	}
	defer resp.Body.Close()

	var apiResponse struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(apiResponse.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embeddings count mismatch: got %d, want %d", len(apiResponse.Embeddings), len(texts))
	}
	return apiResponse.Embeddings, nil
}
