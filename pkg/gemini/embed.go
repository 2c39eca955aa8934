// Package gemini provides HTTP clients for the Gemini API: text embedding
// for the vector store and text generation for answers and keyword
// extraction. Clients are constructed once and injected; nothing here
// reads ambient credentials.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultBaseURL is the Gemini REST endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultEmbedModel produces 768-dimensional vectors.
	DefaultEmbedModel = "embedding-001"
	// EmbedDimension is the vector size of DefaultEmbedModel. Every vector
	// in a collection must come from the same model, so the dimension is
	// fixed per client.
	EmbedDimension = 768
)

// EmbedClient converts text into fixed-dimension vectors via the Gemini
// embedContent endpoint.
type EmbedClient struct {
	baseURL string
	apiKey  string
	model   string
	dims    int
	client  *http.Client
}

// NewEmbedClient creates a Gemini embedding client.
func NewEmbedClient(baseURL, apiKey, model string) *EmbedClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultEmbedModel
	}
	return &EmbedClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		dims:    EmbedDimension,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Dimension returns the vector length this client produces.
func (c *EmbedClient) Dimension() int { return c.dims }

type embedRequest struct {
	Model    string       `json:"model"`
	Content  embedContent `json:"content"`
	TaskType string       `json:"taskType,omitempty"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding vector for text.
func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, _ := json.Marshal(embedRequest{
		Model:    "models/" + c.model,
		Content:  embedContent{Parts: []embedPart{{Text: text}}},
		TaskType: "RETRIEVAL_DOCUMENT",
	})

	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini embed: status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("gemini embed decode: %w", err)
	}
	if len(result.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini embed: empty embedding")
	}

	out := make([]float32, len(result.Embedding.Values))
	for i, v := range result.Embedding.Values {
		out[i] = float32(v)
	}
	return out, nil
}
