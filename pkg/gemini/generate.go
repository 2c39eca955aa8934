package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultTextModel is the generation model used for answers and keywords.
const DefaultTextModel = "gemini-1.5-flash"

// TextClient calls the Gemini generateContent endpoint.
type TextClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewTextClient creates a Gemini text generation client.
func NewTextClient(baseURL, apiKey, model string) *TextClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultTextModel
	}
	return &TextClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client: &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type generateRequest struct {
	Contents []genContent `json:"contents"`
}

type genContent struct {
	Parts []genPart `json:"parts"`
}

type genPart struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []genPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate returns the model's text reply to prompt.
func (c *TextClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(generateRequest{
		Contents: []genContent{{Parts: []genPart{{Text: prompt}}}},
	})

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini generate: status %d", resp.StatusCode)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("gemini generate decode: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini generate: no candidates")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

const keywordPromptFmt = `Extract the most relevant %d keywords from the following legal question.
Write the keywords separated by single spaces.

Example Output: unlicensed accident motorcycle

Question: %s

Keywords:`

// ExtractKeywords derives a short search-keyword string from a question.
func (c *TextClient) ExtractKeywords(ctx context.Context, question string, maxKeywords int) (string, error) {
	if maxKeywords <= 0 {
		maxKeywords = 5
	}
	reply, err := c.Generate(ctx, fmt.Sprintf(keywordPromptFmt, maxKeywords, question))
	if err != nil {
		return "", fmt.Errorf("extract keywords: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
