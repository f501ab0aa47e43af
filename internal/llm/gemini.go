package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"neuroflow/internal/logging"
)

// =============================================================================
// GOOGLE GENAI CLIENT
// =============================================================================

// GeminiClient implements Client using Google's Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string { return c.model }

// Complete sends the prompt and returns the raw response text. The caller's
// ctx deadline bounds the call end to end.
func (c *GeminiClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("genai generate failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("genai returned an empty response")
	}
	logging.API("gemini completion ok (model=%s, chars=%d)", c.model, len(text))
	return text, nil
}
