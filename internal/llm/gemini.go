package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiBackend adapts the Gemini API to the Backend interface.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend creates a Gemini-backed inference client.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiBackend{client: client, model: model}, nil
}

// Generate performs one inference call.
func (b *GeminiBackend) Generate(ctx context.Context, prompt string) (Completion, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	})
	if err != nil {
		return Completion{}, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return Completion{}, fmt.Errorf("gemini returned no candidates")
	}

	completion := Completion{Text: text}
	if resp.UsageMetadata != nil {
		completion.TokenCount = int(resp.UsageMetadata.TotalTokenCount)
	}
	return completion, nil
}
