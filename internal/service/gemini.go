package service

import (
	"context"
	"fmt"

	"github.com/set-night/adbazaar/internal/domain"
	"google.golang.org/genai"
)

// GeminiClient generates JSON through Google's Gemini API. It has no image
// model; surprises fall back to their static artwork.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (g *GeminiClient) GenerateJSON(ctx context.Context, system, prompt string, out any) error {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.8),
		ResponseMIMEType:  "application/json",
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return decodeJSONReply(resp.Text(), out)
}

func (g *GeminiClient) GenerateImage(context.Context, string) (string, error) {
	return "", domain.ErrImageUnsupported
}
