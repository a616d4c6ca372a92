package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/set-night/adbazaar/internal/config"
	"github.com/set-night/adbazaar/internal/domain"
)

// Generator produces structured JSON and images from prompts.
type Generator interface {
	GenerateJSON(ctx context.Context, system, prompt string, out any) error
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// NewGenerator picks the backend from config. It returns nil when no
// credentials are configured; callers then serve fallback content.
func NewGenerator(ctx context.Context, cfg *config.Config) (Generator, error) {
	switch strings.ToLower(cfg.LLMProvider) {
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, nil
		}
		g, err := NewGeminiClient(ctx, cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		if cfg.LLMAPIKey == "" {
			return nil, nil
		}
		return NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.ImageModel), nil
	}
}

// OpenAIClient talks to any OpenAI-compatible chat completions API
// (OpenAI, OpenRouter).
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	imageModel string
	httpClient *http.Client
}

func NewOpenAIClient(baseURL, apiKey, model, imageModel string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		imageModel: imageModel,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
	}
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
}

func (c *OpenAIClient) GenerateJSON(ctx context.Context, system, prompt string, out any) error {
	temperature := 0.8
	chatReq := ChatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature:    &temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var chatResp ChatResponse
	if err := c.post(ctx, "/chat/completions", chatReq, &chatResp); err != nil {
		return err
	}
	if chatResp.Error != nil {
		return fmt.Errorf("%w: %s", domain.ErrGenerationFailed, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return fmt.Errorf("%w: empty completion", domain.ErrGenerationFailed)
	}
	return decodeJSONReply(chatResp.Choices[0].Message.Content, out)
}

func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if c.imageModel == "" {
		return "", domain.ErrImageUnsupported
	}
	imgReq := map[string]any{
		"model":  c.imageModel,
		"prompt": prompt,
		"n":      1,
		"size":   "1024x1024",
	}

	var imgResp struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
		Error *apiError `json:"error,omitempty"`
	}
	if err := c.post(ctx, "/images/generations", imgReq, &imgResp); err != nil {
		return "", err
	}
	if imgResp.Error != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrGenerationFailed, imgResp.Error.Message)
	}
	if len(imgResp.Data) == 0 || imgResp.Data[0].URL == "" {
		return "", fmt.Errorf("%w: no image returned", domain.ErrGenerationFailed)
	}
	return imgResp.Data[0].URL, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: rate limited (429)", domain.ErrGenerationFailed)
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("%w: service unavailable (503)", domain.ErrGenerationFailed)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse response (status %d): %v", domain.ErrGenerationFailed, resp.StatusCode, err)
	}
	return nil
}

// decodeJSONReply strips a markdown code fence, if present, and decodes the
// remaining JSON into out.
func decodeJSONReply(reply string, out any) error {
	text := stripCodeFence(reply)
	if text == "" {
		return fmt.Errorf("%w: empty reply", domain.ErrGenerationFailed)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%w: decode reply: %v", domain.ErrGenerationFailed, err)
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line, e.g. ```json
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
