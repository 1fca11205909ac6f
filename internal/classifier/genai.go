package classifier

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GenAIService classifies with a Gemini model in JSON response mode.
type GenAIService struct {
	client *genai.Client
	model  string
}

// NewGenAIService creates a Gemini-backed Service.
func NewGenAIService(ctx context.Context, apiKey, model string) (*GenAIService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIService{client: client, model: model}, nil
}

// Complete sends prompt and returns the model's JSON text.
func (s *GenAIService) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
		MaxOutputTokens:  256,
	})
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("GenAI returned an empty response")
	}
	return text, nil
}
