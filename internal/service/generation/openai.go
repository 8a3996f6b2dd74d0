package generation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend talks to any OpenAI-compatible chat completion API. With a
// base URL such as http://localhost:11434/v1 it also serves Ollama's
// compatibility endpoint.
type OpenAIBackend struct {
	client *openai.Client
}

// NewOpenAIBackend creates a chat completion backend. An empty baseURL uses
// the public OpenAI API.
func NewOpenAIBackend(apiKey, baseURL string, timeout time.Duration) (*OpenAIBackend, error) {
	if apiKey == "" && baseURL == "" {
		return nil, fmt.Errorf("openai: api key is required for the public API")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIBackend{client: openai.NewClientWithConfig(cfg)}, nil
}

// Generate sends the system and user prompts as a two-message chat.
func (b *OpenAIBackend) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: wireTemperature(req.Temperature),
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// wireTemperature converts the temperature for the request body. The client
// omits a zero temperature, which servers read as their default of 1.0, so
// zero is sent as the smallest positive float32.
func wireTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// classifyOpenAIError maps client errors carrying an HTTP status onto
// StatusError so the retry wrapper treats every backend alike.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{Backend: "openai", Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{Backend: "openai", Code: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return fmt.Errorf("openai: create chat completion: %w", err)
}
