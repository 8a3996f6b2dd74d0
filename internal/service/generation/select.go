package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Backend names accepted by Select.
const (
	BackendAuto   = "auto"
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendNoop   = "noop"
)

// Settings describes which backend to build and how to reach it.
type Settings struct {
	Backend       string // "auto", "ollama", "openai", or "noop"
	OllamaURL     string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Timeout       time.Duration
}

// Select creates a backend and reports the name of the one chosen.
// Auto mode tries Ollama if reachable, then OpenAI if a key is present,
// else noop. Ollama is preferred: prompts stay on the host.
func Select(ctx context.Context, s Settings, logger *slog.Logger) (Backend, string, error) {
	switch s.Backend {
	case BackendOpenAI:
		b, err := NewOpenAIBackend(s.OpenAIAPIKey, s.OpenAIBaseURL, s.Timeout)
		if err != nil {
			return nil, "", fmt.Errorf("generation: select openai: %w", err)
		}
		logger.Info("generation backend: openai", "base_url", s.OpenAIBaseURL)
		return b, BackendOpenAI, nil

	case BackendOllama:
		logger.Info("generation backend: ollama", "url", s.OllamaURL)
		return NewOllamaBackend(s.OllamaURL, s.Timeout), BackendOllama, nil

	case BackendNoop:
		logger.Warn("generation backend: noop (generative agents cannot decide)")
		return NoopBackend{}, BackendNoop, nil

	case BackendAuto, "":
		url := s.OllamaURL
		if url == "" {
			url = DefaultOllamaURL
		}
		if OllamaReachable(ctx, url) {
			logger.Info("generation backend: ollama (auto-detected)", "url", url)
			return NewOllamaBackend(url, s.Timeout), BackendOllama, nil
		}
		if s.OpenAIAPIKey != "" {
			b, err := NewOpenAIBackend(s.OpenAIAPIKey, s.OpenAIBaseURL, s.Timeout)
			if err != nil {
				return nil, "", fmt.Errorf("generation: select openai: %w", err)
			}
			logger.Info("generation backend: openai (auto-detected)")
			return b, BackendOpenAI, nil
		}
		logger.Warn("no generation backend available, using noop (generative agents cannot decide)")
		return NoopBackend{}, BackendNoop, nil

	default:
		return nil, "", fmt.Errorf("generation: unknown backend %q", s.Backend)
	}
}
