package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSelect(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ollama.Close()
	down := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	downURL := down.URL
	down.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name     string
		settings Settings
		want     string
		wantErr  bool
	}{
		{"auto prefers reachable ollama", Settings{Backend: BackendAuto, OllamaURL: ollama.URL, OpenAIAPIKey: "sk-test"}, BackendOllama, false},
		{"auto falls back to openai", Settings{Backend: BackendAuto, OllamaURL: downURL, OpenAIAPIKey: "sk-test"}, BackendOpenAI, false},
		{"auto falls back to noop", Settings{Backend: BackendAuto, OllamaURL: downURL}, BackendNoop, false},
		{"explicit ollama skips probe", Settings{Backend: BackendOllama, OllamaURL: downURL}, BackendOllama, false},
		{"explicit openai with base url", Settings{Backend: BackendOpenAI, OpenAIBaseURL: downURL}, BackendOpenAI, false},
		{"explicit noop", Settings{Backend: BackendNoop}, BackendNoop, false},
		{"openai without key", Settings{Backend: BackendOpenAI}, "", true},
		{"unknown backend", Settings{Backend: "carrier-pigeon"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, name, err := Select(context.Background(), tt.settings, logger)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got backend %q", name)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b == nil {
				t.Fatal("expected a backend")
			}
			if name != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, name)
			}
		})
	}
}

func TestSelectNoopIsDisabled(t *testing.T) {
	b, _, err := Select(context.Background(), Settings{Backend: BackendNoop}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := b.Generate(context.Background(), Request{Model: "m"}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}
