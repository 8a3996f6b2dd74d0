// Package generation provides text-generation backends used by generative agents.
//
// Defines a Backend interface with Ollama, OpenAI-compatible and noop
// implementations, plus wrappers for retry, rate limiting and telemetry.
// Consumers depend only on Backend, so backends can be swapped without
// touching the decision logic.
package generation

import (
	"context"
	"errors"
	"fmt"
)

// ErrDisabled is returned by NoopBackend.
var ErrDisabled = errors.New("generation: backend disabled")

// Request is one generation call.
type Request struct {
	Model       string
	Prompt      string
	System      string
	Temperature float64
}

// Backend turns a prompt into text. Calls may block on network I/O and may
// fail with network, timeout or model-not-found errors.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f BackendFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// StatusError reports a non-2xx HTTP response from a backend.
type StatusError struct {
	Backend string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Backend, e.Code, e.Body)
}

// NoopBackend always fails with ErrDisabled. Generative agents backed by it
// therefore never decide, and the match engine records Cooperate for them.
type NoopBackend struct{}

// Generate returns ErrDisabled.
func (NoopBackend) Generate(context.Context, Request) (string, error) {
	return "", ErrDisabled
}
