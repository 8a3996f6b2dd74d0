package dilemma

import "context"

// Backend generates text for generative agents.
// When provided via WithBackend, replaces the auto-detected Ollama/OpenAI/noop
// backend. Calls may block and may fail; a failed call counts as a missing
// decision for that round.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// TaskHook receives a notification for every finished task, in completion
// order. Hooks run on the collector goroutine and must not block for long.
// Errors are logged and never fail the batch.
type TaskHook interface {
	OnTaskFinished(ctx context.Context, o Outcome) error
}

// TaskHookFunc adapts a function to TaskHook.
type TaskHookFunc func(ctx context.Context, o Outcome) error

// OnTaskFinished calls f.
func (f TaskHookFunc) OnTaskFinished(ctx context.Context, o Outcome) error { return f(ctx, o) }
