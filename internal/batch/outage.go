package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hatim381/dilemme-du-prisonnier/internal/service/generation"
)

// ErrBackendOutage fails a task whose generative agent never got an answer
// from the backend.
var ErrBackendOutage = errors.New("batch: backend outage")

// outageGuard sits between one generative seat and the shared backend.
// Individual failures still reach the decision provider, which turns them
// into the cooperate fallback. A run of threshold consecutive failures
// cancels the task, and so does a match in which every call failed.
type outageGuard struct {
	next      generation.Backend
	agent     string
	threshold int
	cancel    context.CancelCauseFunc

	mu          sync.Mutex
	calls       int
	failures    int
	consecutive int
	lastErr     error
}

func newOutageGuard(next generation.Backend, agent string, threshold int, cancel context.CancelCauseFunc) *outageGuard {
	return &outageGuard{next: next, agent: agent, threshold: threshold, cancel: cancel}
}

func (g *outageGuard) Generate(ctx context.Context, req generation.Request) (string, error) {
	text, err := g.next.Generate(ctx, req)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if err == nil {
		g.consecutive = 0
		return text, nil
	}
	if ctx.Err() != nil {
		// Cancellation is not the backend's fault.
		return text, err
	}
	g.failures++
	g.consecutive++
	g.lastErr = err
	if g.threshold > 0 && g.consecutive == g.threshold {
		g.cancel(fmt.Errorf("%w: %s: %d consecutive failures: %w", ErrBackendOutage, g.agent, g.consecutive, err))
	}
	return text, err
}

// err reports an outage when every call of the match failed.
func (g *outageGuard) err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls > 0 && g.failures == g.calls {
		return fmt.Errorf("%w: %s: all %d calls failed: %w", ErrBackendOutage, g.agent, g.calls, g.lastErr)
	}
	return nil
}
