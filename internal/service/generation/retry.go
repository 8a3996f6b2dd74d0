package generation

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// isRetriable returns true for errors that indicate a transient backend condition.
func isRetriable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= http.StatusInternalServerError || statusErr.Code == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

type retryBackend struct {
	next       Backend
	maxRetries int
	baseDelay  time.Duration
}

// WithRetry wraps next so that transient failures (5xx, 429, timeouts) are
// retried up to maxRetries times with jittered exponential backoff starting
// at baseDelay. Other errors are returned immediately.
func WithRetry(next Backend, maxRetries int, baseDelay time.Duration) Backend {
	if maxRetries <= 0 {
		return next
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	return &retryBackend{next: next, maxRetries: maxRetries, baseDelay: baseDelay}
}

func (r *retryBackend) Generate(ctx context.Context, req Request) (string, error) {
	var (
		text string
		err  error
	)
	delay := r.baseDelay
	for attempt := range r.maxRetries + 1 {
		text, err = r.next.Generate(ctx, req)
		if err == nil || !isRetriable(err) {
			return text, err
		}
		if attempt == r.maxRetries {
			break
		}
		jitter := time.Duration(rand.Int64N(int64(delay))) //nolint:gosec // jitter doesn't need crypto-strength randomness
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay + jitter):
		}
		delay *= 2
	}
	return "", err
}
