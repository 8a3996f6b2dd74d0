// Package ratelimit throttles calls to the text-generation backend.
//
// The in-memory token bucket (MemoryLimiter) keeps one bucket per key, which
// callers set to the model id so that a slow model does not starve others.
package ratelimit

import "context"

// Limiter blocks callers until a call identified by key may proceed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Wait blocks until the key has capacity or ctx is done. It returns
	// ctx.Err() when the context ends first.
	Wait(ctx context.Context, key string) error

	// Close releases resources (cleanup goroutines).
	Close() error
}

// NoopLimiter never blocks. Used when throttling is disabled.
type NoopLimiter struct{}

// Wait returns immediately.
func (NoopLimiter) Wait(context.Context, string) error { return nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
