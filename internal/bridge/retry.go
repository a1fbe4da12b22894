// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge

import (
	"context"
	"time"
)

// RetryPolicy controls how many times a stream initiation is attempted and
// how long to wait between attempts. It never applies to an already open
// stream or to control calls.
type RetryPolicy struct {
	Name           string
	Attempts       int
	InitialBackoff time.Duration
}

var (
	// BoundedRetry tries three times, waiting 500ms then 1s between attempts.
	BoundedRetry = RetryPolicy{Name: "bounded", Attempts: 3, InitialBackoff: 500 * time.Millisecond}
	// NoRetry makes exactly one attempt.
	NoRetry = RetryPolicy{Name: "none", Attempts: 1}
)

// MaxAttempts returns the number of attempts, never less than one.
func (p RetryPolicy) MaxAttempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Backoff returns the wait after the given failed attempt (1-based):
// InitialBackoff doubled for every earlier attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.InitialBackoff <= 0 {
		return 0
	}
	return p.InitialBackoff << (attempt - 1)
}

// Backend describes one query backend of the bridge.
type Backend struct {
	Name      string
	QueryPath string
	Policy    RetryPolicy
}

var (
	// Claude is the primary backend. Stream initiation is retried.
	Claude = Backend{Name: "claude", QueryPath: "/claude/query", Policy: BoundedRetry}
	// Codex is the secondary backend. Stream initiation is attempted once.
	Codex = Backend{Name: "codex", QueryPath: "/codex/query", Policy: NoRetry}
)

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
