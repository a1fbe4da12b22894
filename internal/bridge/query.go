// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	kerrors "kyco/cli/internal/errors"
	"kyco/cli/internal/bridge/model"
	"kyco/cli/internal/metrics"
)

// QueryClaude submits a prompt to the claude backend and returns its event stream.
func (c *Client) QueryClaude(ctx context.Context, req model.ClaudeQuery) (*EventStream, error) {
	return c.Submit(ctx, c.claude, req)
}

// QueryCodex submits a prompt to the codex backend and returns its event stream.
func (c *Client) QueryCodex(ctx context.Context, req model.CodexQuery) (*EventStream, error) {
	return c.Submit(ctx, c.codex, req)
}

// Submit POSTs payload to the backend's query path and opens the response as
// an EventStream. Only failures to reach the bridge are retried, according to
// the backend's policy; a non-2xx answer is returned at once. Once the stream
// is open nothing is retried.
func (c *Client) Submit(ctx context.Context, backend Backend, payload any) (*EventStream, error) {
	op := backend.Name + " query"
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ProtocolFailed, op, fmt.Errorf("encode request: %w", err))
	}

	attempts := backend.Policy.MaxAttempts()
	var lastErr error
	made := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		made = attempt
		stream, err := c.openStream(ctx, op, backend, body)
		if err == nil {
			metrics.QueryAttempts.WithLabelValues(backend.Name, "ok").Inc()
			return stream, nil
		}
		lastErr = err
		if !kerrors.Is(err, kerrors.ConnectionFailed) {
			metrics.QueryAttempts.WithLabelValues(backend.Name, "rejected").Inc()
			return nil, err
		}
		metrics.QueryAttempts.WithLabelValues(backend.Name, "unreachable").Inc()
		if ctx.Err() != nil || attempt == attempts {
			break
		}

		wait := backend.Policy.Backoff(attempt)
		c.log.Debug("stream initiation failed, retrying",
			"backend", backend.Name, "attempt", attempt, "wait", wait, "error", err)
		if err := sleepCtx(ctx, wait); err != nil {
			break
		}
	}

	if made == 1 {
		return nil, lastErr
	}
	cause := lastErr
	var e *kerrors.E
	if errors.As(lastErr, &e) && e.Err != nil {
		cause = e.Err
	}
	return nil, kerrors.Wrap(kerrors.ConnectionFailed,
		fmt.Sprintf("%s: stream initiation failed after %d attempts", op, made), cause)
}

// openStream makes a single initiation attempt.
func (c *Client) openStream(ctx context.Context, op string, backend Backend, body []byte) (*EventStream, error) {
	req, err := c.newRequest(ctx, http.MethodPost, backend.QueryPath, body)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ProtocolFailed, op, err)
	}
	resp, err := c.endpoint.client.Do(req)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ConnectionFailed, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, kerrors.Wrap(kerrors.ProtocolFailed, op, readStatusError(resp))
	}
	return NewEventStream(resp.Body, backend.Name), nil
}
