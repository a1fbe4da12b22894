// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	kerrors "kyco/cli/internal/errors"
	"kyco/cli/internal/bridge/model"

	"github.com/google/uuid"
)

// maxErrorBody caps how much of a failed response body is kept for context.
const maxErrorBody = 4 << 10

// StatusError is a non-2xx bridge response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bridge returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("bridge returned %d: %s", e.Code, e.Body)
}

// Client implements API over the bridge's HTTP endpoints.
type Client struct {
	endpoint Endpoint
	claude   Backend
	codex    Backend
	log      *slog.Logger
}

// NewClient creates a client for endpoint. A nil logger uses slog.Default().
func NewClient(endpoint Endpoint, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: endpoint,
		claude:   Claude,
		codex:    Codex,
		log:      logger.With("component", "bridge"),
	}
}

// Endpoint returns the endpoint the client talks to.
func (c *Client) Endpoint() Endpoint { return c.endpoint }

// WithPolicy returns a copy of c whose named backend uses policy.
// Unknown backend names leave the copy unchanged.
func (c *Client) WithPolicy(backend string, policy RetryPolicy) *Client {
	cp := *c
	switch backend {
	case Claude.Name:
		cp.claude.Policy = policy
	case Codex.Name:
		cp.codex.Policy = policy
	}
	return &cp
}

// Policy returns the retry policy in effect for the named backend.
func (c *Client) Policy(backend string) RetryPolicy {
	switch backend {
	case Claude.Name:
		return c.claude.Policy
	case Codex.Name:
		return c.codex.Policy
	}
	return NoRetry
}

// Health calls GET /health. Any 2xx response means the bridge is up;
// an empty body is accepted.
func (c *Client) Health(ctx context.Context) (model.HealthResponse, error) {
	var out model.HealthResponse
	err := c.call(ctx, "health", http.MethodGet, "/health", nil, &out)
	if err != nil && !errors.Is(err, errEmptyBody) {
		return model.HealthResponse{}, err
	}
	if out.Status == "" {
		out.Status = "ok"
	}
	return out, nil
}

// Status calls GET /status.
func (c *Client) Status(ctx context.Context) (model.BridgeStatus, error) {
	var out model.BridgeStatus
	if err := c.call(ctx, "status", http.MethodGet, "/status", nil, &out); err != nil {
		return model.BridgeStatus{}, err
	}
	return out, nil
}

// ListSessions calls GET /sessions, filtered by type when sessionType is set.
func (c *Client) ListSessions(ctx context.Context, sessionType string) ([]model.SessionRecord, error) {
	path := "/sessions"
	if sessionType != "" {
		path += "?" + url.Values{"type": {sessionType}}.Encode()
	}
	var out []model.SessionRecord
	if err := c.call(ctx, "list sessions", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession calls GET /sessions/{id}. A 404 yields nil, nil.
func (c *Client) GetSession(ctx context.Context, id string) (*model.SessionRecord, error) {
	op := fmt.Sprintf("get session %q", id)
	path, err := idPath("/sessions/", id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var out model.SessionRecord
	err = c.call(ctx, op, http.MethodGet, path, nil, &out)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

// InterruptClaude calls POST /claude/interrupt/{sessionId}.
func (c *Client) InterruptClaude(ctx context.Context, sessionID string) (model.ControlResult, error) {
	return c.controlID(ctx, fmt.Sprintf("interrupt claude session %q", sessionID),
		"/claude/interrupt/", sessionID, nil)
}

// SetPermissionMode calls POST /claude/set-permission-mode/{sessionId}.
func (c *Client) SetPermissionMode(ctx context.Context, sessionID, mode string) (model.ControlResult, error) {
	body := map[string]string{"permissionMode": mode}
	return c.controlID(ctx, fmt.Sprintf("set permission mode %q on session %q", mode, sessionID),
		"/claude/set-permission-mode/", sessionID, body)
}

// InterruptCodex calls POST /codex/interrupt/{threadId}.
func (c *Client) InterruptCodex(ctx context.Context, threadID string) (model.ControlResult, error) {
	return c.controlID(ctx, fmt.Sprintf("interrupt codex thread %q", threadID),
		"/codex/interrupt/", threadID, nil)
}

// ApproveTool calls POST /claude/tool-approval.
func (c *Client) ApproveTool(ctx context.Context, approval model.ToolApproval) (model.ControlResult, error) {
	return c.control(ctx, fmt.Sprintf("tool approval %q", approval.RequestID), "/claude/tool-approval", approval)
}

// controlID is control for a path ending in an id segment.
func (c *Client) controlID(ctx context.Context, op, prefix, id string, body any) (model.ControlResult, error) {
	path, err := idPath(prefix, id)
	if err != nil {
		return model.ControlResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return c.control(ctx, op, path, body)
}

// control issues a side-effecting call exactly once.
func (c *Client) control(ctx context.Context, op, path string, body any) (model.ControlResult, error) {
	var out model.ControlResult
	if err := c.call(ctx, op, http.MethodPost, path, body, &out); err != nil {
		return model.ControlResult{}, err
	}
	return out, nil
}

// errEmptyBody marks a 2xx response that carried no body at all.
var errEmptyBody = errors.New("empty response body")

// call performs one request and decodes a 2xx JSON body into out.
// An empty 2xx body surfaces as errEmptyBody wrapped in a ProtocolFailed error.
func (c *Client) call(ctx context.Context, op, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return kerrors.Wrap(kerrors.ProtocolFailed, op, err)
	}
	resp, err := c.endpoint.client.Do(req)
	if err != nil {
		return kerrors.Wrap(kerrors.ConnectionFailed, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return kerrors.Wrap(kerrors.ProtocolFailed, op, readStatusError(resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = errEmptyBody
		}
		return kerrors.Wrap(kerrors.ProtocolFailed, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// newRequest builds a request with a JSON body (when body is non-nil) and a fresh request id.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, ok := body.([]byte)
		if !ok {
			var err error
			if b, err = json.Marshal(body); err != nil {
				return nil, fmt.Errorf("encode request: %w", err)
			}
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint.URL(path), rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, application/x-ndjson")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	c.log.Debug("bridge request", "method", method, "path", path, "request_id", requestID)
	return req, nil
}

// readStatusError drains a bounded prefix of a failed response for context.
func readStatusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
