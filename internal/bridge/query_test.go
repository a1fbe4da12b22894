// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	kerrors "kyco/cli/internal/errors"
	"kyco/cli/internal/bridge/model"
)

// flakyTransport refuses the first `failures` round trips, then delegates.
type flakyTransport struct {
	failures int32
	calls    atomic.Int32
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, errors.New("dial tcp 127.0.0.1: connect: connection refused")
	}
	return f.next.RoundTrip(r)
}

func streamHandler(t *testing.T, wantPath string, lines ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			t.Errorf("path = %s, want %s", r.URL.Path, wantPath)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, l := range lines {
			io.WriteString(w, l+"\n")
		}
	})
}

func TestQueryClaude_RetriesConnectionFailures(t *testing.T) {
	srv := httptest.NewServer(streamHandler(t, "/claude/query",
		`{"type":"session.start","sessionId":"s1","timestamp":1}`,
		`{"type":"session.complete","sessionId":"s1","timestamp":2,"success":true}`,
	))
	defer srv.Close()

	transport := &flakyTransport{failures: 2, next: http.DefaultTransport}
	c := NewClient(NewEndpointWithClient(srv.URL, &http.Client{Transport: transport}), nil)

	start := time.Now()
	stream, err := c.QueryClaude(context.Background(), model.ClaudeQuery{Prompt: "hi"})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("QueryClaude() error: %v", err)
	}
	defer stream.Close()

	if got := transport.calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if elapsed < 1500*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 1.5s of backoff", elapsed)
	}
	events, err := stream.Collect()
	if err != nil || len(events) != 2 {
		t.Errorf("Collect() = %d events, %v", len(events), err)
	}
}

func TestQueryClaude_GivesUpAfterAllAttempts(t *testing.T) {
	transport := &flakyTransport{failures: 100, next: http.DefaultTransport}
	policy := RetryPolicy{Name: "fast", Attempts: 3, InitialBackoff: 10 * time.Millisecond}
	c := NewClient(NewEndpointWithClient("http://127.0.0.1:1", &http.Client{Transport: transport}), nil).
		WithPolicy("claude", policy)

	_, err := c.QueryClaude(context.Background(), model.ClaudeQuery{Prompt: "hi"})
	if !kerrors.Is(err, kerrors.ConnectionFailed) {
		t.Fatalf("err = %v, want ConnectionFailed", err)
	}
	if !strings.Contains(err.Error(), "3 attempts") {
		t.Errorf("error %q does not mention 3 attempts", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error %q lost the cause", err)
	}
	if got := transport.calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestQueryClaude_StatusErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad prompt", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(NewEndpoint(srv.URL), nil).QueryClaude(context.Background(), model.ClaudeQuery{})
	if !kerrors.Is(err, kerrors.ProtocolFailed) {
		t.Fatalf("err = %v, want ProtocolFailed", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest || se.Body != "bad prompt" {
		t.Errorf("StatusError = %+v", se)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1", calls.Load())
	}
}

func TestQueryClaude_CancelStopsRetrying(t *testing.T) {
	transport := &flakyTransport{failures: 100, next: http.DefaultTransport}
	c := NewClient(NewEndpointWithClient("http://127.0.0.1:1", &http.Client{Transport: transport}), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.QueryClaude(ctx, model.ClaudeQuery{Prompt: "hi"})
	if err == nil {
		t.Fatal("QueryClaude() succeeded")
	}
	if time.Since(start) > time.Second {
		t.Errorf("cancelled query took %v", time.Since(start))
	}
	if got := transport.calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestQueryCodex_SingleAttempt(t *testing.T) {
	transport := &flakyTransport{failures: 1, next: http.DefaultTransport}
	c := NewClient(NewEndpointWithClient("http://127.0.0.1:1", &http.Client{Transport: transport}), nil)

	_, err := c.QueryCodex(context.Background(), model.CodexQuery{Prompt: "hi"})
	if !kerrors.Is(err, kerrors.ConnectionFailed) {
		t.Fatalf("err = %v, want ConnectionFailed", err)
	}
	if strings.Contains(err.Error(), "attempts") {
		t.Errorf("single-attempt error %q mentions attempts", err)
	}
	if got := transport.calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestQueryCodex_SendsPayload(t *testing.T) {
	var got model.CodexQuery
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/codex/query" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"type":"text","sessionId":"t1","content":"done"}`)
	}))
	defer srv.Close()

	stream, err := NewClient(NewEndpoint(srv.URL), nil).QueryCodex(context.Background(),
		model.CodexQuery{Prompt: "fix it", ThreadID: "t1", SandboxMode: "workspace-write"})
	if err != nil {
		t.Fatalf("QueryCodex() error: %v", err)
	}
	events, err := stream.Collect()
	if err != nil || len(events) != 1 {
		t.Fatalf("Collect() = %v, %v", events, err)
	}
	if got.Prompt != "fix it" || got.ThreadID != "t1" || got.SandboxMode != "workspace-write" {
		t.Errorf("payload = %+v", got)
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}
	for i, w := range want {
		if got := BoundedRetry.Backoff(i + 1); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
	if NoRetry.MaxAttempts() != 1 || (RetryPolicy{}).MaxAttempts() != 1 {
		t.Error("MaxAttempts should never be below 1")
	}
}
