// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package bridge speaks the bridge's loopback HTTP protocol. It provides
// one-shot request helpers for health, status, session lookups and control
// calls, and a single submit-and-stream operation that opens an NDJSON
// response body as a lazily decoded EventStream.
//
// The package is stateless apart from the immutable Endpoint; a Client may be
// shared by any number of goroutines. Long-running queries are expected to
// run on their own goroutine while control calls for the same session are
// issued from another.
package bridge

import (
	"context"

	"kyco/cli/internal/bridge/model"
)

// API defines the bridge operations the CLI depends on.
// Implementations may call the real bridge or provide mocks for tests.
type API interface {
	Health(ctx context.Context) (model.HealthResponse, error)
	Status(ctx context.Context) (model.BridgeStatus, error)
	ListSessions(ctx context.Context, sessionType string) ([]model.SessionRecord, error)
	// GetSession returns nil without error when the bridge has no such session.
	GetSession(ctx context.Context, id string) (*model.SessionRecord, error)
	QueryClaude(ctx context.Context, req model.ClaudeQuery) (*EventStream, error)
	QueryCodex(ctx context.Context, req model.CodexQuery) (*EventStream, error)
	InterruptClaude(ctx context.Context, sessionID string) (model.ControlResult, error)
	SetPermissionMode(ctx context.Context, sessionID, mode string) (model.ControlResult, error)
	InterruptCodex(ctx context.Context, threadID string) (model.ControlResult, error)
	ApproveTool(ctx context.Context, approval model.ToolApproval) (model.ControlResult, error)
}

var _ API = (*Client)(nil)
