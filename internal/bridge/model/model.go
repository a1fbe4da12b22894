// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package model defines the data structures exchanged with the bridge.
// It provides the query payloads for each backend, the session and status
// records returned by lookups, control-call results, and the streaming
// event records decoded from NDJSON response bodies.
//
// The types are plain JSON-tagged structs; field names follow the bridge's
// camelCase wire format.
package model

// ClaudeQuery is the payload for POST /claude/query.
type ClaudeQuery struct {
	Prompt         string   `json:"prompt"`
	Cwd            string   `json:"cwd,omitempty"`
	SessionID      string   `json:"sessionId,omitempty"` // resume an existing session
	Model          string   `json:"model,omitempty"`
	SystemPrompt   string   `json:"systemPrompt,omitempty"`
	PermissionMode string   `json:"permissionMode,omitempty"`
	AllowedTools   []string `json:"allowedTools,omitempty"`
	MaxTurns       int      `json:"maxTurns,omitempty"`
}

// CodexQuery is the payload for POST /codex/query.
type CodexQuery struct {
	Prompt         string `json:"prompt"`
	Cwd            string `json:"cwd,omitempty"`
	ThreadID       string `json:"threadId,omitempty"` // continue an existing thread
	Model          string `json:"model,omitempty"`
	SandboxMode    string `json:"sandboxMode,omitempty"`
	ApprovalPolicy string `json:"approvalPolicy,omitempty"`
}

// Permission modes accepted by POST /claude/set-permission-mode/{id}.
const (
	PermissionDefault     = "default"
	PermissionAcceptEdits = "acceptEdits"
	PermissionBypass      = "bypassPermissions"
	PermissionPlan        = "plan"
)

// ToolApproval answers a tool.approval_needed event.
type ToolApproval struct {
	RequestID string `json:"requestId"`
	SessionID string `json:"sessionId,omitempty"`
	Decision  string `json:"decision"` // "allow" or "deny"
	Reason    string `json:"reason,omitempty"`
}

// ControlResult is returned by interrupt, permission and approval calls.
type ControlResult struct {
	Success bool `json:"success"`
}

// SessionRecord is the persisted metadata the bridge keeps per session.
type SessionRecord struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"` // "claude" or "codex"
	Cwd          string  `json:"cwd,omitempty"`
	Model        string  `json:"model,omitempty"`
	Status       string  `json:"status,omitempty"`
	CreatedAt    int64   `json:"createdAt"`    // unix millis
	LastActiveAt int64   `json:"lastActiveAt"` // unix millis
	TurnCount    int     `json:"turnCount"`
	TotalCostUSD float64 `json:"totalCostUsd"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// BridgeStatus is the body of GET /status.
type BridgeStatus struct {
	Version        string   `json:"version"`
	UptimeSeconds  float64  `json:"uptimeSeconds"`
	ActiveSessions int      `json:"activeSessions"`
	Backends       []string `json:"backends,omitempty"`
}
