// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType enumerates known bridge event kinds.
type EventType string

const (
	// EventSessionStart is emitted once when the agent session is ready.
	EventSessionStart EventType = "session.start"
	// EventText carries assistant text; Partial marks an incremental delta.
	EventText EventType = "text"
	// EventReasoning carries model reasoning text.
	EventReasoning EventType = "reasoning"
	// EventToolUse announces a tool invocation.
	EventToolUse EventType = "tool.use"
	// EventToolResult carries the output of a tool invocation.
	EventToolResult EventType = "tool.result"
	// EventToolApprovalNeeded asks the caller to allow or deny a tool call.
	EventToolApprovalNeeded EventType = "tool.approval_needed"
	// EventError reports an agent-side error; the stream may continue.
	EventError EventType = "error"
	// EventSessionComplete is the final record of a query.
	EventSessionComplete EventType = "session.complete"
)

// Event is one decoded NDJSON record. Data holds the kind-specific payload;
// records of kinds this package does not know decode to *Unknown.
type Event struct {
	Type      EventType
	SessionID string
	Timestamp int64 // unix millis
	Data      EventData
	Raw       json.RawMessage
}

// EventData is implemented by every payload type.
type EventData interface {
	eventData()
}

// SessionStart is the payload of a session.start record.
type SessionStart struct {
	Model string   `json:"model,omitempty"`
	Cwd   string   `json:"cwd,omitempty"`
	Tools []string `json:"tools,omitempty"`
}

// Text is the payload of a text record.
type Text struct {
	Content string `json:"content"`
	Partial bool   `json:"partial"`
}

// Reasoning is the payload of a reasoning record.
type Reasoning struct {
	Content string `json:"content"`
}

// ToolUse is the payload of a tool.use record.
type ToolUse struct {
	ToolUseID string          `json:"toolUseId"`
	ToolName  string          `json:"toolName"`
	ToolInput json.RawMessage `json:"toolInput,omitempty"`
}

// ToolResult is the payload of a tool.result record.
type ToolResult struct {
	ToolUseID string `json:"toolUseId"`
	Content   string `json:"content"`
	IsError   bool   `json:"isError"`
}

// ToolApprovalNeeded is the payload of a tool.approval_needed record.
type ToolApprovalNeeded struct {
	RequestID string          `json:"requestId"`
	ToolName  string          `json:"toolName"`
	ToolInput json.RawMessage `json:"toolInput,omitempty"`
}

// ErrorData is the payload of an error record.
type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Usage reports token consumption for a completed session.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// SessionComplete is the payload of a session.complete record.
type SessionComplete struct {
	Success    bool    `json:"success"`
	DurationMs int64   `json:"durationMs"`
	CostUSD    float64 `json:"costUsd,omitempty"`
	NumTurns   int     `json:"numTurns,omitempty"`
	Usage      *Usage  `json:"usage,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Unknown holds a record of a kind not listed above.
type Unknown struct {
	Raw json.RawMessage
}

func (*SessionStart) eventData()       {}
func (*Text) eventData()               {}
func (*Reasoning) eventData()          {}
func (*ToolUse) eventData()            {}
func (*ToolResult) eventData()         {}
func (*ToolApprovalNeeded) eventData() {}
func (*ErrorData) eventData()          {}
func (*SessionComplete) eventData()    {}
func (*Unknown) eventData()            {}

// envelope is the part shared by every record.
type envelope struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	Timestamp int64     `json:"timestamp"`
}

// ErrMissingType is returned for a JSON object without a "type" discriminant.
var ErrMissingType = errors.New("record has no type")

// DecodeEvent decodes one NDJSON line into an Event.
func DecodeEvent(line []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Event{}, err
	}
	if env.Type == "" {
		return Event{}, ErrMissingType
	}

	raw := make(json.RawMessage, len(line))
	copy(raw, line)

	var data EventData
	switch env.Type {
	case EventSessionStart:
		data = &SessionStart{}
	case EventText:
		data = &Text{}
	case EventReasoning:
		data = &Reasoning{}
	case EventToolUse:
		data = &ToolUse{}
	case EventToolResult:
		data = &ToolResult{}
	case EventToolApprovalNeeded:
		data = &ToolApprovalNeeded{}
	case EventError:
		data = &ErrorData{}
	case EventSessionComplete:
		data = &SessionComplete{}
	default:
		data = &Unknown{Raw: raw}
	}
	if _, unknown := data.(*Unknown); !unknown {
		if err := json.Unmarshal(line, data); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}

	return Event{
		Type:      env.Type,
		SessionID: env.SessionID,
		Timestamp: env.Timestamp,
		Data:      data,
		Raw:       raw,
	}, nil
}
