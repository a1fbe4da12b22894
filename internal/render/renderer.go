// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package render prints bridge events to a terminal.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"kyco/cli/internal/bridge/model"

	"github.com/pterm/pterm"
)

const maxPreview = 160

var (
	styleDim     = pterm.NewStyle(pterm.FgGray)
	styleTool    = pterm.NewStyle(pterm.FgCyan)
	styleOK      = pterm.NewStyle(pterm.FgGreen)
	styleErr     = pterm.NewStyle(pterm.FgRed, pterm.Bold)
	styleWarn    = pterm.NewStyle(pterm.FgYellow, pterm.Bold)
	styleHeading = pterm.NewStyle(pterm.FgLightCyan, pterm.Bold)
)

// Renderer writes a human-readable transcript of a stream.
type Renderer struct {
	w io.Writer
	// ShowReasoning prints reasoning records, which are hidden by default.
	ShowReasoning bool
	// ShowUnknown prints records of kinds the CLI does not know.
	ShowUnknown bool

	midLine  bool // partial text printed without a trailing newline
	streamed bool // partial text seen since the last complete message
	summary  *model.SessionComplete
	session  string
}

// New creates a renderer writing to w.
func New(w io.Writer) *Renderer { return &Renderer{w: w} }

// SessionID returns the session id seen on the stream, if any.
func (r *Renderer) SessionID() string { return r.session }

// Summary returns the session.complete payload once it has been rendered.
func (r *Renderer) Summary() *model.SessionComplete { return r.summary }

// Render prints one event.
func (r *Renderer) Render(ev model.Event) {
	if ev.SessionID != "" {
		r.session = ev.SessionID
	}

	switch d := ev.Data.(type) {
	case *model.Text:
		if d.Partial {
			fmt.Fprint(r.w, d.Content)
			r.midLine = !strings.HasSuffix(d.Content, "\n")
			r.streamed = true
			return
		}
		if r.streamed {
			// The complete message repeats the deltas already shown.
			r.streamed = false
			r.endLine()
			return
		}
		r.endLine()
		fmt.Fprintln(r.w, strings.TrimRight(d.Content, "\n"))

	case *model.SessionStart:
		r.endLine()
		parts := []string{"session " + ev.SessionID}
		if d.Model != "" {
			parts = append(parts, "model "+d.Model)
		}
		if d.Cwd != "" {
			parts = append(parts, "in "+d.Cwd)
		}
		fmt.Fprintln(r.w, styleDim.Sprint("● "+strings.Join(parts, " · ")))

	case *model.Reasoning:
		if !r.ShowReasoning {
			return
		}
		r.endLine()
		fmt.Fprintln(r.w, styleDim.Sprint("  ⋯ "+preview(d.Content)))

	case *model.ToolUse:
		r.endLine()
		line := "→ " + d.ToolName
		if in := compactJSON(d.ToolInput); in != "" {
			line += " " + in
		}
		fmt.Fprintln(r.w, styleTool.Sprint(line))

	case *model.ToolResult:
		r.endLine()
		if d.IsError {
			fmt.Fprintln(r.w, styleErr.Sprint("  ✗ ")+preview(d.Content))
		} else {
			fmt.Fprintln(r.w, styleOK.Sprint("  ✓ ")+styleDim.Sprint(preview(d.Content)))
		}

	case *model.ToolApprovalNeeded:
		r.endLine()
		fmt.Fprintln(r.w, styleWarn.Sprintf("⚠ %s needs approval", d.ToolName))
		if in := compactJSON(d.ToolInput); in != "" {
			fmt.Fprintln(r.w, "  "+in)
		}
		fmt.Fprintf(r.w, "  kyco approve %s --session %s --allow|--deny\n", d.RequestID, ev.SessionID)

	case *model.ErrorData:
		r.endLine()
		msg := d.Message
		if d.Code != "" {
			msg = d.Code + ": " + msg
		}
		fmt.Fprintln(r.w, styleErr.Sprint("✗ "+msg))

	case *model.SessionComplete:
		r.endLine()
		r.summary = d
		r.renderSummary(d)

	case *model.Unknown:
		if r.ShowUnknown {
			r.endLine()
			fmt.Fprintln(r.w, styleDim.Sprintf("[%s] %s", ev.Type, preview(string(d.Raw))))
		}
	}
}

// Finish terminates a dangling partial line.
func (r *Renderer) Finish() { r.endLine() }

func (r *Renderer) renderSummary(d *model.SessionComplete) {
	fmt.Fprintln(r.w)
	status := styleOK.Sprint("✓ completed")
	if !d.Success {
		status = styleErr.Sprint("✗ failed")
		if d.Error != "" {
			status += " " + d.Error
		}
	}
	fields := []string{status}
	if d.DurationMs > 0 {
		fields = append(fields, (time.Duration(d.DurationMs) * time.Millisecond).Round(100*time.Millisecond).String())
	}
	if d.NumTurns > 0 {
		fields = append(fields, fmt.Sprintf("%d turns", d.NumTurns))
	}
	if d.CostUSD > 0 {
		fields = append(fields, fmt.Sprintf("$%.4f", d.CostUSD))
	}
	if d.Usage != nil {
		fields = append(fields, fmt.Sprintf("%d in / %d out tokens", d.Usage.InputTokens, d.Usage.OutputTokens))
	}
	fmt.Fprintln(r.w, styleHeading.Sprint("Session ")+strings.Join(fields, styleDim.Sprint(" · ")))
}

func (r *Renderer) endLine() {
	if r.midLine {
		fmt.Fprintln(r.w)
		r.midLine = false
	}
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return preview(string(raw))
	}
	return preview(buf.String())
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxPreview {
		return s[:maxPreview] + "…"
	}
	return s
}
