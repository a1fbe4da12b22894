// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	kerrors "kyco/cli/internal/errors"
)

func TestInit_WritesMaskedDailyFile(t *testing.T) {
	dir := t.TempDir()
	prev := slog.Default()
	t.Cleanup(func() {
		Close()
		slog.SetDefault(prev)
	})

	if err := Init(dir, "debug", false); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	slog.Debug("spawning bridge", "env", "ANTHROPIC_API_KEY=sk-ant-secretvalue", "error", errors.New("token=abc123"))
	Close()

	data, err := os.ReadFile(filepath.Join(dir, "kyco-"+time.Now().Format("2006-01-02")+".log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "spawning bridge") {
		t.Errorf("log missing record: %s", out)
	}
	if strings.Contains(out, "secretvalue") || strings.Contains(out, "abc123") {
		t.Errorf("log leaked a secret: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFormatBridgeError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		title string
	}{
		{name: "connection", err: kerrors.Wrap(kerrors.ConnectionFailed, "health", errors.New("refused")), title: "Bridge Unreachable"},
		{name: "process", err: kerrors.New(kerrors.ProcessFailed, "bridge did not become healthy after 30 probes"), title: "Bridge Did Not Start"},
		{name: "plain", err: errors.New("boom"), title: "Command Failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatBridgeError(tt.err)
			if !strings.Contains(out, tt.title) {
				t.Errorf("output missing %q:\n%s", tt.title, out)
			}
			if !strings.Contains(out, tt.err.Error()) {
				t.Errorf("output missing details:\n%s", out)
			}
		})
	}

	out := FormatBridgeError(kerrors.Wrap(kerrors.ProtocolFailed, "query", errors.New("api_key=sk-live-1")))
	if strings.Contains(out, "sk-live-1") {
		t.Errorf("details not masked:\n%s", out)
	}
	if FormatBridgeError(nil) != "" {
		t.Error("FormatBridgeError(nil) not empty")
	}
}

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		prefix string
	}{
		{name: "kinded", err: kerrors.Wrap(kerrors.ConfigInvalid, "archive dsn", errors.New("bad scheme")), prefix: "Invalid Configuration. Technical details: "},
		{name: "plain", err: errors.New("ping archive database: timeout"), prefix: "Technical details: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorDetail(tt.err)
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("ErrorDetail() = %q, want prefix %q", got, tt.prefix)
			}
			if !strings.HasSuffix(got, tt.err.Error()) {
				t.Errorf("ErrorDetail() = %q, want it to end with the error text", got)
			}
		})
	}

	got := ErrorDetail(fmt.Errorf("connect: %w", errors.New("postgres://kyco:hunter2@db/agents")))
	if strings.Contains(got, "hunter2") {
		t.Errorf("password not masked: %q", got)
	}
	if ErrorDetail(nil) != "" {
		t.Error("ErrorDetail(nil) not empty")
	}
}
