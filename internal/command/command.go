// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package command runs external tools (npm, curl, tar) on behalf of the
// locator and the supervisor, keeping their combined output for diagnostics.
package command

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	kerrors "kyco/cli/internal/errors"
)

// maxOutput is the largest output tail kept in an error message.
const maxOutput = 8 << 10

// Runner runs a program to completion in dir.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// Exec is the Runner backed by os/exec.
type Exec struct {
	Log *slog.Logger
}

// Run executes name with args in dir. A non-zero exit or a missing program
// yields an InstallFailed error carrying the tool's combined output.
func (e Exec) Run(ctx context.Context, dir, name string, args ...string) error {
	log := e.Log
	if log == nil {
		log = slog.Default()
	}
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	start := time.Now()
	out, err := cmd.CombinedOutput()
	log.Debug("command finished", "cmd", line, "dir", dir, "duration", time.Since(start), "error", err)
	if err != nil {
		return kerrors.Wrap(kerrors.InstallFailed, fmt.Sprintf("%s (in %s)", line, dir), withOutput(err, out))
	}
	return nil
}

// OutputError is a failed command together with what it printed.
type OutputError struct {
	Err    error
	Output string
}

func (e *OutputError) Error() string {
	if e.Output == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v\n%s", e.Err, e.Output)
}

func (e *OutputError) Unwrap() error { return e.Err }

func withOutput(err error, out []byte) error {
	out = bytes.TrimSpace(out)
	if len(out) > maxOutput {
		out = append([]byte("..."), out[len(out)-maxOutput:]...)
	}
	return &OutputError{Err: err, Output: string(out)}
}
