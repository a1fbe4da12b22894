// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"kyco/cli/internal/bridge"
	"kyco/cli/internal/bridge/model"
	"kyco/cli/internal/render"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// queryOptions holds the flags of `kyco query`.
type queryOptions struct {
	backend        string
	session        string
	cwd            string
	model          string
	permissionMode string
	systemPrompt   string
	allowedTools   []string
	maxTurns       int
	sandbox        string
	approvalPolicy string
	showReasoning  bool
	raw            bool
}

var qopts queryOptions

var queryCmd = &cobra.Command{
	Use:   "query [prompt...]",
	Short: "Send a prompt to an agent and stream its events",
	Long: `The query command makes sure a bridge is running, submits the prompt to the
selected backend and renders the agent's events as they arrive. With no prompt
arguments, or a single "-", the prompt is read from stdin.

Press Ctrl-C once to interrupt the agent and wait for it to wrap up; press it
again to abort immediately.`,
	Example: `  kyco query "explain internal/bridge/stream.go"
  kyco query --backend codex --cwd ./svc "add a health endpoint"
  git diff | kyco query --session 3f2a... -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, err := readPrompt(args, os.Stdin)
		if err != nil {
			return err
		}
		backend, payload, err := qopts.payload(prompt)
		if err != nil {
			return err
		}
		return runQuery(cmd.Context(), backend, payload)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	f := queryCmd.Flags()
	f.StringVarP(&qopts.backend, "backend", "b", "claude", "Agent backend: claude or codex")
	f.StringVarP(&qopts.session, "session", "s", "", "Resume a session (claude) or thread (codex)")
	f.StringVar(&qopts.cwd, "cwd", "", "Working directory for the agent (default: current directory)")
	f.StringVarP(&qopts.model, "model", "m", "", "Model override")
	f.StringVar(&qopts.permissionMode, "permission-mode", "", "Claude permission mode: default, acceptEdits, bypassPermissions or plan")
	f.StringVar(&qopts.systemPrompt, "system-prompt", "", "Claude system prompt")
	f.StringSliceVar(&qopts.allowedTools, "allowed-tools", nil, "Claude tools allowed without approval")
	f.IntVar(&qopts.maxTurns, "max-turns", 0, "Claude turn limit (0 for the bridge default)")
	f.StringVar(&qopts.sandbox, "sandbox", "", "Codex sandbox mode")
	f.StringVar(&qopts.approvalPolicy, "approval-policy", "", "Codex approval policy")
	f.BoolVar(&qopts.showReasoning, "show-reasoning", false, "Print model reasoning")
	f.BoolVar(&qopts.raw, "raw", false, "Print raw NDJSON records instead of rendering them")
}

// readPrompt joins args, or reads stdin when there are none or args is "-".
func readPrompt(args []string, stdin io.Reader) (string, error) {
	var prompt string
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read prompt from stdin: %w", err)
		}
		prompt = string(b)
	} else {
		prompt = strings.Join(args, " ")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt is empty")
	}
	return prompt, nil
}

var permissionModes = []string{
	model.PermissionDefault,
	model.PermissionAcceptEdits,
	model.PermissionBypass,
	model.PermissionPlan,
}

func validPermissionMode(mode string) bool {
	for _, m := range permissionModes {
		if m == mode {
			return true
		}
	}
	return false
}

// payload builds the request body for the selected backend.
func (o queryOptions) payload(prompt string) (bridge.Backend, any, error) {
	cwd := o.cwd
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}
	switch strings.ToLower(o.backend) {
	case bridge.Claude.Name:
		if o.permissionMode != "" && !validPermissionMode(o.permissionMode) {
			return bridge.Backend{}, nil, fmt.Errorf("unknown permission mode %q (want one of %s)", o.permissionMode, strings.Join(permissionModes, ", "))
		}
		return bridge.Claude, model.ClaudeQuery{
			Prompt:         prompt,
			Cwd:            cwd,
			SessionID:      o.session,
			Model:          o.model,
			SystemPrompt:   o.systemPrompt,
			PermissionMode: o.permissionMode,
			AllowedTools:   o.allowedTools,
			MaxTurns:       o.maxTurns,
		}, nil
	case bridge.Codex.Name:
		if o.permissionMode != "" || o.systemPrompt != "" || len(o.allowedTools) > 0 || o.maxTurns != 0 {
			return bridge.Backend{}, nil, errors.New("--permission-mode, --system-prompt, --allowed-tools and --max-turns apply to the claude backend only")
		}
		return bridge.Codex, model.CodexQuery{
			Prompt:         prompt,
			Cwd:            cwd,
			ThreadID:       o.session,
			Model:          o.model,
			SandboxMode:    o.sandbox,
			ApprovalPolicy: o.approvalPolicy,
		}, nil
	}
	return bridge.Backend{}, nil, fmt.Errorf("unknown backend %q (want claude or codex)", o.backend)
}

func runQuery(parent context.Context, backend bridge.Backend, payload any) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	client := newClient()
	sup := newSupervisor(client)

	// Signals are caught before the bridge is started so that an abort
	// during startup still runs the supervisor's teardown.
	var session atomic.Value
	session.Store("")
	stopSignals := watchSignals(ctx, cancel, client, backend, &session)
	defer stopSignals()

	stopSpin := startSpinner("Starting bridge")
	h, err := sup.Start(ctx)
	stopSpin()
	if err != nil {
		return abortedOr(ctx, err, "starting the bridge")
	}
	defer sup.Stop()

	stream, err := h.Client().Submit(ctx, backend, payload)
	if err != nil {
		return abortedOr(ctx, err, "submitting the query")
	}
	defer stream.Close()

	r := render.New(os.Stdout)
	r.ShowReasoning = qopts.showReasoning
	for ev, err := range stream.All() {
		if err != nil {
			r.Finish()
			return abortedOr(ctx, err, "reading agent events")
		}
		if ev.SessionID != "" {
			session.Store(ev.SessionID)
		}
		if qopts.raw {
			fmt.Println(string(ev.Raw))
			continue
		}
		r.Render(ev)
	}
	r.Finish()

	if s := r.Summary(); s != nil && !s.Success {
		return fmt.Errorf("agent session failed: %s", s.Error)
	}
	return nil
}

// abortedOr reports err, unless ctx was cancelled by a signal.
func abortedOr(ctx context.Context, err error, doing string) error {
	if ctx.Err() != nil {
		pterm.Warning.Println("Aborted.")
		return ctx.Err()
	}
	return reportError(err, doing)
}

// watchSignals routes SIGINT and SIGTERM to handleInterrupts until the
// returned function is called.
func watchSignals(ctx context.Context, cancel context.CancelFunc, client *bridge.Client, backend bridge.Backend, session *atomic.Value) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		defer close(done)
		handleInterrupts(ctx, cancel, sigs, client, backend, session)
	}()
	return func() {
		signal.Stop(sigs)
		cancel()
		<-done
	}
}

// handleInterrupts asks the bridge to interrupt the running session on the
// first signal and cancels the query on the second.
func handleInterrupts(ctx context.Context, cancel context.CancelFunc, sigs <-chan os.Signal, client *bridge.Client, backend bridge.Backend, session *atomic.Value) {
	interrupted := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
		}
		id, _ := session.Load().(string)
		if interrupted || id == "" {
			cancel()
			return
		}
		interrupted = true
		pterm.Warning.Println("Interrupting agent; press Ctrl-C again to abort.")

		ictx, icancel := context.WithTimeout(context.Background(), 5*time.Second)
		var err error
		if backend.Name == bridge.Codex.Name {
			_, err = client.InterruptCodex(ictx, id)
		} else {
			_, err = client.InterruptClaude(ictx, id)
		}
		icancel()
		if err != nil {
			slog.Warn("interrupt failed", "session", id, "error", err)
			cancel()
			return
		}
	}
}
