// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"kyco/cli/internal/bridge/model"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	approveAllow   bool
	approveDeny    bool
	approveSession string
	approveReason  string
)

var interruptCmd = &cobra.Command{
	Use:       "interrupt <claude|codex> <session-id>",
	Short:     "Interrupt a running agent session",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"claude", "codex"},
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		var (
			res model.ControlResult
			err error
		)
		switch strings.ToLower(args[0]) {
		case "claude":
			res, err = client.InterruptClaude(cmd.Context(), args[1])
		case "codex":
			res, err = client.InterruptCodex(cmd.Context(), args[1])
		default:
			return fmt.Errorf("unknown backend %q (want claude or codex)", args[0])
		}
		if err != nil {
			return reportError(err, "interrupting the session")
		}
		return controlOutcome(res, "Interrupt sent to "+args[1])
	},
}

var permissionCmd = &cobra.Command{
	Use:   "permission <session-id> <mode>",
	Short: "Change the permission mode of a running Claude session",
	Long: `Change the permission mode of a running Claude session.

Modes: ` + strings.Join(permissionModes, ", "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !validPermissionMode(args[1]) {
			return fmt.Errorf("unknown permission mode %q (want one of %s)", args[1], strings.Join(permissionModes, ", "))
		}
		res, err := newClient().SetPermissionMode(cmd.Context(), args[0], args[1])
		if err != nil {
			return reportError(err, "changing the permission mode")
		}
		return controlOutcome(res, fmt.Sprintf("Session %s now runs in %s mode", args[0], args[1]))
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Allow or deny a tool call an agent is waiting on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		approval, err := buildApproval(args[0], approveSession, approveReason, approveAllow, approveDeny)
		if err != nil {
			return err
		}
		res, err := newClient().ApproveTool(cmd.Context(), approval)
		if err != nil {
			return reportError(err, "answering the approval request")
		}
		return controlOutcome(res, fmt.Sprintf("Request %s: %s", approval.RequestID, approval.Decision))
	},
}

// buildApproval checks that exactly one of allow and deny is set.
func buildApproval(requestID, session, reason string, allow, deny bool) (model.ToolApproval, error) {
	if allow == deny {
		return model.ToolApproval{}, errors.New("pass exactly one of --allow or --deny")
	}
	decision := "deny"
	if allow {
		decision = "allow"
	}
	return model.ToolApproval{
		RequestID: requestID,
		SessionID: session,
		Decision:  decision,
		Reason:    reason,
	}, nil
}

func controlOutcome(res model.ControlResult, success string) error {
	if !res.Success {
		pterm.Warning.Println("The bridge did not apply the request; the session may have finished.")
		return errors.New("request not applied")
	}
	pterm.Success.Println(success)
	return nil
}

func init() {
	rootCmd.AddCommand(interruptCmd, permissionCmd, approveCmd)
	f := approveCmd.Flags()
	f.BoolVar(&approveAllow, "allow", false, "Allow the tool call")
	f.BoolVar(&approveDeny, "deny", false, "Deny the tool call")
	f.StringVar(&approveSession, "session", "", "Session the request belongs to")
	f.StringVar(&approveReason, "reason", "", "Reason passed back to the agent")
	approveCmd.MarkFlagsMutuallyExclusive("allow", "deny")
}
