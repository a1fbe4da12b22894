// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	kerrors "kyco/cli/internal/errors"

	"github.com/pterm/pterm"
)

type explanation struct {
	title  string
	lines  []string
	action string
}

var explanations = map[kerrors.Kind]explanation{
	kerrors.ConnectionFailed: {
		title: "Bridge Unreachable",
		lines: []string{
			"The kyco bridge could not be reached on its loopback address.",
			"This usually happens when:",
			"  • The bridge process is not running or crashed",
			"  • Another program is using the bridge port",
			"  • --bridge-url points at the wrong address",
		},
		action: "→ Run 'kyco bridge health' or start one with 'kyco bridge run'",
	},
	kerrors.ProtocolFailed: {
		title: "Bridge Request Rejected",
		lines: []string{
			"The bridge answered, but not with what kyco expected.",
			"This could mean:",
			"  • The request referenced an unknown session",
			"  • The bridge version does not match this CLI",
		},
		action: "→ Check 'kyco bridge status' and compare versions with 'kyco --version'",
	},
	kerrors.StreamDecodeFailed: {
		title: "Event Stream Corrupted",
		lines: []string{
			"The bridge sent a record kyco could not decode.",
			"Events before the broken record were delivered; the rest were dropped.",
		},
		action: "→ Re-run with --verbose and inspect the log file for the raw line",
	},
	kerrors.InstallFailed: {
		title: "Bridge Installation Failed",
		lines: []string{
			"Installing or building the bridge package did not succeed.",
			"Check that node and npm are on your PATH and that the network is reachable.",
		},
		action: "→ Retry with 'kyco bridge install' or point --bridge-path at a local checkout",
	},
	kerrors.ProcessFailed: {
		title: "Bridge Did Not Start",
		lines: []string{
			"The bridge process was spawned but never reported healthy, or exited early.",
			"The spawned process has been stopped.",
		},
		action: "→ Run the bridge by hand ('node dist/server.js' in the bridge directory) to see its output",
	},
	kerrors.ConfigInvalid: {
		title: "Invalid Configuration",
		lines: []string{
			"A configured value cannot be used as given.",
		},
		action: "→ Fix the value in the config file, environment or command-line flag",
	},
}

// FormatBridgeError renders a taxonomy error for the terminal. Errors
// without a kind get a generic title.
func FormatBridgeError(err error) string {
	if err == nil {
		return ""
	}
	kind, _ := kerrors.KindOf(err)
	ex, ok := explanations[kind]
	if !ok {
		ex = explanation{title: "Command Failed"}
	}

	var b strings.Builder
	b.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(ex.title))
	b.WriteString("\n\n")
	for _, l := range ex.lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	if ex.action != "" {
		b.WriteString("\n")
		b.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint(ex.action))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(pterm.NewStyle(pterm.FgGray).Sprint(ErrorDetail(err)))
	return b.String()
}

// ErrorDetail is the one-line masked form of err, led by its kind's title
// when it carries one.
func ErrorDetail(err error) string {
	if err == nil {
		return ""
	}
	detail := "Technical details: " + Mask(err.Error())
	if kind, ok := kerrors.KindOf(err); ok {
		if ex, ok := explanations[kind]; ok {
			return ex.title + ". " + detail
		}
	}
	return detail
}

// PresentBridgeError prints FormatBridgeError(err).
func PresentBridgeError(err error) {
	fmt.Println()
	fmt.Println(FormatBridgeError(err))
	fmt.Println()
}
