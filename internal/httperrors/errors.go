// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors explains bridge transport failures to users.
package httperrors

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
)

// Cause is the recognised reason a bridge request failed on the wire.
type Cause int

const (
	CauseUnknown Cause = iota
	CauseRefused
	CauseTimeout
	CauseDNS
	CauseReset
)

// Classify inspects err for a known transport failure.
func Classify(err error) Cause {
	switch {
	case err == nil:
		return CauseUnknown
	case isConnectionRefusedError(err):
		return CauseRefused
	case isTimeoutError(err):
		return CauseTimeout
	case isDNSError(err):
		return CauseDNS
	case isResetError(err):
		return CauseReset
	}
	return CauseUnknown
}

// FormatNetworkError prints a user-friendly explanation of err, which
// happened while talking to the bridge at baseURL, and returns err wrapped.
func FormatNetworkError(err error, context, baseURL string) error {
	if err == nil {
		return nil
	}
	host := ExtractHostFromURL(baseURL)

	switch Classify(err) {
	case CauseRefused:
		pterm.Printf("🚫 Connection refused while %s\n", context)
		pterm.Println()
		pterm.Printf("Nothing is listening on %s. This could mean:\n", host)
		pterm.Println("  • The bridge is not running")
		pterm.Println("  • The bridge uses a different port (KYCO_BRIDGE_URL)")
		pterm.Println()
		pterm.Println("Start it with 'kyco bridge run', or let 'kyco query' start one for you.")
	case CauseTimeout:
		pterm.Printf("⏱️  Bridge timed out while %s\n", context)
		pterm.Println()
		pterm.Printf("%s accepted the connection but did not answer in time.\n", host)
		pterm.Println("The bridge may be busy installing dependencies or stuck; check 'kyco bridge status'.")
	case CauseDNS:
		pterm.Printf("🌐 Cannot resolve bridge address while %s\n", context)
		pterm.Println()
		pterm.Printf("%s does not resolve. The bridge normally listens on 127.0.0.1.\n", host)
	case CauseReset:
		pterm.Printf("🔌 Bridge closed the connection while %s\n", context)
		pterm.Println()
		pterm.Println("The bridge process probably exited. Events received so far were kept.")
	default:
		pterm.Printf("❌ Cannot talk to the bridge at %s while %s\n", host, context)
		pterm.Debug.Printf("Technical details: %s\n", truncate(err.Error(), 100))
	}
	pterm.Println()

	return fmt.Errorf("network error: %w", err)
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded")
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectionRefusedError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isResetError(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "connection reset") || strings.Contains(lower, "unexpected eof")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ExtractHostFromURL extracts the host:port from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "the bridge"
	}
	return u.Host
}
