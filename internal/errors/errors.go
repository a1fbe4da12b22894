// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// Every failure that crosses a component boundary (bridge client, locator,
// supervisor) is wrapped in an E carrying a machine-readable Kind, a message
// naming the operation that failed, and the underlying cause.
//
// A lookup that finds nothing is not an error and never produces an E.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// ConnectionFailed indicates the bridge could not be reached when a call was initiated.
	ConnectionFailed Kind = "connection_failed"
	// ProtocolFailed indicates a non-success HTTP status or an undecodable response body.
	ProtocolFailed Kind = "protocol_failed"
	// StreamDecodeFailed indicates a malformed NDJSON line inside an open event stream.
	StreamDecodeFailed Kind = "stream_decode_failed"
	// InstallFailed indicates a download, extraction, dependency install or build step failed.
	InstallFailed Kind = "install_failed"
	// ProcessFailed indicates the bridge process could not be spawned or never became healthy.
	ProcessFailed Kind = "process_failed"
	// ConfigInvalid indicates a configured value cannot be used as given.
	ConfigInvalid Kind = "config_invalid"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the outermost E in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether any E in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *E
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
