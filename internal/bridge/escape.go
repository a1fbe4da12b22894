// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge

import (
	"errors"
	"fmt"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// ErrInvalidID is returned for ids that cannot name a single path segment.
var ErrInvalidID = errors.New("invalid id")

// idPath appends id to prefix as one escaped segment. "", "." and ".." are
// refused: servers resolve them as relative paths, and percent-encoding the
// dots does not help since WHATWG URL parsing treats %2e as a dot too.
func idPath(prefix, id string) (string, error) {
	switch id {
	case "", ".", "..":
		return "", fmt.Errorf("%w %q", ErrInvalidID, id)
	}
	return prefix + EscapeSegment(id), nil
}

// EscapeSegment percent-encodes every byte of s outside the RFC 3986
// unreserved set (ALPHA / DIGIT / "-" / "." / "_" / "~"), making s safe to
// use as a single URL path segment.
//
// url.PathEscape is not used because it leaves sub-delimiters such as
// ":", "@", "&", "=", "+" and "$" unescaped.
func EscapeSegment(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
