// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge

import (
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestEscapeSegment(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain id", input: "ses_01HX-abc.def~1", want: "ses_01HX-abc.def~1"},
		{name: "slash and space", input: "a/b c", want: "a%2Fb%20c"},
		{name: "sub delimiters", input: "a:b@c&d=e+f$g", want: "a%3Ab%40c%26d%3De%2Bf%24g"},
		{name: "query and fragment", input: "x?y#z", want: "x%3Fy%23z"},
		{name: "percent", input: "100%", want: "100%25"},
		{name: "dot segments", input: "../..", want: "..%2F.."},
		{name: "utf8", input: "café", want: "caf%C3%A9"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EscapeSegment(tt.input)
			if got != tt.want {
				t.Errorf("EscapeSegment(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIDPath(t *testing.T) {
	tests := []struct {
		id      string
		want    string
		wantErr bool
	}{
		{id: "ses-1", want: "/sessions/ses-1"},
		{id: "...", want: "/sessions/..."},
		{id: "a/..", want: "/sessions/a%2F.."},
		{id: "", wantErr: true},
		{id: ".", wantErr: true},
		{id: "..", wantErr: true},
	}
	for _, tt := range tests {
		got, err := idPath("/sessions/", tt.id)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidID) {
				t.Errorf("idPath(%q) = %q, %v; want ErrInvalidID", tt.id, got, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("idPath(%q) = %q, %v; want %q", tt.id, got, err, tt.want)
		}
	}
}

func FuzzEscapeSegment(f *testing.F) {
	for _, seed := range []string{"a/b c", "ses_1", "?#[]@!$&'()*+,;=", "%zz", "\x00\xff"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		escaped := EscapeSegment(s)
		if strings.ContainsAny(escaped, "/ ?#[]@!$&'()*+,;=:") {
			t.Fatalf("EscapeSegment(%q) = %q contains a reserved byte", s, escaped)
		}
		decoded, err := url.PathUnescape(escaped)
		if err != nil {
			t.Fatalf("PathUnescape(%q) error: %v", escaped, err)
		}
		if decoded != s {
			t.Fatalf("round trip = %q, want %q", decoded, s)
		}
	})
}
