// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestManager_KeyLifecycle(t *testing.T) {
	m := NewManagerWithRing(keyring.NewArrayKeyring(nil))

	if _, err := m.Key(Anthropic); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Key() on empty ring err = %v, want ErrNotFound", err)
	}
	if err := m.SetKey(Anthropic, "  sk-ant-123  "); err != nil {
		t.Fatalf("SetKey() error: %v", err)
	}
	got, err := m.Key(Anthropic)
	if err != nil || got != "sk-ant-123" {
		t.Errorf("Key() = %q, %v", got, err)
	}
	if err := m.SetKey(OpenAI, ""); err == nil {
		t.Error("SetKey() accepted an empty key")
	}

	if err := m.ClearKey(Anthropic); err != nil {
		t.Fatalf("ClearKey() error: %v", err)
	}
	if err := m.ClearKey(Anthropic); err != nil {
		t.Errorf("second ClearKey() error: %v", err)
	}
	if _, err := m.Key(Anthropic); !errors.Is(err, ErrNotFound) {
		t.Errorf("Key() after clear err = %v", err)
	}
}

func TestManager_BridgeEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "from-shell")

	m := NewManagerWithRing(keyring.NewArrayKeyring(nil))
	m.SetKey(Anthropic, "sk-ant")
	m.SetKey(OpenAI, "sk-openai")

	env := m.BridgeEnv()
	if len(env) != 1 || env[0] != "ANTHROPIC_API_KEY=sk-ant" {
		t.Errorf("BridgeEnv() = %v", env)
	}

	if err := m.ClearAll(); err != nil {
		t.Fatalf("ClearAll() error: %v", err)
	}
	if env := m.BridgeEnv(); len(env) != 0 {
		t.Errorf("BridgeEnv() after ClearAll = %v", env)
	}
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{in: "anthropic", want: Anthropic},
		{in: " OpenAI ", want: OpenAI},
		{in: "gemini", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseProvider(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseProvider(%q) = %q, %v", tt.in, got, err)
		}
	}
}
