package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.Bridge.URL != DefaultBridgeURL {
		t.Errorf("Bridge.URL = %q, want %q", c.Bridge.URL, DefaultBridgeURL)
	}
	if c.Bridge.HealthAttempts != DefaultHealthAttempts {
		t.Errorf("Bridge.HealthAttempts = %d, want %d", c.Bridge.HealthAttempts, DefaultHealthAttempts)
	}
	if c.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", c.LogLevel)
	}
}

func TestSaveThenLoadMergesDefaults(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	in := Config{Bridge: BridgeConfig{Path: "/opt/kyco/bridge", HealthAttempts: 5}}
	if err := Save(in); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	info, err := os.Stat(filepath.Join(base, "kyco", "config.json"))
	if err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config perm = %o, want 600", perm)
	}

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.Bridge.Path != "/opt/kyco/bridge" {
		t.Errorf("Bridge.Path = %q", c.Bridge.Path)
	}
	if c.Bridge.HealthAttempts != 5 {
		t.Errorf("Bridge.HealthAttempts = %d, want 5", c.Bridge.HealthAttempts)
	}
	if c.Bridge.Runtime != DefaultRuntime {
		t.Errorf("Bridge.Runtime = %q, want default %q", c.Bridge.Runtime, DefaultRuntime)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvBridgePath, "/env/bridge")
	t.Setenv(EnvBridgeURL, "http://127.0.0.1:9999")
	t.Setenv(EnvLogLevel, "debug")

	c := ApplyEnv(Default())
	if c.Bridge.Path != "/env/bridge" {
		t.Errorf("Bridge.Path = %q", c.Bridge.Path)
	}
	if c.Bridge.URL != "http://127.0.0.1:9999" {
		t.Errorf("Bridge.URL = %q", c.Bridge.URL)
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", c.LogLevel)
	}
	if c.Bridge.Port() != 9999 {
		t.Errorf("Port() = %d, want 9999", c.Bridge.Port())
	}
}

func TestDurations(t *testing.T) {
	b := Default().Bridge
	if b.WarmUp() != time.Second {
		t.Errorf("WarmUp() = %v", b.WarmUp())
	}
	if b.HealthInterval() != 500*time.Millisecond {
		t.Errorf("HealthInterval() = %v", b.HealthInterval())
	}
	if (BridgeConfig{URL: "http://localhost"}).Port() != 17432 {
		t.Error("Port() without explicit port should fall back to 17432")
	}
}
