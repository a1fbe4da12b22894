// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; vendor API keys go to the OS keychain.
package config

import (
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"kyco/cli/internal/xdg"
)

// Environment variables that override the config file.
const (
	EnvBridgePath = "KYCO_BRIDGE_PATH"
	EnvBridgeURL  = "KYCO_BRIDGE_URL"
	EnvLogLevel   = "KYCO_LOG_LEVEL"
)

// Defaults used when the config file is missing or a field is zero.
const (
	DefaultBridgeURL        = "http://127.0.0.1:17432"
	DefaultBridgeVersion    = "0.9.2"
	DefaultRuntime          = "node"
	DefaultPackageManager   = "npm"
	DefaultWarmUpMs         = 1000
	DefaultHealthAttempts   = 30
	DefaultHealthIntervalMs = 500
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel string       `json:"log_level"`
	Bridge   BridgeConfig `json:"bridge"`
}

// BridgeConfig controls where the bridge lives and how it is supervised.
type BridgeConfig struct {
	// Path bypasses discovery when set (also KYCO_BRIDGE_PATH).
	Path             string `json:"path"`
	URL              string `json:"url"`
	Version          string `json:"version"`
	DownloadURL      string `json:"download_url"`
	SHA256           string `json:"sha256"`
	Runtime          string `json:"runtime"`
	PackageManager   string `json:"package_manager"`
	WarmUpMs         int    `json:"warmup_ms"`
	HealthAttempts   int    `json:"health_attempts"`
	HealthIntervalMs int    `json:"health_interval_ms"`
}

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Bridge: BridgeConfig{
			URL:              DefaultBridgeURL,
			Version:          DefaultBridgeVersion,
			Runtime:          DefaultRuntime,
			PackageManager:   DefaultPackageManager,
			WarmUpMs:         DefaultWarmUpMs,
			HealthAttempts:   DefaultHealthAttempts,
			HealthIntervalMs: DefaultHealthIntervalMs,
		},
	}
}

// Load reads configuration; missing file returns defaults.
// Zero fields in an existing file are filled from defaults.
func Load() (Config, error) {
	c := Default()
	p, err := path()
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	var fromFile Config
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return c, err
	}
	return merge(c, fromFile), nil
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

// ApplyEnv overlays KYCO_* environment variables onto c.
func ApplyEnv(c Config) Config {
	if v := strings.TrimSpace(os.Getenv(EnvBridgePath)); v != "" {
		c.Bridge.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBridgeURL)); v != "" {
		c.Bridge.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	return c
}

// WarmUp returns the delay between spawning the bridge and the first health poll.
func (b BridgeConfig) WarmUp() time.Duration {
	return time.Duration(b.WarmUpMs) * time.Millisecond
}

// HealthInterval returns the delay between health polls.
func (b BridgeConfig) HealthInterval() time.Duration {
	return time.Duration(b.HealthIntervalMs) * time.Millisecond
}

// Port extracts the port from URL, falling back to the default bridge port.
func (b BridgeConfig) Port() int {
	if u, err := url.Parse(b.URL); err == nil {
		if p, err := strconv.Atoi(u.Port()); err == nil {
			return p
		}
	}
	return 17432
}

func merge(base, over Config) Config {
	if over.LogLevel != "" {
		base.LogLevel = over.LogLevel
	}
	b, o := &base.Bridge, over.Bridge
	if o.Path != "" {
		b.Path = o.Path
	}
	if o.URL != "" {
		b.URL = o.URL
	}
	if o.Version != "" {
		b.Version = o.Version
	}
	if o.DownloadURL != "" {
		b.DownloadURL = o.DownloadURL
	}
	if o.SHA256 != "" {
		b.SHA256 = o.SHA256
	}
	if o.Runtime != "" {
		b.Runtime = o.Runtime
	}
	if o.PackageManager != "" {
		b.PackageManager = o.PackageManager
	}
	if o.WarmUpMs > 0 {
		b.WarmUpMs = o.WarmUpMs
	}
	if o.HealthAttempts > 0 {
		b.HealthAttempts = o.HealthAttempts
	}
	if o.HealthIntervalMs > 0 {
		b.HealthIntervalMs = o.HealthIntervalMs
	}
	return base
}
