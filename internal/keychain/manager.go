// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain stores vendor API keys in the OS credential store so the
// bridge can be spawned with them in its environment. Keys never touch the
// config file.
//
// On macOS the native `security` tool is used when available; elsewhere the
// 99designs keyring picks the platform store (Keychain, Windows Credential
// Manager, Secret Service, pass).
package keychain

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "kyco"

// ErrNotFound is returned when no key is stored for a provider.
var ErrNotFound = errors.New("key not found")

// Provider names a vendor whose API key the bridge needs.
type Provider string

const (
	Anthropic Provider = "anthropic"
	OpenAI    Provider = "openai"
)

// providerEnv maps each provider to the variable the bridge reads.
var providerEnv = map[Provider]string{
	Anthropic: "ANTHROPIC_API_KEY",
	OpenAI:    "OPENAI_API_KEY",
}

// Providers returns the known providers in stable order.
func Providers() []Provider {
	out := make([]Provider, 0, len(providerEnv))
	for p := range providerEnv {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := providerEnv[p]; !ok {
		return "", fmt.Errorf("unknown provider %q (want one of %v)", s, Providers())
	}
	return p, nil
}

// EnvVar returns the environment variable for p.
func (p Provider) EnvVar() string { return providerEnv[p] }

func (p Provider) key() string { return "api_key_" + string(p) }

// Global keychain manager instance
var (
	globalManager *Manager
	mu            sync.Mutex
)

// Manager provides thread-safe access to stored API keys.
type Manager struct {
	mu      sync.RWMutex
	ring    keyring.Keyring
	backend keychainBackend
}

// keychainBackend is a native store used instead of the keyring library.
type keychainBackend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// NewManager opens the OS credential store.
func NewManager() (*Manager, error) {
	if runtime.GOOS == "darwin" {
		if backend, err := newSecurityBackend(); err == nil {
			return &Manager{backend: backend}, nil
		}
		// Fall through to keyring library if security command fails
	}

	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// NewManagerWithRing wraps an already opened keyring, e.g. keyring.NewArrayKeyring in tests.
func NewManagerWithRing(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the process-wide manager, retrying initialization on
// each call until it succeeds.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}
	m, err := NewManager()
	if err != nil {
		return nil, err
	}
	globalManager = m
	return globalManager, nil
}

// openRing opens the OS keyring using native platform backends only; there
// is no encrypted-file fallback.
func openRing() (keyring.Keyring, error) {
	var allowed []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		allowed = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowed = []keyring.BackendType{keyring.WinCredBackend}
	case "linux", "freebsd", "openbsd":
		allowed = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, fmt.Errorf("secure storage not supported on %s", runtime.GOOS)
	}

	cfg := keyring.Config{
		ServiceName:             ServiceName,
		AllowedBackends:         allowed,
		PassPrefix:              ServiceName,
		WinCredPrefix:           ServiceName,
		LibSecretCollectionName: ServiceName,
		KWalletAppID:            ServiceName,
		KWalletFolder:           ServiceName,
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. Install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	return ring, nil
}

// SetKey stores the API key for p.
func (m *Manager) SetKey(p Provider, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("empty API key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Set(p.key(), value)
	}
	return m.ring.Set(keyring.Item{Key: p.key(), Data: []byte(value), Label: "kyco " + string(p) + " API key"})
}

// Key returns the API key for p, or ErrNotFound.
func (m *Manager) Key(p Provider) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var value string
	if m.backend != nil {
		v, err := m.backend.Get(p.key())
		if err != nil {
			return "", err
		}
		value = v
	} else {
		it, err := m.ring.Get(p.key())
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		if err != nil {
			return "", err
		}
		value = string(it.Data)
	}
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// ClearKey removes the key for p. Removing a missing key is not an error.
func (m *Manager) ClearKey(p Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Delete(p.key())
	}
	if err := m.ring.Remove(p.key()); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}

// ClearAll removes every stored API key.
func (m *Manager) ClearAll() error {
	var errs []error
	for _, p := range Providers() {
		if err := m.ClearKey(p); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// BridgeEnv returns NAME=value entries for every stored key whose variable is
// not already set in the current environment.
func (m *Manager) BridgeEnv() []string {
	var env []string
	for _, p := range Providers() {
		if os.Getenv(p.EnvVar()) != "" {
			continue
		}
		if v, err := m.Key(p); err == nil {
			env = append(env, p.EnvVar()+"="+v)
		}
	}
	return env
}
