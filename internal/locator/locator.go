// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package locator finds the bridge package on disk, installing it from a
// release archive when no usable copy exists.
package locator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	kerrors "kyco/cli/internal/errors"
	"kyco/cli/internal/xdg"
)

// DirName is the directory name the bridge package is looked up under.
const DirName = "bridge"

// Manifest is the file that marks a directory as a bridge package.
const Manifest = "package.json"

// Locator resolves the bridge directory.
type Locator struct {
	// Override bypasses discovery when non-empty.
	Override  string
	Installer *Installer
	Log       *slog.Logger

	// Lookups, replaceable in tests.
	Executable func() (string, error)
	ConfigHome func() (string, error)
	WorkingDir func() (string, error)
}

// New returns a Locator using the process's real executable path, config
// home and working directory.
func New(override string, installer *Installer, logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{
		Override:   override,
		Installer:  installer,
		Log:        logger.With("component", "locator"),
		Executable: os.Executable,
		ConfigHome: xdg.ConfigHome,
		WorkingDir: os.Getwd,
	}
}

// Candidate is one place the bridge may live.
type Candidate struct {
	Source string
	Path   string
}

// Candidates returns the discovery order, excluding the override and the
// install fallback. Lookups that fail are skipped.
func (l *Locator) Candidates() []Candidate {
	var out []Candidate
	if l.Executable != nil {
		if exe, err := l.Executable(); err == nil {
			if resolved, err := filepath.EvalSymlinks(exe); err == nil {
				exe = resolved
			}
			dir := filepath.Dir(exe)
			out = append(out,
				Candidate{Source: "executable", Path: filepath.Join(dir, DirName)},
				Candidate{Source: "executable parent", Path: filepath.Join(dir, "..", DirName)},
			)
		}
	}
	if home, err := l.installHome(); err == nil {
		out = append(out, Candidate{Source: "config home", Path: filepath.Join(home, DirName)})
	}
	if l.WorkingDir != nil {
		if wd, err := l.WorkingDir(); err == nil {
			out = append(out, Candidate{Source: "working directory", Path: filepath.Join(wd, DirName)})
		}
	}
	return out
}

// Find returns the first existing candidate without installing anything.
func (l *Locator) Find() (string, bool, error) {
	if l.Override != "" {
		dir, err := l.override()
		return dir, err == nil, err
	}
	for _, c := range l.Candidates() {
		if IsBridgeDir(c.Path) {
			return filepath.Clean(c.Path), true, nil
		}
	}
	return "", false, nil
}

// Resolve returns the bridge directory. It returns the override when set,
// otherwise the first valid candidate, otherwise it installs into
// <config home>/bridge and returns that.
func (l *Locator) Resolve(ctx context.Context) (string, error) {
	if l.Override != "" {
		return l.override()
	}
	for _, c := range l.Candidates() {
		if IsBridgeDir(c.Path) {
			dir := filepath.Clean(c.Path)
			l.Log.Debug("bridge found", "source", c.Source, "path", dir)
			return dir, nil
		}
	}

	home, err := l.installHome()
	if err != nil {
		return "", kerrors.Wrap(kerrors.InstallFailed, "resolve install location", err)
	}
	if l.Installer == nil {
		return "", kerrors.New(kerrors.InstallFailed, "bridge not found and no installer configured")
	}
	target := filepath.Join(home, DirName)
	l.Log.Info("bridge not found, installing", "target", target, "url", l.Installer.ArchiveURL())
	if err := l.Installer.Install(ctx, target); err != nil {
		return "", err
	}
	return target, nil
}

func (l *Locator) override() (string, error) {
	dir, err := filepath.Abs(l.Override)
	if err != nil {
		return "", kerrors.Wrap(kerrors.ConfigInvalid, fmt.Sprintf("bridge path %q", l.Override), err)
	}
	if !IsBridgeDir(dir) {
		return "", kerrors.New(kerrors.ConfigInvalid,
			fmt.Sprintf("bridge path %q is not a directory containing %s", dir, Manifest))
	}
	return dir, nil
}

func (l *Locator) installHome() (string, error) {
	if l.ConfigHome == nil {
		return xdg.ConfigHome()
	}
	return l.ConfigHome()
}

// IsBridgeDir reports whether dir is a directory holding a package.json.
func IsBridgeDir(dir string) bool {
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return false
	}
	m, err := os.Stat(filepath.Join(dir, Manifest))
	return err == nil && m.Mode().IsRegular()
}
