// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package locator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"kyco/cli/internal/command"
	kerrors "kyco/cli/internal/errors"
	"kyco/cli/internal/metrics"
)

// DefaultDownloadURL is the release archive location; %s is the version.
const DefaultDownloadURL = "https://github.com/MAF2414/kyco/releases/download/bridge-v%s/kyco-bridge.tar.gz"

const archiveName = "kyco-bridge.tar.gz"

// Installer downloads and unpacks a bridge release.
type Installer struct {
	Version string
	// URL overrides the download location derived from Version.
	URL string
	// SHA256 is the expected hex digest of the archive; empty skips the check.
	SHA256 string
	Runner command.Runner
	Log    *slog.Logger
}

// ArchiveURL returns the URL the archive is fetched from.
func (i *Installer) ArchiveURL() string {
	if i.URL != "" {
		return i.URL
	}
	return fmt.Sprintf(DefaultDownloadURL, i.Version)
}

// Install fetches the archive into target and extracts it there. On failure
// target is removed again if this call created it.
func (i *Installer) Install(ctx context.Context, target string) (err error) {
	log := i.Log
	if log == nil {
		log = slog.Default()
	}
	runner := i.Runner
	if runner == nil {
		runner = command.Exec{Log: log}
	}

	created := false
	if _, statErr := os.Stat(target); errors.Is(statErr, fs.ErrNotExist) {
		created = true
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return kerrors.Wrap(kerrors.InstallFailed, fmt.Sprintf("create %s", target), err)
	}
	defer func() {
		if err != nil && created {
			if rmErr := os.RemoveAll(target); rmErr != nil {
				log.Warn("remove partial install", "target", target, "error", rmErr)
			}
		}
	}()

	archive := filepath.Join(target, archiveName)
	defer os.Remove(archive)

	url := i.ArchiveURL()
	if err := i.step(ctx, runner, "download", target, "curl", "-fsSL", "-o", archive, url); err != nil {
		return err
	}
	if i.SHA256 != "" {
		if err := verifySHA256(archive, i.SHA256); err != nil {
			metrics.BootstrapSteps.WithLabelValues("verify", "error").Inc()
			return kerrors.Wrap(kerrors.InstallFailed, fmt.Sprintf("verify %s", url), err)
		}
		metrics.BootstrapSteps.WithLabelValues("verify", "ok").Inc()
	}
	if err := i.step(ctx, runner, "extract", target, "tar", "-xzf", archive, "-C", target); err != nil {
		return err
	}
	if err := os.Remove(archive); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return kerrors.Wrap(kerrors.InstallFailed, "remove archive", err)
	}
	if !IsBridgeDir(target) {
		return kerrors.New(kerrors.InstallFailed, fmt.Sprintf("archive from %s has no %s at its root", url, Manifest))
	}

	log.Info("bridge installed", "target", target, "version", i.Version)
	return nil
}

func (i *Installer) step(ctx context.Context, r command.Runner, name, dir, prog string, args ...string) error {
	err := r.Run(ctx, dir, prog, args...)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.BootstrapSteps.WithLabelValues(name, result).Inc()
	if err != nil && !kerrors.Is(err, kerrors.InstallFailed) {
		return kerrors.Wrap(kerrors.InstallFailed, name, err)
	}
	return err
}

func verifySHA256(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, strings.TrimSpace(want)) {
		return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
	}
	return nil
}
