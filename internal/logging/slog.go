// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var logFile *os.File

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Init installs the default slog logger. Records go to a daily file
// kyco-YYYY-MM-DD.log in logDir, and also to stderr when verbose.
// With an empty logDir only stderr (verbose) or nothing is written.
func Init(logDir, level string, verbose bool) error {
	var writers []io.Writer
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o700); err != nil {
			return err
		}
		name := "kyco-" + time.Now().Format("2006-01-02") + ".log"
		f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}
		logFile = f
		writers = append(writers, f)
	}
	lvl := ParseLevel(level)
	if verbose {
		writers = append(writers, os.Stderr)
		lvl = slog.LevelDebug
	}

	var w io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Value.Kind() {
			case slog.KindString:
				a.Value = slog.StringValue(Mask(a.Value.String()))
			case slog.KindAny:
				if err, ok := a.Value.Any().(error); ok {
					a.Value = slog.StringValue(Mask(err.Error()))
				}
			}
			return a
		},
	})
	slog.SetDefault(slog.New(handler))
	return nil
}

// Close closes the log file opened by Init.
func Close() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}
