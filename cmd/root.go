// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for kyco.
// It implements subcommands for running agent queries through the local
// bridge, supervising the bridge process, inspecting and archiving sessions,
// steering running sessions, and managing vendor API keys, using the Cobra
// CLI framework and pterm for terminal output.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"kyco/cli/internal/bridge"
	"kyco/cli/internal/command"
	"kyco/cli/internal/config"
	"kyco/cli/internal/keychain"
	"kyco/cli/internal/locator"
	"kyco/cli/internal/logging"
	"kyco/cli/internal/supervisor"
	"kyco/cli/internal/xdg"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
	verbose     bool
	flagURL     string
	flagPath    string

	// cfg is the effective configuration: file, then env, then flags.
	cfg config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "kyco",
	Short:         "Run Claude and Codex agent sessions through the local kyco bridge",
	Long:          `kyco drives coding agents through a local bridge process. It starts the bridge when needed, streams agent events to the terminal, and lets you steer running sessions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		c = config.ApplyEnv(c)
		if flagURL != "" {
			c.Bridge.URL = flagURL
		}
		if flagPath != "" {
			c.Bridge.Path = flagPath
		}
		cfg = c

		logDir := ""
		if dir, err := xdg.StateDir(); err == nil {
			logDir = filepath.Join(dir, "logs")
		}
		return logging.Init(logDir, cfg.LogLevel, verbose)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Close()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("kyco %s\n", Version)
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			defer cancel()
			if h, err := newClient().Health(ctx); err == nil && h.Version != "" {
				fmt.Printf("bridge %s\n", h.Version)
			} else {
				fmt.Println("bridge not running")
			}
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI and bridge version information")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&flagURL, "bridge-url", "", "Bridge base URL (default from config or "+config.EnvBridgeURL+")")
	rootCmd.PersistentFlags().StringVar(&flagPath, "bridge-path", "", "Bridge directory, bypassing discovery (also "+config.EnvBridgePath+")")
}

// newClient returns a bridge client for the configured URL.
func newClient() *bridge.Client {
	return bridge.NewClient(bridge.NewEndpoint(cfg.Bridge.URL), slog.Default())
}

// newLocator returns a locator that installs the configured bridge release
// when no local copy is found.
func newLocator() *locator.Locator {
	log := slog.Default()
	inst := &locator.Installer{
		Version: cfg.Bridge.Version,
		URL:     cfg.Bridge.DownloadURL,
		SHA256:  cfg.Bridge.SHA256,
		Runner:  command.Exec{Log: log},
		Log:     log,
	}
	return locator.New(cfg.Bridge.Path, inst, log)
}

// newSupervisor wires a supervisor for client. Stored API keys are passed
// to a spawned bridge through its environment.
func newSupervisor(client *bridge.Client) *supervisor.Supervisor {
	log := slog.Default()
	opts := supervisor.OptionsFromConfig(cfg.Bridge)
	if km, err := keychain.GetManager(); err == nil {
		opts.Env = append(opts.Env, km.BridgeEnv()...)
	} else {
		log.Debug("keychain unavailable; bridge inherits environment only", "error", err)
	}
	return supervisor.New(client, newLocator(), command.Exec{Log: log}, opts, log)
}
