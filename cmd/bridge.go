// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"kyco/cli/internal/healthsvc"
	"kyco/cli/internal/locator"
	"kyco/cli/internal/metrics"
	"kyco/cli/internal/supervisor"
	"kyco/cli/internal/xdg"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	grpcAddr    string
	metricsAddr string
	installDir  string
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Manage the local bridge process",
}

var bridgeRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bridge and keep it running in the foreground",
	Long: `The run command starts the bridge (or attaches to one that is already
listening) and stays in the foreground until interrupted. A bridge started here
is stopped on exit.

--grpc-addr serves grpc.health.v1 for the bridge, and --metrics-addr serves
prometheus metrics, so process managers can watch it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := newClient()
		sup := newSupervisor(client)
		stopSpin := startSpinner("Starting bridge")
		h, err := sup.Start(ctx)
		stopSpin()
		if err != nil {
			return reportError(err, "starting the bridge")
		}
		defer sup.Stop()

		switch h.Ownership() {
		case supervisor.OwnedBridge:
			pterm.Success.Printf("Bridge started (pid %d) from %s\n", h.PID(), h.Dir())
		default:
			pterm.Info.Printf("Attached to a bridge already running at %s\n", client.Endpoint().BaseURL())
		}

		alive := aliveFunc(ctx, h)
		if grpcAddr != "" {
			lis, err := net.Listen("tcp", grpcAddr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", grpcAddr, err)
			}
			hs := healthsvc.New(slog.Default())
			go func() {
				if err := hs.Serve(lis); err != nil {
					slog.Error("grpc health server stopped", "error", err)
				}
			}()
			defer hs.Stop()
			go hs.Watch(ctx, time.Second, alive)
		}
		if metricsAddr != "" {
			srv := &http.Server{Addr: metricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("metrics server stopped", "error", err)
				}
			}()
			defer srv.Close()
		}

		pterm.Println("Press Ctrl-C to stop.")
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				pterm.Info.Println("Stopping.")
				return nil
			case <-t.C:
				if h.Ownership() == supervisor.OwnedBridge && !h.Alive() {
					pterm.Error.Println("Bridge process exited.")
					return errors.New("bridge process exited")
				}
			}
		}
	},
}

// aliveFunc reports liveness of h. Owned bridges are tracked by their process;
// attached ones are probed over HTTP.
func aliveFunc(ctx context.Context, h *supervisor.Handle) func() bool {
	if h.Ownership() == supervisor.OwnedBridge {
		return h.Alive
	}
	return func() bool {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_, err := h.Client().Health(pctx)
		return err == nil
	}
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

var bridgeInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Download and unpack the configured bridge release",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := installDir
		if dir == "" {
			home, err := xdg.ConfigHome()
			if err != nil {
				return err
			}
			dir = filepath.Join(home, locator.DirName)
		}
		if locator.IsBridgeDir(dir) {
			pterm.Info.Printf("Bridge already installed at %s\n", dir)
			return nil
		}

		inst := newLocator().Installer
		stopSpin := startSpinner("Downloading " + inst.ArchiveURL())
		err := inst.Install(cmd.Context(), dir)
		stopSpin()
		if err != nil {
			return reportError(err, "installing the bridge")
		}
		pterm.Success.Printf("Bridge %s installed at %s\n", inst.Version, dir)
		return nil
	},
}

var bridgeLocateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Show where the bridge is searched for and which directory is used",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc := newLocator()
		data := pterm.TableData{{"Source", "Path", "Bridge"}}
		if loc.Override != "" {
			data = append(data, []string{"override", loc.Override, mark(locator.IsBridgeDir(loc.Override))})
		}
		for _, c := range loc.Candidates() {
			data = append(data, []string{c.Source, c.Path, mark(locator.IsBridgeDir(c.Path))})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}

		dir, ok, err := loc.Find()
		if err != nil {
			return reportError(err, "locating the bridge")
		}
		pterm.Println()
		if !ok {
			pterm.Warning.Println("No bridge found; 'kyco bridge install' or 'kyco query' will download one.")
			return nil
		}
		pterm.Success.Printf("Using %s\n", dir)
		return nil
	},
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "-"
}

var bridgeHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the bridge is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		client := newClient()
		h, err := client.Health(ctx)
		if err != nil {
			return reportError(err, "checking bridge health")
		}
		pterm.Success.Printf("Bridge at %s is %s", client.Endpoint().BaseURL(), h.Status)
		if h.Version != "" {
			pterm.Printf(" (version %s)", h.Version)
		}
		pterm.Println()
		return nil
	},
}

var bridgeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bridge version, uptime and active sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		st, err := newClient().Status(ctx)
		if err != nil {
			return reportError(err, "reading bridge status")
		}
		uptime := (time.Duration(st.UptimeSeconds) * time.Second).String()
		return pterm.DefaultTable.WithData(pterm.TableData{
			{"Version", st.Version},
			{"Uptime", uptime},
			{"Active sessions", fmt.Sprint(st.ActiveSessions)},
			{"Backends", joinOr(st.Backends, "-")},
		}).Render()
	},
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.AddCommand(bridgeRunCmd, bridgeInstallCmd, bridgeLocateCmd, bridgeHealthCmd, bridgeStatusCmd)
	bridgeRunCmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "Serve grpc.health.v1 on this address (e.g. 127.0.0.1:17433)")
	bridgeRunCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	bridgeInstallCmd.Flags().StringVar(&installDir, "dir", "", "Install into this directory (default: config home)")
}
