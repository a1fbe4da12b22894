// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package supervisor brings a bridge up and keeps track of it. Start reuses
// a bridge that already answers health probes, and otherwise resolves the
// bridge package, installs its dependencies, builds it, spawns it and polls
// it until healthy. A child is never left running on a failed start.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"kyco/cli/internal/bridge"
	"kyco/cli/internal/command"
	"kyco/cli/internal/config"
	kerrors "kyco/cli/internal/errors"
	"kyco/cli/internal/metrics"
)

// Resolver returns the bridge package directory. *locator.Locator satisfies it.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Options tune how the bridge is built, spawned and polled.
type Options struct {
	// Runtime and Entry form the command line, e.g. node dist/server.js.
	Runtime        string
	Entry          []string
	PackageManager string
	// Env is appended to the current process environment.
	Env []string

	WarmUp         time.Duration
	HealthAttempts int
	HealthInterval time.Duration
	ProbeTimeout   time.Duration
}

// OptionsFromConfig derives Options from the bridge config.
func OptionsFromConfig(b config.BridgeConfig) Options {
	return Options{
		Runtime:        b.Runtime,
		Entry:          []string{filepath.Join("dist", "server.js")},
		PackageManager: b.PackageManager,
		Env:            []string{"KYCO_BRIDGE_PORT=" + strconv.Itoa(b.Port())},
		WarmUp:         b.WarmUp(),
		HealthAttempts: b.HealthAttempts,
		HealthInterval: b.HealthInterval(),
	}
}

func (o Options) withDefaults() Options {
	if o.Runtime == "" {
		o.Runtime = config.DefaultRuntime
	}
	if len(o.Entry) == 0 {
		o.Entry = []string{filepath.Join("dist", "server.js")}
	}
	if o.PackageManager == "" {
		o.PackageManager = config.DefaultPackageManager
	}
	if o.HealthAttempts < 1 {
		o.HealthAttempts = config.DefaultHealthAttempts
	}
	if o.HealthInterval <= 0 {
		o.HealthInterval = config.DefaultHealthIntervalMs * time.Millisecond
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 2 * time.Second
	}
	return o
}

// Supervisor owns at most one bridge handle at a time.
type Supervisor struct {
	client   *bridge.Client
	resolver Resolver
	runner   command.Runner
	opts     Options
	log      *slog.Logger

	state atomic.Int32

	mu     sync.Mutex
	handle *Handle

	// lastPID is the most recently spawned child, kept for tests.
	lastPID int
}

// New creates a Supervisor. A nil runner uses command.Exec; a nil logger
// uses slog.Default().
func New(client *bridge.Client, resolver Resolver, runner command.Runner, opts Options, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "supervisor")
	if runner == nil {
		runner = command.Exec{Log: logger}
	}
	return &Supervisor{
		client:   client,
		resolver: resolver,
		runner:   runner,
		opts:     opts.withDefaults(),
		log:      logger,
	}
}

// State returns the current state.
func (s *Supervisor) State() State { return State(s.state.Load()) }

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	s.log.Debug("state", "state", st.String())
}

// Handle returns the current handle, or nil.
func (s *Supervisor) Handle() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Start returns a handle to a healthy bridge, spawning one if none answers.
// A previous owned handle is returned again while its child runs; a previous
// attached handle only while the bridge still answers a probe.
func (s *Supervisor) Start(ctx context.Context) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h := s.handle; h != nil && h.Alive() {
		// An attached bridge can vanish without notice; ask it again.
		if h.Ownership() == OwnedBridge || s.probe(ctx) {
			return h, nil
		}
		s.log.Info("attached bridge stopped answering", "url", s.client.Endpoint().BaseURL())
		h.Stop()
	}
	s.handle = nil

	s.setState(Probing)
	if s.probe(ctx) {
		s.setState(Attached)
		s.handle = newAttachedHandle(s.client)
		metrics.SupervisorStarts.WithLabelValues("attached").Inc()
		metrics.SetAlive(true)
		s.log.Info("attached to running bridge", "url", s.client.Endpoint().BaseURL())
		return s.handle, nil
	}

	h, err := s.spawnHealthy(ctx)
	if err != nil {
		s.setState(Failed)
		metrics.SupervisorStarts.WithLabelValues("failed").Inc()
		return nil, err
	}
	s.setState(Healthy)
	s.handle = h
	metrics.SupervisorStarts.WithLabelValues("owned").Inc()
	metrics.SetAlive(true)
	return h, nil
}

func (s *Supervisor) spawnHealthy(ctx context.Context) (*Handle, error) {
	dir, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	s.setState(Preparing)
	if err := s.prepare(ctx, dir); err != nil {
		return nil, err
	}
	s.setState(Building)
	if err := s.build(ctx, dir); err != nil {
		return nil, err
	}

	s.setState(Spawning)
	child, err := s.spawn(dir)
	if err != nil {
		return nil, err
	}
	s.lastPID = child.pid()
	healthy := false
	defer func() {
		if !healthy {
			child.terminate()
		}
	}()

	s.setState(Polling)
	probes, err := s.poll(ctx, child)
	if err != nil {
		return nil, err
	}
	healthy = true
	s.log.Info("bridge healthy", "pid", child.pid(), "dir", dir, "probes", probes)
	return newOwnedHandle(s.client, dir, child), nil
}

func (s *Supervisor) prepare(ctx context.Context, dir string) error {
	if exists(filepath.Join(dir, "node_modules")) {
		return nil
	}
	verb := "install"
	if exists(filepath.Join(dir, "package-lock.json")) {
		verb = "ci"
	}
	s.log.Info("installing bridge dependencies", "dir", dir, "cmd", s.opts.PackageManager+" "+verb)
	return s.runStep(ctx, "dependencies", dir, s.opts.PackageManager, verb)
}

func (s *Supervisor) build(ctx context.Context, dir string) error {
	if exists(filepath.Join(dir, "dist")) {
		return nil
	}
	s.log.Info("building bridge", "dir", dir)
	return s.runStep(ctx, "build", dir, s.opts.PackageManager, "run", "build")
}

func (s *Supervisor) runStep(ctx context.Context, step, dir, name string, args ...string) error {
	err := s.runner.Run(ctx, dir, name, args...)
	if err != nil {
		metrics.BootstrapSteps.WithLabelValues(step, "error").Inc()
		if !kerrors.Is(err, kerrors.InstallFailed) {
			err = kerrors.Wrap(kerrors.InstallFailed, step, err)
		}
		return err
	}
	metrics.BootstrapSteps.WithLabelValues(step, "ok").Inc()
	return nil
}

func (s *Supervisor) spawn(dir string) (*ownedProcess, error) {
	cmd := exec.Command(s.opts.Runtime, s.opts.Entry...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), s.opts.Env...)
	// Stdin, Stdout and Stderr stay nil: the child gets the null device.
	child, err := startProcess(cmd)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.ProcessFailed, fmt.Sprintf("spawn %s in %s", cmd.String(), dir), err)
	}
	s.log.Debug("bridge spawned", "pid", child.pid(), "cmd", cmd.String())
	return child, nil
}

// poll waits the warm-up delay, then probes health until it passes, the
// attempts run out, the child exits or ctx is done.
func (s *Supervisor) poll(ctx context.Context, child *ownedProcess) (int, error) {
	if err := sleepOrExit(ctx, s.opts.WarmUp, child); err != nil {
		return 0, kerrors.Wrap(kerrors.ProcessFailed, "bridge did not become healthy after 0 probes", err)
	}

	probes := 0
	for probes < s.opts.HealthAttempts {
		probes++
		if s.probe(ctx) {
			return probes, nil
		}
		if probes == s.opts.HealthAttempts {
			break
		}
		if err := sleepOrExit(ctx, s.opts.HealthInterval, child); err != nil {
			return probes, kerrors.Wrap(kerrors.ProcessFailed,
				fmt.Sprintf("bridge did not become healthy after %d probes", probes), err)
		}
	}
	return probes, kerrors.New(kerrors.ProcessFailed,
		fmt.Sprintf("bridge did not become healthy after %d probes", probes))
}

// probe makes a single health call bounded by the probe timeout.
func (s *Supervisor) probe(ctx context.Context) bool {
	timeout := s.opts.ProbeTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := s.client.Health(pctx)
	if err != nil {
		metrics.HealthProbes.WithLabelValues("fail").Inc()
		s.log.Debug("health probe failed", "error", err)
		return false
	}
	metrics.HealthProbes.WithLabelValues("ok").Inc()
	return true
}

// Stop stops the current handle, if any.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h != nil {
		h.Stop()
	}
	s.setState(Idle)
}

func sleepOrExit(ctx context.Context, d time.Duration, child *ownedProcess) error {
	if d <= 0 {
		if child.exited() {
			return fmt.Errorf("bridge exited: %v", child.waitErr)
		}
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-child.done:
		return fmt.Errorf("bridge exited: %v", child.waitErr)
	case <-t.C:
		return nil
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
