// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package supervisor

import (
	"runtime"
	"sync"
	"sync/atomic"

	"kyco/cli/internal/bridge"
	"kyco/cli/internal/metrics"
)

// Handle is a ready bridge. An owned handle controls the child process it
// spawned; an attached handle merely points at a bridge someone else runs.
type Handle struct {
	client *bridge.Client
	dir    string

	// alive is shared with the exit watcher, which must not reference the
	// Handle itself or the cleanup below would never run.
	alive *atomic.Bool

	mu      sync.Mutex
	child   *ownedProcess
	pid     int
	cleanup runtime.Cleanup
}

func newAttachedHandle(client *bridge.Client) *Handle {
	h := &Handle{client: client, alive: new(atomic.Bool)}
	h.alive.Store(true)
	return h
}

func newOwnedHandle(client *bridge.Client, dir string, child *ownedProcess) *Handle {
	alive := new(atomic.Bool)
	alive.Store(true)
	h := &Handle{client: client, dir: dir, alive: alive, child: child, pid: child.pid()}

	go func() {
		<-child.done
		if alive.CompareAndSwap(true, false) {
			metrics.SetAlive(false)
		}
	}()
	h.cleanup = runtime.AddCleanup(h, func(p *ownedProcess) { p.terminate() }, child)
	return h
}

// Client returns the protocol client bound to the bridge.
func (h *Handle) Client() *bridge.Client { return h.client }

// Dir returns the bridge directory, empty for attached handles.
func (h *Handle) Dir() string { return h.dir }

// PID returns the owned child's process id, or 0.
func (h *Handle) PID() int { return h.pid }

// Alive reports whether the bridge is believed to be running. It turns
// false after Stop and when an owned child exits by itself.
func (h *Handle) Alive() bool { return h.alive.Load() }

// Ownership reports whether Stop would terminate the bridge.
func (h *Handle) Ownership() Ownership {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.child != nil {
		return OwnedBridge
	}
	return AttachedBridge
}

// Stop kills and reaps an owned child and marks the handle dead.
// Attached bridges keep running. Calling Stop more than once is harmless.
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.alive.Swap(false) {
		metrics.SetAlive(false)
	}
	if h.child == nil {
		return
	}
	h.cleanup.Stop()
	h.child.terminate()
	h.child = nil
}
