// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package supervisor

import (
	"os/exec"
	"sync"
	"sync/atomic"
)

// ownedProcess is a spawned child that is always reaped. A goroutine waits
// on it from the start so exit is observed even without a kill.
type ownedProcess struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
	once    sync.Once

	// terminations counts terminate calls, including no-op repeats.
	terminations atomic.Int32
}

func startProcess(cmd *exec.Cmd) (*ownedProcess, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &ownedProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *ownedProcess) pid() int { return p.cmd.Process.Pid }

// exited reports whether the child has already been reaped.
func (p *ownedProcess) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// terminate kills the child and blocks until it is reaped. Safe to call
// any number of times and after the child exited on its own.
func (p *ownedProcess) terminate() {
	p.terminations.Add(1)
	p.once.Do(func() {
		// os.ErrProcessDone when the child already exited.
		_ = p.cmd.Process.Kill()
		<-p.done
	})
}
