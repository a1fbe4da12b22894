// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"sync"
	"time"

	kerrors "kyco/cli/internal/errors"
	"kyco/cli/internal/httperrors"
	"kyco/cli/internal/logging"
	"kyco/cli/internal/terminal"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// startSpinner shows a stick-style spinner in a pterm area that is removed
// when the returned stop function runs. On a non-interactive stdout nothing is
// drawn. Stop is safe to call more than once.
func startSpinner(text string) func() {
	if !terminal.IsInteractive() {
		return func() {}
	}
	cursor.Hide()
	area, err := pterm.DefaultArea.WithRemoveWhenDone(true).Start()
	if err != nil {
		cursor.Show()
		return func() {}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(120 * time.Millisecond)
		defer t.Stop()
		i := 0
		area.Update(fmt.Sprintf("%s %s", spinnerFrames[0], text))
		for {
			select {
			case <-t.C:
				i++
				area.Update(fmt.Sprintf("%s %s", spinnerFrames[i%len(spinnerFrames)], text))
			case <-stop:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			_ = area.Stop()
			cursor.Show()
		})
	}
}

// reportError prints a user-facing explanation of err. Transport failures
// get the network diagnosis; everything else the bridge error explanation.
func reportError(err error, doing string) error {
	if err == nil {
		return nil
	}
	if kerrors.Is(err, kerrors.ConnectionFailed) && httperrors.Classify(err) != httperrors.CauseUnknown {
		return httperrors.FormatNetworkError(err, doing, cfg.Bridge.URL)
	}
	logging.PresentBridgeError(err)
	return err
}
