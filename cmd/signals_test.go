package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"kyco/cli/internal/bridge"
)

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not cancelled")
	}
}

func TestHandleInterrupts_CancelsBeforeSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var session atomic.Value
	session.Store("")
	sigs := make(chan os.Signal, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		handleInterrupts(ctx, cancel, sigs, bridge.NewClient(bridge.NewEndpoint("http://127.0.0.1:1"), nil), bridge.Claude, &session)
	}()
	sigs <- os.Interrupt
	waitDone(t, ctx)
	<-done
}

func TestHandleInterrupts_InterruptThenAbort(t *testing.T) {
	var paths atomic.Value
	paths.Store("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths.Store(r.Method + " " + r.URL.EscapedPath())
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	tests := []struct {
		backend bridge.Backend
		want    string
	}{
		{bridge.Claude, "POST /claude/interrupt/ses-1"},
		{bridge.Codex, "POST /codex/interrupt/ses-1"},
	}
	for _, tt := range tests {
		t.Run(tt.backend.Name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			var session atomic.Value
			session.Store("ses-1")
			sigs := make(chan os.Signal, 1)
			go handleInterrupts(ctx, cancel, sigs, bridge.NewClient(bridge.NewEndpoint(srv.URL), nil), tt.backend, &session)

			sigs <- os.Interrupt
			deadline := time.Now().Add(5 * time.Second)
			for paths.Load() != tt.want && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}
			if got := paths.Load(); got != tt.want {
				t.Fatalf("bridge saw %q, want %q", got, tt.want)
			}
			if ctx.Err() != nil {
				t.Fatal("first signal cancelled the query")
			}

			sigs <- os.Interrupt
			waitDone(t, ctx)
		})
	}
}
