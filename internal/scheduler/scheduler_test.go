package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/jobenrich/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CountingRunner records runs; when block is set each run waits on it.
type CountingRunner struct {
	calls   atomic.Int32
	started chan struct{}
	block   chan struct{}
	lastSel atomic.Value
}

func newCountingRunner() *CountingRunner {
	return &CountingRunner{started: make(chan struct{}, 10)}
}

func (r *CountingRunner) Run(_ context.Context, sel model.Selector) model.Summary {
	r.calls.Add(1)
	r.lastSel.Store(sel)
	r.started <- struct{}{}
	if r.block != nil {
		<-r.block
	}
	return model.Summary{TaskID: "t", Processed: 1, Succeeded: 1}
}

func TestNew_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		spec string
		sel  model.Selector
	}{
		{"bad spec", "every so often", model.Selector{All: true}},
		{"empty selector", "@every 1h", model.Selector{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(newCountingRunner(), tt.spec, tt.sel, discardLogger()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRun_ImmediateRunThenShutdown(t *testing.T) {
	runner := newCountingRunner()
	s, err := New(runner, "@every 1h", model.Selector{Company: "acme"}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an immediate run on start")
	}
	if sel := runner.lastSel.Load().(model.Selector); sel.Company != "acme" {
		t.Errorf("runner got selector %+v", sel)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if runner.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", runner.calls.Load())
	}
}

func TestJob_SkipsWhileStillRunning(t *testing.T) {
	runner := newCountingRunner()
	runner.block = make(chan struct{})
	s, err := New(runner, "@every 1h", model.Selector{All: true}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	go s.job.Run()
	<-runner.started

	// A tick arriving mid-run is dropped.
	s.job.Run()
	if runner.calls.Load() != 1 {
		t.Fatalf("calls = %d, want overlapping tick skipped", runner.calls.Load())
	}

	close(runner.block)
}

func TestJob_NoRunAfterCancel(t *testing.T) {
	runner := newCountingRunner()
	s, err := New(runner, "@every 1h", model.Selector{All: true}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.ctx = ctx

	s.job.Run()
	if runner.calls.Load() != 0 {
		t.Errorf("calls = %d, want 0 once shut down", runner.calls.Load())
	}
}
