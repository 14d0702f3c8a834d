package notifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/jobenrich/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestReporter(url string, client *http.Client) (*SlackReporter, *[]time.Duration) {
	r := NewSlackReporter(url, client, discardLogger())
	var slept []time.Duration
	r.sleep = func(d time.Duration) { slept = append(slept, d) }
	return r, &slept
}

func sampleRun(failed int) (model.EnrichmentTask, model.Summary) {
	task := model.EnrichmentTask{ID: "task-1", Status: model.TaskCompleted}
	s := model.Summary{TaskID: "task-1", Selector: "company=acme", Processed: 5 + failed, Succeeded: 5, Unchanged: 2, Duration: 1500 * time.Millisecond}
	for i := range failed {
		s.Failed++
		s.Errors = append(s.Errors, model.ItemError{JobID: fmt.Sprintf("job-%d", i), Message: "record malformed"})
	}
	return task, s
}

func TestSlackReporter_SendsSummary(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r, _ := newTestReporter(srv.URL, srv.Client())
	task, s := sampleRun(1)
	if err := r.Report(task, s); err != nil {
		t.Fatalf("Report = %v", err)
	}

	var p slackPayload
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.Blocks[0].Type != "header" || !strings.Contains(p.Blocks[0].Text.Text, "completed") {
		t.Errorf("header = %+v", p.Blocks[0])
	}
	if !strings.Contains(string(body), "company=acme") || !strings.Contains(string(body), "job-0") {
		t.Errorf("payload missing selector or failed job:\n%s", body)
	}
}

func TestSlackReporter_RetriesOnceOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r, slept := newTestReporter(srv.URL, srv.Client())
	task, s := sampleRun(0)
	if err := r.Report(task, s); err != nil {
		t.Fatalf("Report = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(*slept) != 1 || (*slept)[0] != 3*time.Second {
		t.Errorf("slept = %v, want [3s]", *slept)
	}
}

func TestSlackReporter_Non200(t *testing.T) {
	tests := []struct {
		name        string
		statuses    []int
		wantRetried bool
	}{
		{"server error", []int{http.StatusInternalServerError}, false},
		{"still limited after retry", []int{http.StatusTooManyRequests, http.StatusTooManyRequests}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(calls.Add(1)) - 1
				w.WriteHeader(tt.statuses[min(n, len(tt.statuses)-1)])
			}))
			defer srv.Close()

			r, _ := newTestReporter(srv.URL, srv.Client())
			task, s := sampleRun(0)
			err := r.Report(task, s)

			var se *SlackStatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SlackStatusError, got %v", err)
			}
			if se.Retried != tt.wantRetried {
				t.Errorf("Retried = %v, want %v", se.Retried, tt.wantRetried)
			}
		})
	}
}

func TestBuildPayload_CapsFailureList(t *testing.T) {
	task, s := sampleRun(maxListedFailures + 4)
	p := buildPayload(task, s)

	var failures string
	for _, b := range p.Blocks {
		if b.Text != nil && strings.HasPrefix(b.Text.Text, "*Failed jobs:*") {
			failures = b.Text.Text
		}
	}
	if got := strings.Count(failures, "\n• "); got != maxListedFailures {
		t.Errorf("listed %d failures, want %d", got, maxListedFailures)
	}
	if !strings.Contains(failures, "and 4 more") {
		t.Errorf("missing overflow line:\n%s", failures)
	}
	if !strings.Contains(p.Blocks[0].Text.Text, "⚠️") {
		t.Errorf("partial failure should use warning icon, got %q", p.Blocks[0].Text.Text)
	}
}

func TestBuildPayload_FailedRun(t *testing.T) {
	task := model.EnrichmentTask{ID: "t", Status: model.TaskFailed}
	p := buildPayload(task, model.Summary{Err: model.ErrInvalidSelector})

	if !strings.Contains(p.Text, "❌") || !strings.Contains(p.Text, "failed") {
		t.Errorf("fallback text = %q", p.Text)
	}
	found := false
	for _, b := range p.Blocks {
		if b.Text != nil && strings.Contains(b.Text.Text, "invalid selector") {
			found = true
		}
	}
	if !found {
		t.Error("run error should be shown")
	}
}

func TestSendTestReport(t *testing.T) {
	rec := &recordingReporter{}
	if err := SendTestReport(rec); err != nil {
		t.Fatalf("SendTestReport = %v", err)
	}
	if rec.summary.Processed != 3 || rec.task.Status != model.TaskCompleted {
		t.Errorf("unexpected synthetic run: %+v %+v", rec.task, rec.summary)
	}
}

type recordingReporter struct {
	task    model.EnrichmentTask
	summary model.Summary
}

func (r *recordingReporter) Report(task model.EnrichmentTask, s model.Summary) error {
	r.task, r.summary = task, s
	return nil
}
