package notifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobenrich/internal/model"
)

// maxListedFailures caps the failed items spelled out in one message.
const maxListedFailures = 10

var _ model.Reporter = (*SlackReporter)(nil)

// SlackReporter posts run summaries to a Slack channel via Incoming Webhooks.
type SlackReporter struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
	sleep      func(time.Duration)
}

func NewSlackReporter(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackReporter {
	return &SlackReporter{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// Report sends the summary as a single Block Kit message. A 429 is retried
// once after the advertised Retry-After.
func (r *SlackReporter) Report(task model.EnrichmentTask, s model.Summary) error {
	body, err := json.Marshal(buildPayload(task, s))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := r.post(body)
	if err != nil {
		return err
	}
	retried := false
	if status == http.StatusTooManyRequests {
		r.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter)
		r.sleep(retryAfter)
		if status, _, err = r.post(body); err != nil {
			return fmt.Errorf("retry: %w", err)
		}
		retried = true
	}
	if status != http.StatusOK {
		return &SlackStatusError{StatusCode: status, Retried: retried}
	}

	r.logger.Info("slack report sent", "task_id", task.ID, "retried", retried)
	return nil
}

// SlackStatusError is a non-200 webhook response.
type SlackStatusError struct {
	StatusCode int
	Retried    bool
}

func (e *SlackStatusError) Error() string {
	if e.Retried {
		return fmt.Sprintf("slack returned %d on retry", e.StatusCode)
	}
	return fmt.Sprintf("slack returned %d", e.StatusCode)
}

func (r *SlackReporter) post(body []byte) (int, time.Duration, error) {
	resp, err := r.httpClient.Post(r.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	if secs <= 0 {
		secs = 1
	}
	return resp.StatusCode, time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.

type slackPayload struct {
	Text   string       `json:"text"` // notification fallback
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendTestReport sends a synthetic summary to verify the integration works.
func SendTestReport(r model.Reporter) error {
	now := time.Now()
	started := now.Add(-42 * time.Second)
	task := model.EnrichmentTask{
		ID:         "test-0000",
		Selector:   "company=jobenrich-test",
		Status:     model.TaskCompleted,
		Processed:  3,
		Succeeded:  2,
		Failed:     1,
		CreatedAt:  started,
		StartedAt:  &started,
		FinishedAt: &now,
	}
	summary := model.Summary{
		TaskID:    task.ID,
		Selector:  task.Selector,
		Processed: 3,
		Succeeded: 2,
		Unchanged: 1,
		Failed:    1,
		Errors: []model.ItemError{{
			JobID:   "test-job-3",
			Message: "job \"test-job-3\": missing title",
			Err:     errors.New("test failure"),
		}},
		Duration: 42 * time.Second,
	}
	return r.Report(task, summary)
}

func buildPayload(task model.EnrichmentTask, s model.Summary) slackPayload {
	icon := "✅"
	switch {
	case task.Status == model.TaskFailed:
		icon = "❌"
	case s.Failed > 0:
		icon = "⚠️"
	}
	headline := fmt.Sprintf("%s Enrichment run %s", icon, task.Status)

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: headline},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Selector:*\n" + s.Selector},
				{Type: "mrkdwn", Text: "*Duration:*\n" + s.Duration.Round(time.Millisecond).String()},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Processed:*\n%d", s.Processed)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Succeeded:*\n%d (%d unchanged)", s.Succeeded, s.Unchanged)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Failed:*\n%d", s.Failed)},
			},
		},
	}

	if s.Err != nil {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Run error:* `" + s.Err.Error() + "`"},
		})
	}

	if len(s.Errors) > 0 {
		var b strings.Builder
		b.WriteString("*Failed jobs:*")
		for i, e := range s.Errors {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "\n…and %d more", len(s.Errors)-maxListedFailures)
				break
			}
			fmt.Fprintf(&b, "\n• `%s`: %s", e.JobID, e.Message)
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: b.String()},
		})
	}

	blocks = append(blocks,
		slackBlock{
			Type:     "context",
			Elements: []slackText{{Type: "mrkdwn", Text: "task " + task.ID}},
		},
		slackBlock{Type: "divider"},
	)

	return slackPayload{Text: headline, Blocks: blocks}
}
