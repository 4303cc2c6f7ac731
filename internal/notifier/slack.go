package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mofyally02/atozbot/internal/model"
	"github.com/mofyally02/atozbot/internal/retry"
	"github.com/mofyally02/atozbot/internal/tracker"
)

var _ Reporter = (*SlackReporter)(nil)

// maxListedJobs caps the job lines in one Slack message.
const maxListedJobs = 10

// SlackReporter posts reports to a Slack channel via Incoming Webhooks.
type SlackReporter struct {
	webhookURL string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewSlackReporter returns a reporter that posts Block Kit messages to Slack.
func NewSlackReporter(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackReporter {
	return &SlackReporter{
		webhookURL: webhookURL,
		httpClient: httpClient,
		maxRetries: 2,
		baseDelay:  time.Second,
		logger:     logger.With("component", "slack"),
	}
}

// ReportResults posts the results report. Reports without new activity are
// skipped so the channel is not flooded every few seconds.
func (s *SlackReporter) ReportResults(ctx context.Context, sum tracker.Summary) error {
	if !sum.HasActivity() {
		return nil
	}
	return s.post(ctx, buildResultsPayload(sum))
}

// ReportRejected posts the rejected jobs report.
func (s *SlackReporter) ReportRejected(ctx context.Context, sum tracker.RejectedSummary) error {
	return s.post(ctx, buildRejectedPayload(sum))
}

func (s *SlackReporter) post(ctx context.Context, payload slackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	err = retry.Do(ctx, s.maxRetries, s.baseDelay, s.logger, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build slack request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("post to slack: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			httpErr := &model.HTTPError{StatusCode: resp.StatusCode}
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				httpErr.RetryAfter = time.Duration(secs) * time.Second
			}
			return httpErr
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("slack report: %w", err)
	}
	s.logger.Debug("slack message sent")
	return nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(text string) slackText { return slackText{Type: "mrkdwn", Text: text} }

func buildResultsPayload(s tracker.Summary) slackPayload {
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "📊 AtoZ bot results"},
		},
		{
			Type: "section",
			Fields: []slackText{
				mrkdwn(fmt.Sprintf("*Accepted:*\n%d (+%d)", s.TotalAccepted, s.AcceptedSinceLastReport)),
				mrkdwn(fmt.Sprintf("*Rejected:*\n%d (+%d)", s.TotalRejected, s.RejectedSinceLastReport)),
				mrkdwn("*Session:*\n" + s.SessionDuration.Round(time.Second).String()),
				mrkdwn("*Login:*\n" + s.Login.Message),
			},
		},
	}

	var lines []string
	for _, j := range s.AcceptedJobs {
		lines = append(lines, fmt.Sprintf("✅ `%s` %s, %s %s", j.Ref, j.Language, j.AppointmentDate, j.AppointmentTime))
	}
	for _, j := range s.RejectedJobs {
		lines = append(lines, fmt.Sprintf("🚫 `%s` %s, %s", j.Ref, j.Language, j.Reason))
	}
	if text := jobLines(lines); text != "" {
		blocks = append(blocks, slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}})
	}

	blocks = append(blocks, slackBlock{Type: "divider"})
	return slackPayload{Blocks: blocks}
}

func buildRejectedPayload(s tracker.RejectedSummary) slackPayload {
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "❌ AtoZ bot rejected jobs"},
		},
		{
			Type: "section",
			Fields: []slackText{
				mrkdwn(fmt.Sprintf("*Total rejected:*\n%d", s.TotalRejected)),
				mrkdwn(fmt.Sprintf("*Since last report:*\n%d", s.RejectedSinceLastReport)),
			},
		},
	}

	var lines []string
	for _, j := range s.Jobs {
		lines = append(lines, fmt.Sprintf("🚫 `%s` %s, %s %s: %s", j.Ref, j.Language, j.AppointmentDate, j.AppointmentTime, j.Reason))
	}
	text := jobLines(lines)
	if text == "" {
		text = "No jobs rejected since the last report."
	}
	blocks = append(blocks,
		slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}},
		slackBlock{Type: "divider"},
	)
	return slackPayload{Blocks: blocks}
}

func jobLines(lines []string) string {
	if len(lines) > maxListedJobs {
		more := len(lines) - maxListedJobs
		lines = append(lines[:maxListedJobs:maxListedJobs], fmt.Sprintf("…and %d more", more))
	}
	return strings.Join(lines, "\n")
}
