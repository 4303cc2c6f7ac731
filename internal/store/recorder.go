package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/mofyally02/atozbot/internal/model"
	"github.com/mofyally02/atozbot/internal/notifier"
	"github.com/mofyally02/atozbot/internal/tracker"
)

// Log levels written to system_logs.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARNING"
	LevelError = "ERROR"
)

var (
	_ tracker.Sink      = (*Recorder)(nil)
	_ notifier.Reporter = (*SessionReporter)(nil)
)

// Recorder mirrors one session's outcomes into the history. Write failures
// are logged and never reach the bot loop.
type Recorder struct {
	history   History
	sessionID string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewRecorder returns a recorder for sessionID.
func NewRecorder(h History, sessionID string, logger *slog.Logger) *Recorder {
	return &Recorder{
		history:   h,
		sessionID: sessionID,
		timeout:   5 * time.Second,
		logger:    logger.With("component", "recorder"),
	}
}

func (r *Recorder) OnAccepted(job model.AcceptedJob) {
	r.addJob(JobRow{
		SessionID: r.sessionID,
		JobRecord: job.JobRecord,
		Outcome:   OutcomeAccepted,
		ScrapedAt: job.AcceptedAt,
	})
}

func (r *Recorder) OnRejected(job model.RejectedJob) {
	r.addJob(JobRow{
		SessionID: r.sessionID,
		JobRecord: job.JobRecord,
		Outcome:   OutcomeRejected,
		Reason:    job.Reason,
		ScrapedAt: job.RejectedAt,
	})
}

// OnLoginStatus stores the login outcome on the session and in the log.
func (r *Recorder) OnLoginStatus(status tracker.LoginStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	login, level := "failed", LevelError
	if status.Success {
		login, level = "success", LevelInfo
	}
	if err := r.history.SetLoginStatus(ctx, r.sessionID, login); err != nil {
		r.logger.Warn("storing login status failed", "error", err)
	}
	r.log(ctx, level, "login", status.Message, status.At)
}

// Log writes one line to the session's system log.
func (r *Recorder) Log(level, component, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	r.log(ctx, level, component, message, time.Now())
}

func (r *Recorder) log(ctx context.Context, level, component, message string, at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	err := r.history.AddLog(ctx, LogEntry{
		SessionID: r.sessionID,
		Level:     level,
		Message:   message,
		Component: component,
		CreatedAt: at,
	})
	if err != nil {
		r.logger.Warn("writing system log failed", "error", err)
	}
}

func (r *Recorder) addJob(row JobRow) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.history.AddJob(ctx, row); err != nil {
		r.logger.Warn("recording job failed", "ref", row.Ref, "outcome", row.Outcome, "error", err)
	}
}

// SessionReporter keeps the session's counters in step with the tracker on
// every results report.
type SessionReporter struct {
	history   History
	sessionID string
}

func NewSessionReporter(h History, sessionID string) *SessionReporter {
	return &SessionReporter{history: h, sessionID: sessionID}
}

func (s *SessionReporter) ReportResults(ctx context.Context, sum tracker.Summary) error {
	return s.history.UpdateCounters(ctx, s.sessionID, Counters{
		TotalChecks:   sum.CheckCycles,
		TotalAccepted: sum.TotalAccepted,
		TotalRejected: sum.TotalRejected,
	})
}

// ReportRejected is a no-op; results reports already carry the totals.
func (s *SessionReporter) ReportRejected(context.Context, tracker.RejectedSummary) error {
	return nil
}
