package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/mofyally02/atozbot/internal/tracker"
)

var _ Reporter = (*LogReporter)(nil)

// LogReporter writes reports to the given logger as structured messages.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter returns a reporter that logs via slog.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger.With("component", "report")}
}

// ReportResults logs the totals and each job handled since the last report.
// Returns nil (stdout logging does not fail).
func (r *LogReporter) ReportResults(_ context.Context, s tracker.Summary) error {
	r.logger.Info("results report",
		"login", s.Login.Message,
		"logged_in", s.Login.Success,
		"session", s.SessionDuration.Round(time.Second).String(),
		"check_cycles", s.CheckCycles,
		"total_accepted", s.TotalAccepted,
		"total_rejected", s.TotalRejected,
		"accepted_since_last", s.AcceptedSinceLastReport,
		"rejected_since_last", s.RejectedSinceLastReport,
	)
	for _, j := range s.AcceptedJobs {
		r.logger.Info("accepted job",
			"ref", j.Ref, "language", j.Language,
			"appt_date", j.AppointmentDate, "appt_time", j.AppointmentTime,
			"accepted_at", j.AcceptedAt.Format(time.RFC3339),
		)
	}
	for _, j := range s.RejectedJobs {
		r.logger.Info("rejected job",
			"ref", j.Ref, "language", j.Language, "reason", j.Reason,
			"rejected_at", j.RejectedAt.Format(time.RFC3339),
		)
	}
	return nil
}

// ReportRejected logs the rejected jobs report.
func (r *LogReporter) ReportRejected(_ context.Context, s tracker.RejectedSummary) error {
	r.logger.Info("rejected jobs report",
		"session", s.SessionDuration.Round(time.Second).String(),
		"interval", s.Interval.String(),
		"total_rejected", s.TotalRejected,
		"rejected_since_last", s.RejectedSinceLastReport,
	)
	for _, j := range s.Jobs {
		r.logger.Info("rejected job",
			"ref", j.Ref, "language", j.Language,
			"appt_date", j.AppointmentDate, "appt_time", j.AppointmentTime,
			"reason", j.Reason,
		)
	}
	return nil
}
