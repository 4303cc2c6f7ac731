package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/mofyally02/atozbot/internal/model"
	"github.com/mofyally02/atozbot/internal/tracker"
)

// Reporter emits the periodic reports produced by the tracker.
type Reporter interface {
	ReportResults(ctx context.Context, s tracker.Summary) error
	ReportRejected(ctx context.Context, s tracker.RejectedSummary) error
}

// Multi sends each report to every reporter and joins their errors.
type Multi []Reporter

var _ Reporter = Multi(nil)

func (m Multi) ReportResults(ctx context.Context, s tracker.Summary) error {
	var errs []error
	for _, r := range m {
		if err := r.ReportResults(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) ReportRejected(ctx context.Context, s tracker.RejectedSummary) error {
	var errs []error
	for _, r := range m {
		if err := r.ReportRejected(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendTestReport sends a results report with one sample job to verify the
// integration works.
func SendTestReport(ctx context.Context, r Reporter) error {
	now := time.Now()
	job := model.AcceptedJob{
		JobRecord: model.JobRecord{
			Ref:             "000000/1",
			SubmittedAt:     now.Format("02/01/2006 15:04"),
			AppointmentDate: now.Format("02/01/2006"),
			AppointmentTime: now.Format("15:04"),
			Duration:        "30 min",
			Language:        "Test",
			Status:          "Matched",
		},
		AcceptedAt: now,
	}
	return r.ReportResults(ctx, tracker.Summary{
		ReportTime:              now,
		Login:                   tracker.LoginStatus{Message: "Test report", Success: true, At: now},
		TotalAccepted:           1,
		AcceptedSinceLastReport: 1,
		AcceptedJobs:            []model.AcceptedJob{job},
	})
}
