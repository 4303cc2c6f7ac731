package poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mofyally02/atozbot/internal/model"
	"github.com/mofyally02/atozbot/internal/tracker"
)

// JobSource is the job list view.
type JobSource interface {
	// Open navigates back to the job list.
	Open(ctx context.Context) error
	// Refresh reloads the list and extracts its rows. An empty slice means
	// "nothing this cycle".
	Refresh(ctx context.Context) ([]model.JobRecord, error)
}

// Classifier decides what to do with one job. It may navigate to the job's
// detail page, in which case the verdict is marked Inspected.
type Classifier interface {
	Classify(ctx context.Context, job model.JobRecord) model.Verdict
}

// Executor performs the accept and reject UI actions.
type Executor interface {
	Accept(ctx context.Context, job model.JobRecord) bool
	Reject(ctx context.Context) bool
}

// BoardPoller owns one pass over the job list:
// refresh → extract → classify → act → track → mark seen.
type BoardPoller struct {
	source    JobSource
	classify  Classifier
	exec      Executor
	tracker   *tracker.Tracker
	seen      model.SeenStore
	maxAccept int
	logger    *slog.Logger
}

// NewBoardPoller creates a poller wired with all its dependencies.
func NewBoardPoller(
	source JobSource,
	classify Classifier,
	exec Executor,
	tr *tracker.Tracker,
	seen model.SeenStore,
	maxAccept int,
	logger *slog.Logger,
) *BoardPoller {
	return &BoardPoller{
		source:    source,
		classify:  classify,
		exec:      exec,
		tracker:   tr,
		seen:      seen,
		maxAccept: maxAccept,
		logger:    logger.With("component", "poller"),
	}
}

// Poll runs one cycle and returns the number of jobs accepted or rejected.
// At most maxAccept accept actions are attempted per cycle. The list view is
// re-opened after every detail navigation or action so the next job is
// handled from the list.
func (p *BoardPoller) Poll(ctx context.Context) (int, error) {
	jobs, err := p.source.Refresh(ctx)
	if err != nil {
		return 0, fmt.Errorf("polling board: %w", err)
	}

	var attempts, accepted, rejected, skipped int
	for _, job := range jobs {
		if attempts >= p.maxAccept {
			p.logger.Info("accept cap reached", "cap", p.maxAccept)
			break
		}
		if ctx.Err() != nil {
			break
		}

		seen, err := p.seen.HasSeen(job.Ref)
		if err != nil {
			return accepted + rejected, fmt.Errorf("polling board: checking seen status: %w", err)
		}
		if seen {
			continue
		}

		verdict := p.classify.Classify(ctx, job)
		switch verdict.Decision {
		case model.Reject:
			if p.exec.Reject(ctx) {
				p.tracker.AddRejected(job, verdict.Reason)
				rejected++
				p.logger.Info("rejected job", "ref", job.Ref, "language", job.Language, "reason", verdict.Reason)
				if err := p.seen.MarkSeen(job.Ref); err != nil {
					return accepted + rejected, fmt.Errorf("polling board: marking seen: %w", err)
				}
			} else {
				p.logger.Warn("reject control not found", "ref", job.Ref)
			}

		case model.Accept:
			// The accept control lives on the list.
			if err := p.source.Open(ctx); err != nil {
				return accepted + rejected, fmt.Errorf("polling board: reopening list: %w", err)
			}
			attempts++
			if p.exec.Accept(ctx, job) {
				p.tracker.AddAccepted(job)
				accepted++
				p.logger.Info("accepted job",
					"ref", job.Ref,
					"language", job.Language,
					"appt_date", job.AppointmentDate,
					"appt_time", job.AppointmentTime,
				)
				if err := p.seen.MarkSeen(job.Ref); err != nil {
					return accepted + rejected, fmt.Errorf("polling board: marking seen: %w", err)
				}
			} else {
				p.logger.Warn("accept failed, leaving job for a later cycle", "ref", job.Ref)
			}

		default:
			skipped++
			if !verdict.Inspected {
				continue
			}
			p.logger.Debug("skipped job", "ref", job.Ref, "reason", verdict.Reason)
		}

		if err := p.source.Open(ctx); err != nil {
			return accepted + rejected, fmt.Errorf("polling board: reopening list: %w", err)
		}
	}

	if len(jobs) > 0 {
		p.logger.Debug("polled board",
			"listed", len(jobs),
			"accepted", accepted,
			"rejected", rejected,
			"skipped", skipped,
		)
	}
	return accepted + rejected, nil
}
