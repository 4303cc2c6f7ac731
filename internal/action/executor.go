package action

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mofyally02/atozbot/internal/model"
)

const (
	acceptButtonSelector   = "button.btn.btn--primary"
	submitButtonSelector   = "button[type='submit']"
	hoursDialogSelector    = "#24HourModal"
	hoursContinueSelector  = "#24HourModal #continueButton"
	cancelDialogSelector   = "#cancelModal"
	cancelMessageSelector  = "#cancelModal textarea[name='message']"
	cancelSubmitSelector   = "#cancelModal .modal-footer .btn.btn--primary"
	rejectFormSelector     = "form[action*='matched/reject']"
	rejectControlSelector  = "button, input[type='submit']"
	rejectFallbackSelector = "input.btn.btn--reject, .btn.btn--reject"
)

// Executor clicks the accept and reject controls of the portal. Failures to
// find or click a control are reported as false, never as errors.
type Executor struct {
	page          model.Page
	dialogTimeout time.Duration
	idleTimeout   time.Duration
	justification string
	logger        *slog.Logger
}

// NewExecutor returns an Executor driving page. justification is typed into
// the cancellation-reason dialog when the portal asks for one.
func NewExecutor(page model.Page, dialogTimeout, idleTimeout time.Duration, justification string, logger *slog.Logger) *Executor {
	return &Executor{
		page:          page,
		dialogTimeout: dialogTimeout,
		idleTimeout:   idleTimeout,
		justification: justification,
		logger:        logger.With("component", "executor"),
	}
}

// AcceptFormSelector matches the accept form of one job on the job list.
func AcceptFormSelector(job model.JobRecord) string {
	return fmt.Sprintf("form[action*='/interpreter-jobs/%s/matched']", job.NumericRef())
}

// Accept clicks the accept button inside the job's own form on the job list,
// then confirms the duration dialog and the cancellation-reason dialog if the
// portal shows them.
func (e *Executor) Accept(ctx context.Context, job model.JobRecord) bool {
	if job.NumericRef() == "" {
		return false
	}
	btn, ok := e.acceptButton(ctx, job)
	if !ok {
		e.logger.Debug("accept control not found", "ref", job.Ref)
		return false
	}
	if err := btn.Click(); err != nil {
		e.logger.Warn("clicking accept failed", "ref", job.Ref, "error", err)
		return false
	}

	e.confirmHours(ctx, job)
	e.confirmCancellation(ctx, job)

	if err := e.page.WaitIdle(ctx, e.idleTimeout); err != nil {
		e.logger.Warn("page not idle after accept", "ref", job.Ref, "error", err)
	}
	return true
}

func (e *Executor) acceptButton(ctx context.Context, job model.JobRecord) (model.Element, bool) {
	forms, err := e.page.Query(ctx, AcceptFormSelector(job))
	if err != nil || len(forms) == 0 {
		return nil, false
	}
	for _, sel := range []string{acceptButtonSelector, submitButtonSelector} {
		btns, err := forms[0].Query(sel)
		if err == nil && len(btns) > 0 {
			return btns[0], true
		}
	}
	return nil, false
}

func (e *Executor) confirmHours(ctx context.Context, job model.JobRecord) {
	if e.page.WaitVisible(ctx, hoursDialogSelector, e.dialogTimeout) != nil {
		return
	}
	if err := e.page.Click(ctx, hoursContinueSelector); err != nil {
		e.logger.Warn("confirming hours dialog failed", "ref", job.Ref, "error", err)
	}
}

func (e *Executor) confirmCancellation(ctx context.Context, job model.JobRecord) {
	if e.page.WaitVisible(ctx, cancelDialogSelector, e.dialogTimeout) != nil {
		return
	}
	if err := e.page.Fill(ctx, cancelMessageSelector, e.justification); err != nil {
		e.logger.Warn("filling cancellation reason failed", "ref", job.Ref, "error", err)
		return
	}
	if err := e.page.Click(ctx, cancelSubmitSelector); err != nil {
		e.logger.Warn("submitting cancellation reason failed", "ref", job.Ref, "error", err)
	}
}

// Reject clicks the reject control of the job detail page currently open.
func (e *Executor) Reject(ctx context.Context) bool {
	target, ok := e.rejectControl(ctx)
	if !ok {
		e.logger.Debug("reject control not found")
		return false
	}
	if err := target.Click(); err != nil {
		e.logger.Warn("clicking reject failed", "error", err)
		return false
	}
	if err := e.page.WaitIdle(ctx, e.idleTimeout); err != nil {
		e.logger.Warn("page not idle after reject", "error", err)
	}
	return true
}

func (e *Executor) rejectControl(ctx context.Context) (model.Element, bool) {
	forms, err := e.page.Query(ctx, rejectFormSelector)
	if err == nil && len(forms) > 0 {
		if btns, err := forms[0].Query(rejectControlSelector); err == nil && len(btns) > 0 {
			return btns[0], true
		}
		return forms[0], true
	}
	btns, err := e.page.Query(ctx, rejectFallbackSelector)
	if err != nil || len(btns) == 0 {
		return nil, false
	}
	return btns[0], true
}
