package board

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mofyally02/atozbot/internal/model"
)

// Board reads the job list and job detail pages through a browser page.
type Board struct {
	page        model.Page
	jobsURL     string
	listTimeout time.Duration
	logger      *slog.Logger
}

// New returns a Board for the job list at jobsURL.
func New(page model.Page, jobsURL string, listTimeout time.Duration, logger *slog.Logger) *Board {
	return &Board{
		page:        page,
		jobsURL:     jobsURL,
		listTimeout: listTimeout,
		logger:      logger.With("component", "board"),
	}
}

var _ model.DetailFetcher = (*Board)(nil)

// Open navigates to the job list.
func (b *Board) Open(ctx context.Context) error {
	if err := b.page.Navigate(ctx, b.jobsURL); err != nil {
		return fmt.Errorf("open job list: %w", err)
	}
	return nil
}

// Refresh reloads the job list and extracts it.
func (b *Board) Refresh(ctx context.Context) ([]model.JobRecord, error) {
	if err := b.Open(ctx); err != nil {
		return nil, err
	}
	return b.Extract(ctx), nil
}

// Extract reads the job list currently displayed. It never fails: a list that
// does not render in time, or HTML that cannot be read, yields no jobs.
func (b *Board) Extract(ctx context.Context) []model.JobRecord {
	if err := b.waitList(ctx); err != nil {
		if model.IsTimeout(err) {
			b.logger.Debug("job list not ready", "error", err)
		} else {
			b.logger.Warn("waiting for job list failed", "error", err)
		}
		return nil
	}
	html, err := b.page.HTML(ctx)
	if err != nil {
		b.logger.Warn("reading job list failed", "error", err)
		return nil
	}
	jobs, err := ParseJobList(html, b.jobsURL)
	if err != nil {
		b.logger.Warn("parsing job list failed", "error", err)
		return nil
	}
	b.logger.Debug("extracted jobs", "count", len(jobs))
	return jobs
}

// waitList waits for the job list container. Its error wraps
// model.ErrListNotReady.
func (b *Board) waitList(ctx context.Context) error {
	if err := b.page.WaitFor(ctx, ListContainerSelector, b.listTimeout); err != nil {
		return fmt.Errorf("%w: %w", model.ErrListNotReady, err)
	}
	return nil
}

// InterpreterDetails opens a job's detail page and returns its interpreter
// details text, or "" when the page does not show one.
func (b *Board) InterpreterDetails(ctx context.Context, detailURL string) (string, error) {
	if err := b.page.Navigate(ctx, detailURL); err != nil {
		return "", fmt.Errorf("open job detail: %w", err)
	}
	if err := b.page.WaitFor(ctx, DetailReadySelector, b.listTimeout); err != nil {
		b.logger.Debug("job detail not ready", "url", detailURL, "error", err)
		return "", nil
	}
	html, err := b.page.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("read job detail: %w", err)
	}
	return InterpreterDetails(html)
}
