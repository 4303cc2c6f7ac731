package poller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mofyally02/atozbot/internal/filter"
	"github.com/mofyally02/atozbot/internal/model"
)

// QuickChecker scans the list for matched jobs of one category. It never
// accepts or rejects anything.
type QuickChecker struct {
	source   JobSource
	details  model.DetailFetcher
	category string
	logger   *slog.Logger
}

// NewQuickChecker creates a checker. An empty category counts every matched
// job without opening detail pages.
func NewQuickChecker(source JobSource, details model.DetailFetcher, category string, logger *slog.Logger) *QuickChecker {
	return &QuickChecker{
		source:   source,
		details:  details,
		category: category,
		logger:   logger.With("component", "quick_check"),
	}
}

// Check returns how many listed jobs match the category.
func (q *QuickChecker) Check(ctx context.Context) (int, error) {
	jobs, err := q.Matches(ctx)
	return len(jobs), err
}

// Matches returns the listed jobs that match the category.
func (q *QuickChecker) Matches(ctx context.Context) ([]model.JobRecord, error) {
	jobs, err := q.source.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("quick check: %w", err)
	}

	var matches []model.JobRecord
	navigated := false
	for _, job := range jobs {
		if !strings.Contains(strings.ToLower(job.Status), "matched") {
			continue
		}
		if q.category == "" {
			matches = append(matches, job)
			continue
		}
		if job.DetailURL == "" || ctx.Err() != nil {
			continue
		}

		navigated = true
		text, err := q.details.InterpreterDetails(ctx, job.DetailURL)
		if err != nil {
			q.logger.Warn("reading job details failed", "ref", job.Ref, "error", err)
			continue
		}
		if filter.MatchesCategory(text, q.category) {
			matches = append(matches, job)
		}
	}

	if navigated {
		if err := q.source.Open(ctx); err != nil {
			return matches, fmt.Errorf("quick check: reopening list: %w", err)
		}
	}
	for _, job := range matches {
		q.logger.Debug("category match", "ref", job.Ref, "language", job.Language, "category", q.category)
	}
	return matches, nil
}
