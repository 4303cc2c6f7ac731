package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mofyally02/atozbot/internal/store"
)

const (
	analyticsSpec   = "@every 4h"
	analyticsPeriod = 4 * time.Hour
	cleanupSpec     = "@every 24h"
)

// Housekeeper computes analytics periods and prunes old history on a cron
// schedule.
type Housekeeper struct {
	cron      *cron.Cron
	hist      store.History
	hub       *Hub
	runner    *Runner
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewHousekeeper creates a housekeeper. hub and runner may be nil.
func NewHousekeeper(hist store.History, hub *Hub, runner *Runner, retention time.Duration, logger *slog.Logger) *Housekeeper {
	return &Housekeeper{
		cron:      cron.New(),
		hist:      hist,
		hub:       hub,
		runner:    runner,
		retention: retention,
		now:       time.Now,
		logger:    logger.With("component", "housekeeper"),
	}
}

// Start registers the jobs and starts the cron scheduler.
func (h *Housekeeper) Start(ctx context.Context) error {
	if _, err := h.cron.AddFunc(analyticsSpec, func() {
		if _, err := h.RunAnalytics(ctx); err != nil {
			h.logger.Error("analytics job failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	if _, err := h.cron.AddFunc(cleanupSpec, func() {
		if err := h.RunCleanup(ctx); err != nil {
			h.logger.Error("cleanup job failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	h.cron.Start()
	h.logger.Info("housekeeping started", "analytics", analyticsSpec, "cleanup", cleanupSpec, "retention", h.retention.String())
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (h *Housekeeper) Stop() {
	<-h.cron.Stop().Done()
}

// RunAnalytics stores and broadcasts the analytics of the last period.
func (h *Housekeeper) RunAnalytics(ctx context.Context) (store.AnalyticsPeriod, error) {
	end := h.now()
	start := end.Add(-analyticsPeriod)

	rows, err := h.hist.Jobs(ctx, store.JobQuery{Since: start, Limit: 10000})
	if err != nil {
		return store.AnalyticsPeriod{}, fmt.Errorf("loading jobs for analytics: %w", err)
	}
	p := store.ComputeAnalytics(rows, start, end, h.uptime(start, end))
	if err := h.hist.AddAnalytics(ctx, p); err != nil {
		return p, fmt.Errorf("storing analytics: %w", err)
	}
	if h.hub != nil {
		h.hub.PublishAnalytics(p)
	}
	h.logger.Info("analytics period stored", "jobs", p.TotalJobs, "acceptance_rate", p.AcceptanceRate)
	return p, nil
}

// RunCleanup removes history older than the retention window.
func (h *Housekeeper) RunCleanup(ctx context.Context) error {
	cutoff := h.now().Add(-h.retention)
	if err := h.hist.Cleanup(ctx, cutoff); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	h.logger.Info("old history removed", "cutoff", cutoff.Format(time.RFC3339))
	return nil
}

// uptime is how long the current session has been running within [start, end].
func (h *Housekeeper) uptime(start, end time.Time) time.Duration {
	if h.runner == nil {
		return 0
	}
	st, running, _ := h.runner.Status()
	if !running {
		return 0
	}
	from := st.StartedAt
	if from.Before(start) {
		from = start
	}
	if from.After(end) {
		return 0
	}
	return end.Sub(from)
}
