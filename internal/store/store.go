package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mofyally02/atozbot/internal/config"
	"github.com/mofyally02/atozbot/internal/model"
)

// Session statuses.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusFailed  = "failed"
)

// Job outcomes stored with each job record.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Session is one bot run.
type Session struct {
	ID            string     `json:"id"`
	Name          string     `json:"session_name"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Status        string     `json:"status"`
	LoginStatus   string     `json:"login_status"`
	TotalChecks   int64      `json:"total_checks"`
	TotalAccepted int        `json:"total_accepted"`
	TotalRejected int        `json:"total_rejected"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Counters are the session totals synced from the tracker.
type Counters struct {
	TotalChecks   int64
	TotalAccepted int
	TotalRejected int
}

// JobRow is a job the bot accepted or rejected.
type JobRow struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	model.JobRecord
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"rejection_reason,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// JobQuery filters job rows. Zero values mean "any".
type JobQuery struct {
	SessionID string
	Outcome   string
	Since     time.Time
	Limit     int
}

// LogEntry is one line of the session's system log.
type LogEntry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Component string    `json:"component"`
	CreatedAt time.Time `json:"created_at"`
}

// AnalyticsPeriod aggregates the jobs handled in [PeriodStart, PeriodEnd).
type AnalyticsPeriod struct {
	ID                 string         `json:"id"`
	PeriodStart        time.Time      `json:"period_start"`
	PeriodEnd          time.Time      `json:"period_end"`
	TotalJobs          int            `json:"total_jobs_processed"`
	Accepted           int            `json:"jobs_accepted"`
	Rejected           int            `json:"jobs_rejected"`
	AcceptanceRate     float64        `json:"acceptance_rate"`
	MostCommonLanguage string         `json:"most_common_language,omitempty"`
	PeakHour           int            `json:"peak_hour"` // -1 when no job had a readable time
	UptimeSeconds      int64          `json:"bot_uptime_seconds"`
	Languages          map[string]int `json:"language_distribution,omitempty"`
	Hours              map[int]int    `json:"hourly_distribution,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// History persists sessions, handled jobs, logs and analytics periods. It
// also remembers which refs were acted on so restarts do not repeat work.
type History interface {
	model.SeenStore

	CreateSession(ctx context.Context, s Session) error
	UpdateCounters(ctx context.Context, sessionID string, c Counters) error
	SetLoginStatus(ctx context.Context, sessionID, status string) error
	EndSession(ctx context.Context, sessionID, status string, at time.Time) error
	Sessions(ctx context.Context, limit int) ([]Session, error)

	AddJob(ctx context.Context, j JobRow) error
	Jobs(ctx context.Context, q JobQuery) ([]JobRow, error)

	AddLog(ctx context.Context, e LogEntry) error
	Logs(ctx context.Context, sessionID string, limit int) ([]LogEntry, error)

	AddAnalytics(ctx context.Context, p AnalyticsPeriod) error
	Analytics(ctx context.Context, limit int) ([]AnalyticsPeriod, error)

	// Cleanup removes analytics periods, logs, seen refs and accepted job
	// rows older than cutoff, and closes sessions left running since before
	// it. Rejected rows are kept.
	Cleanup(ctx context.Context, cutoff time.Time) error

	Close() error
}

// Open returns the History selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (History, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLiteStore(cfg.DSN)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	case "none", "":
		return NewNop(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func defaultLimit(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
