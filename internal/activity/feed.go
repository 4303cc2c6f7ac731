// Package activity keeps a live, capped feed of bot activity and the latest
// session metrics in Redis, for the dashboard to read while a bot runs.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mofyally02/atozbot/internal/model"
	"github.com/mofyally02/atozbot/internal/tracker"
)

// MaxEntries caps the feed per session.
const MaxEntries = 1000

var _ tracker.Sink = (*Feed)(nil)

// Entry is one line of the activity feed. Entries are stored as JSON.
type Entry struct {
	SessionID string    `json:"session_id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Component string    `json:"component"`
	Ref       string    `json:"ref,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewClient creates and verifies a Redis client connection.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// LogsKey is the list holding a session's feed, newest first.
func LogsKey(sessionID string) string { return "bot_logs:" + sessionID }

// MetricsKey is the hash holding a session's latest counters.
func MetricsKey(sessionID string) string { return "bot_metrics:" + sessionID }

// Feed writes one session's activity to Redis.
type Feed struct {
	rdb       *redis.Client
	sessionID string
	timeout   time.Duration
	logger    *slog.Logger
}

func NewFeed(rdb *redis.Client, sessionID string, logger *slog.Logger) *Feed {
	return &Feed{
		rdb:       rdb,
		sessionID: sessionID,
		timeout:   2 * time.Second,
		logger:    logger.With("component", "activity"),
	}
}

// Append pushes e onto the feed and trims it to MaxEntries.
func (f *Feed) Append(ctx context.Context, e Entry) error {
	if e.SessionID == "" {
		e.SessionID = f.sessionID
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal activity entry: %w", err)
	}

	key := LogsKey(f.sessionID)
	_, err = f.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, MaxEntries-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. Entries that do not
// decode are skipped.
func (f *Feed) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := f.rdb.LRange(ctx, LogsKey(f.sessionID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read activity: %w", err)
	}
	return decodeEntries(raw, f.logger), nil
}

// PublishMetrics stores the snapshot's counters in the session's metrics hash.
func (f *Feed) PublishMetrics(ctx context.Context, snap tracker.Snapshot) error {
	if err := f.rdb.HSet(ctx, MetricsKey(f.sessionID), metricsFields(snap)).Err(); err != nil {
		return fmt.Errorf("publish metrics: %w", err)
	}
	return nil
}

// Metrics reads the session's metrics hash.
func (f *Feed) Metrics(ctx context.Context) (map[string]string, error) {
	m, err := f.rdb.HGetAll(ctx, MetricsKey(f.sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read metrics: %w", err)
	}
	return m, nil
}

// Publish implements the scheduler's snapshot publisher.
func (f *Feed) Publish(snap tracker.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := f.PublishMetrics(ctx, snap); err != nil {
		f.logger.Warn("publishing metrics failed", "error", err)
	}
}

func (f *Feed) OnAccepted(job model.AcceptedJob) {
	f.record(Entry{
		Level:     "INFO",
		Component: "poller",
		Ref:       job.Ref,
		Message:   fmt.Sprintf("Accepted job %s (%s, %s %s)", job.Ref, job.Language, job.AppointmentDate, job.AppointmentTime),
		Timestamp: job.AcceptedAt,
	})
}

func (f *Feed) OnRejected(job model.RejectedJob) {
	f.record(Entry{
		Level:     "INFO",
		Component: "poller",
		Ref:       job.Ref,
		Message:   fmt.Sprintf("Rejected job %s: %s", job.Ref, job.Reason),
		Timestamp: job.RejectedAt,
	})
}

func (f *Feed) OnLoginStatus(status tracker.LoginStatus) {
	level := "INFO"
	if !status.Success {
		level = "ERROR"
	}
	f.record(Entry{Level: level, Component: "login", Message: status.Message, Timestamp: status.At})
}

func (f *Feed) record(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := f.Append(ctx, e); err != nil {
		f.logger.Warn("recording activity failed", "error", err)
	}
}

func decodeEntries(raw []string, logger *slog.Logger) []Entry {
	out := make([]Entry, 0, len(raw))
	for _, s := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			logger.Debug("skipping malformed activity entry", "error", err)
			continue
		}
		out = append(out, e)
	}
	return out
}

func metricsFields(snap tracker.Snapshot) map[string]any {
	fields := map[string]any{
		"total_checks":    strconv.FormatInt(snap.CheckCycles, 10),
		"total_accepted":  strconv.Itoa(snap.TotalAccepted),
		"total_rejected":  strconv.Itoa(snap.TotalRejected),
		"acceptance_rate": strconv.FormatFloat(snap.AcceptanceRate, 'f', 2, 64),
		"login_status":    loginField(snap.Login),
		"session_start":   snap.SessionStart.UTC().Format(time.RFC3339),
	}
	if !snap.LastActivity.IsZero() {
		fields["last_activity"] = snap.LastActivity.UTC().Format(time.RFC3339)
	}
	return fields
}

func loginField(l tracker.LoginStatus) string {
	switch {
	case l.At.IsZero():
		return "pending"
	case l.Success:
		return "success"
	default:
		return "failed"
	}
}
