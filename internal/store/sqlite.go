package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var _ History = (*SQLiteStore)(nil)

// Timestamps are stored as Unix nanoseconds so range filters compare numbers.
var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS bot_sessions (
	id             TEXT PRIMARY KEY,
	session_name   TEXT NOT NULL,
	start_time     INTEGER NOT NULL,
	end_time       INTEGER,
	status         TEXT NOT NULL DEFAULT 'running',
	login_status   TEXT NOT NULL DEFAULT 'pending',
	total_checks   INTEGER NOT NULL DEFAULT 0,
	total_accepted INTEGER NOT NULL DEFAULT 0,
	total_rejected INTEGER NOT NULL DEFAULT 0,
	updated_at     INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS job_records (
	id               TEXT PRIMARY KEY,
	session_id       TEXT REFERENCES bot_sessions(id) ON DELETE CASCADE,
	job_ref          TEXT NOT NULL,
	language         TEXT NOT NULL,
	appointment_date TEXT NOT NULL,
	appointment_time TEXT NOT NULL,
	duration         TEXT NOT NULL,
	submitted_at     TEXT NOT NULL,
	detail_url       TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	rejection_reason TEXT,
	scraped_at       INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS job_records_scraped_at ON job_records (scraped_at)`, `
CREATE TABLE IF NOT EXISTS analytics_periods (
	id                   TEXT PRIMARY KEY,
	period_start         INTEGER NOT NULL,
	period_end           INTEGER NOT NULL,
	total_jobs_processed INTEGER NOT NULL DEFAULT 0,
	jobs_accepted        INTEGER NOT NULL DEFAULT 0,
	jobs_rejected        INTEGER NOT NULL DEFAULT 0,
	acceptance_rate      REAL NOT NULL DEFAULT 0,
	most_common_language TEXT,
	peak_hour            INTEGER NOT NULL DEFAULT -1,
	bot_uptime_seconds   INTEGER NOT NULL DEFAULT 0,
	created_at           INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS system_logs (
	id         TEXT PRIMARY KEY,
	session_id TEXT REFERENCES bot_sessions(id) ON DELETE CASCADE,
	log_level  TEXT NOT NULL,
	message    TEXT NOT NULL,
	component  TEXT,
	created_at INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS seen_jobs (
	job_ref    TEXT PRIMARY KEY,
	first_seen INTEGER NOT NULL
)`,
}

// SQLiteStore keeps the session history in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the history tables exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer; the bot and the dashboard share the handle.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating history tables: %w", err)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// HasSeen returns true if the given ref has already been acted on.
func (s *SQLiteStore) HasSeen(ref string) (bool, error) {
	var exists int
	err := s.db.QueryRow("SELECT 1 FROM seen_jobs WHERE job_ref = ?", ref).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking seen status for %s: %w", ref, err)
	}
	return true, nil
}

// MarkSeen records a ref as acted on. If it already exists the call is a no-op.
func (s *SQLiteStore) MarkSeen(ref string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO seen_jobs (job_ref, first_seen) VALUES (?, ?)", ref, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("marking job %s as seen: %w", ref, err)
	}
	return nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_sessions (id, session_name, start_time, status, login_status, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.StartTime.UnixNano(), orDefault(sess.Status, StatusRunning),
		orDefault(sess.LoginStatus, "pending"), s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("creating session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateCounters(ctx context.Context, id string, c Counters) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE bot_sessions
		 SET total_checks = ?, total_accepted = ?, total_rejected = ?, updated_at = ?
		 WHERE id = ?`,
		c.TotalChecks, c.TotalAccepted, c.TotalRejected, s.now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) SetLoginStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE bot_sessions SET login_status = ?, updated_at = ? WHERE id = ?",
		status, s.now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("updating login status of session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) EndSession(ctx context.Context, id, status string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE bot_sessions SET status = ?, end_time = ?, updated_at = ? WHERE id = ?",
		status, at.UnixNano(), s.now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("ending session %s: %w", id, err)
	}
	return nil
}

// Sessions returns the most recent sessions, newest first.
func (s *SQLiteStore) Sessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_name, start_time, end_time, status, login_status,
		        total_checks, total_accepted, total_rejected, updated_at
		 FROM bot_sessions ORDER BY start_time DESC LIMIT ?`, defaultLimit(limit, 50))
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	out := make([]Session, 0)
	for rows.Next() {
		var (
			sess           Session
			start, updated int64
			end            sql.NullInt64
		)
		if err := rows.Scan(&sess.ID, &sess.Name, &start, &end, &sess.Status, &sess.LoginStatus,
			&sess.TotalChecks, &sess.TotalAccepted, &sess.TotalRejected, &updated); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.StartTime = fromNanos(start)
		sess.UpdatedAt = fromNanos(updated)
		if end.Valid {
			t := fromNanos(end.Int64)
			sess.EndTime = &t
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddJob(ctx context.Context, j JobRow) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_records (id, session_id, job_ref, language, appointment_date, appointment_time,
		                          duration, submitted_at, detail_url, status, rejection_reason, scraped_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, nullIfEmpty(j.SessionID), j.Ref, j.Language, j.AppointmentDate, j.AppointmentTime,
		j.Duration, j.SubmittedAt, j.DetailURL, j.Outcome, nullIfEmpty(j.Reason), j.ScrapedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("recording job %s: %w", j.Ref, err)
	}
	return nil
}

// Jobs returns matching job rows, newest first.
func (s *SQLiteStore) Jobs(ctx context.Context, q JobQuery) ([]JobRow, error) {
	query := `SELECT id, COALESCE(session_id, ''), job_ref, language, appointment_date, appointment_time,
	                 duration, submitted_at, detail_url, status, COALESCE(rejection_reason, ''), scraped_at
	          FROM job_records WHERE 1 = 1`
	var args []any
	if q.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, q.SessionID)
	}
	if q.Outcome != "" {
		query += " AND status = ?"
		args = append(args, q.Outcome)
	}
	if !q.Since.IsZero() {
		query += " AND scraped_at >= ?"
		args = append(args, q.Since.UnixNano())
	}
	query += " ORDER BY scraped_at DESC LIMIT ?"
	args = append(args, defaultLimit(q.Limit, 100))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	out := make([]JobRow, 0)
	for rows.Next() {
		var (
			j       JobRow
			scraped int64
		)
		if err := rows.Scan(&j.ID, &j.SessionID, &j.Ref, &j.Language, &j.AppointmentDate, &j.AppointmentTime,
			&j.Duration, &j.SubmittedAt, &j.DetailURL, &j.Outcome, &j.Reason, &scraped); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		j.ScrapedAt = fromNanos(scraped)
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddLog(ctx context.Context, e LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO system_logs (id, session_id, log_level, message, component, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID, nullIfEmpty(e.SessionID), e.Level, e.Message, e.Component, e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("writing system log: %w", err)
	}
	return nil
}

// Logs returns the newest log lines. An empty sessionID matches all sessions.
func (s *SQLiteStore) Logs(ctx context.Context, sessionID string, limit int) ([]LogEntry, error) {
	query := `SELECT id, COALESCE(session_id, ''), log_level, message, COALESCE(component, ''), created_at
	          FROM system_logs`
	var args []any
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, defaultLimit(limit, 50))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing logs: %w", err)
	}
	defer rows.Close()

	out := make([]LogEntry, 0)
	for rows.Next() {
		var (
			e       LogEntry
			created int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Level, &e.Message, &e.Component, &created); err != nil {
			return nil, fmt.Errorf("scanning log: %w", err)
		}
		e.CreatedAt = fromNanos(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddAnalytics(ctx context.Context, p AnalyticsPeriod) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analytics_periods (id, period_start, period_end, total_jobs_processed, jobs_accepted,
		                                jobs_rejected, acceptance_rate, most_common_language, peak_hour,
		                                bot_uptime_seconds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PeriodStart.UnixNano(), p.PeriodEnd.UnixNano(), p.TotalJobs, p.Accepted, p.Rejected,
		p.AcceptanceRate, nullIfEmpty(p.MostCommonLanguage), p.PeakHour, p.UptimeSeconds, p.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("recording analytics period: %w", err)
	}
	return nil
}

// Analytics returns the most recent analytics periods, newest first.
func (s *SQLiteStore) Analytics(ctx context.Context, limit int) ([]AnalyticsPeriod, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, period_start, period_end, total_jobs_processed, jobs_accepted, jobs_rejected,
		        acceptance_rate, COALESCE(most_common_language, ''), peak_hour, bot_uptime_seconds, created_at
		 FROM analytics_periods ORDER BY period_start DESC LIMIT ?`, defaultLimit(limit, 50))
	if err != nil {
		return nil, fmt.Errorf("listing analytics periods: %w", err)
	}
	defer rows.Close()

	out := make([]AnalyticsPeriod, 0)
	for rows.Next() {
		var (
			p                   AnalyticsPeriod
			start, end, created int64
		)
		if err := rows.Scan(&p.ID, &start, &end, &p.TotalJobs, &p.Accepted, &p.Rejected,
			&p.AcceptanceRate, &p.MostCommonLanguage, &p.PeakHour, &p.UptimeSeconds, &created); err != nil {
			return nil, fmt.Errorf("scanning analytics period: %w", err)
		}
		p.PeriodStart, p.PeriodEnd, p.CreatedAt = fromNanos(start), fromNanos(end), fromNanos(created)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Cleanup(ctx context.Context, cutoff time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	defer tx.Rollback()

	c := cutoff.UnixNano()
	stmts := []struct {
		query string
		args  []any
	}{
		{"DELETE FROM analytics_periods WHERE period_start < ?", []any{c}},
		{"DELETE FROM system_logs WHERE created_at < ?", []any{c}},
		{"DELETE FROM seen_jobs WHERE first_seen < ?", []any{c}},
		{"DELETE FROM job_records WHERE scraped_at < ? AND status <> ?", []any{c, OutcomeRejected}},
		{"UPDATE bot_sessions SET status = ?, end_time = ?, updated_at = ? WHERE status = ? AND start_time < ?",
			[]any{StatusStopped, s.now().UnixNano(), s.now().UnixNano(), StatusRunning, c}},
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func fromNanos(n int64) time.Time { return time.Unix(0, n) }

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
