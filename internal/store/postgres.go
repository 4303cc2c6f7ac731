package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ History = (*PostgresStore)(nil)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS bot_sessions (
	id             UUID PRIMARY KEY,
	session_name   VARCHAR(255) NOT NULL,
	start_time     TIMESTAMPTZ NOT NULL DEFAULT now(),
	end_time       TIMESTAMPTZ,
	status         VARCHAR(50) NOT NULL DEFAULT 'running',
	login_status   VARCHAR(50) NOT NULL DEFAULT 'pending',
	total_checks   BIGINT NOT NULL DEFAULT 0,
	total_accepted INTEGER NOT NULL DEFAULT 0,
	total_rejected INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS job_records (
	id               UUID PRIMARY KEY,
	session_id       UUID REFERENCES bot_sessions(id) ON DELETE CASCADE,
	job_ref          VARCHAR(100) NOT NULL,
	language         VARCHAR(100) NOT NULL,
	appointment_date VARCHAR(50) NOT NULL,
	appointment_time VARCHAR(50) NOT NULL,
	duration         VARCHAR(50) NOT NULL,
	submitted_at     VARCHAR(50) NOT NULL,
	detail_url       TEXT NOT NULL DEFAULT '',
	status           VARCHAR(50) NOT NULL,
	rejection_reason TEXT,
	scraped_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS job_records_scraped_at ON job_records (scraped_at);
CREATE TABLE IF NOT EXISTS analytics_periods (
	id                   UUID PRIMARY KEY,
	period_start         TIMESTAMPTZ NOT NULL,
	period_end           TIMESTAMPTZ NOT NULL,
	total_jobs_processed INTEGER NOT NULL DEFAULT 0,
	jobs_accepted        INTEGER NOT NULL DEFAULT 0,
	jobs_rejected        INTEGER NOT NULL DEFAULT 0,
	acceptance_rate      NUMERIC(5,2) NOT NULL DEFAULT 0,
	most_common_language VARCHAR(100),
	peak_hour            INTEGER NOT NULL DEFAULT -1,
	bot_uptime_seconds   BIGINT NOT NULL DEFAULT 0,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS system_logs (
	id         UUID PRIMARY KEY,
	session_id UUID REFERENCES bot_sessions(id) ON DELETE CASCADE,
	log_level  VARCHAR(20) NOT NULL,
	message    TEXT NOT NULL,
	component  VARCHAR(100),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS seen_jobs (
	job_ref    VARCHAR(100) PRIMARY KEY,
	first_seen TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresStore keeps the session history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore connects to databaseURL, verifies the connection and
// ensures the history tables exist.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	// Simple protocol: the schema holds several statements.
	if _, err := pool.Exec(ctx, postgresSchema, pgx.QueryExecModeSimpleProtocol); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating history tables: %w", err)
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

func (s *PostgresStore) HasSeen(ref string) (bool, error) {
	var exists int
	err := s.pool.QueryRow(context.Background(), "SELECT 1 FROM seen_jobs WHERE job_ref = $1", ref).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking seen status for %s: %w", ref, err)
	}
	return true, nil
}

func (s *PostgresStore) MarkSeen(ref string) error {
	_, err := s.pool.Exec(context.Background(),
		"INSERT INTO seen_jobs (job_ref) VALUES ($1) ON CONFLICT (job_ref) DO NOTHING", ref)
	if err != nil {
		return fmt.Errorf("marking job %s as seen: %w", ref, err)
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bot_sessions (id, session_name, start_time, status, login_status)
		 VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.Name, sess.StartTime, orDefault(sess.Status, StatusRunning), orDefault(sess.LoginStatus, "pending"))
	if err != nil {
		return fmt.Errorf("creating session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateCounters(ctx context.Context, id string, c Counters) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE bot_sessions
		 SET total_checks = $1, total_accepted = $2, total_rejected = $3, updated_at = now()
		 WHERE id = $4`,
		c.TotalChecks, c.TotalAccepted, c.TotalRejected, id)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) SetLoginStatus(ctx context.Context, id, status string) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE bot_sessions SET login_status = $1, updated_at = now() WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("updating login status of session %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) EndSession(ctx context.Context, id, status string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE bot_sessions SET status = $1, end_time = $2, updated_at = now() WHERE id = $3",
		status, at, id)
	if err != nil {
		return fmt.Errorf("ending session %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) Sessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, session_name, start_time, end_time, status, login_status,
		        total_checks, total_accepted, total_rejected, updated_at
		 FROM bot_sessions ORDER BY start_time DESC LIMIT $1`, defaultLimit(limit, 50))
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	out := make([]Session, 0)
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.StartTime, &sess.EndTime, &sess.Status, &sess.LoginStatus,
			&sess.TotalChecks, &sess.TotalAccepted, &sess.TotalRejected, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddJob(ctx context.Context, j JobRow) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_records (id, session_id, job_ref, language, appointment_date, appointment_time,
		                          duration, submitted_at, detail_url, status, rejection_reason, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		j.ID, nullIfEmpty(j.SessionID), j.Ref, j.Language, j.AppointmentDate, j.AppointmentTime,
		j.Duration, j.SubmittedAt, j.DetailURL, j.Outcome, nullIfEmpty(j.Reason), j.ScrapedAt)
	if err != nil {
		return fmt.Errorf("recording job %s: %w", j.Ref, err)
	}
	return nil
}

func (s *PostgresStore) Jobs(ctx context.Context, q JobQuery) ([]JobRow, error) {
	query := `SELECT id::text, COALESCE(session_id::text, ''), job_ref, language, appointment_date, appointment_time,
	                 duration, submitted_at, detail_url, status, COALESCE(rejection_reason, ''), scraped_at
	          FROM job_records WHERE true`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if q.SessionID != "" {
		query += " AND session_id = " + arg(q.SessionID)
	}
	if q.Outcome != "" {
		query += " AND status = " + arg(q.Outcome)
	}
	if !q.Since.IsZero() {
		query += " AND scraped_at >= " + arg(q.Since)
	}
	query += " ORDER BY scraped_at DESC LIMIT " + arg(defaultLimit(q.Limit, 100))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	out := make([]JobRow, 0)
	for rows.Next() {
		var j JobRow
		if err := rows.Scan(&j.ID, &j.SessionID, &j.Ref, &j.Language, &j.AppointmentDate, &j.AppointmentTime,
			&j.Duration, &j.SubmittedAt, &j.DetailURL, &j.Outcome, &j.Reason, &j.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddLog(ctx context.Context, e LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		"INSERT INTO system_logs (id, session_id, log_level, message, component, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		e.ID, nullIfEmpty(e.SessionID), e.Level, e.Message, e.Component, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("writing system log: %w", err)
	}
	return nil
}

func (s *PostgresStore) Logs(ctx context.Context, sessionID string, limit int) ([]LogEntry, error) {
	query := `SELECT id::text, COALESCE(session_id::text, ''), log_level, message, COALESCE(component, ''), created_at
	          FROM system_logs`
	args := []any{defaultLimit(limit, 50)}
	if sessionID != "" {
		query += " WHERE session_id = $2"
		args = append(args, sessionID)
	}
	query += " ORDER BY created_at DESC LIMIT $1"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing logs: %w", err)
	}
	defer rows.Close()

	out := make([]LogEntry, 0)
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Level, &e.Message, &e.Component, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddAnalytics(ctx context.Context, p AnalyticsPeriod) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analytics_periods (id, period_start, period_end, total_jobs_processed, jobs_accepted,
		                                jobs_rejected, acceptance_rate, most_common_language, peak_hour,
		                                bot_uptime_seconds, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.PeriodStart, p.PeriodEnd, p.TotalJobs, p.Accepted, p.Rejected,
		p.AcceptanceRate, nullIfEmpty(p.MostCommonLanguage), p.PeakHour, p.UptimeSeconds, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording analytics period: %w", err)
	}
	return nil
}

func (s *PostgresStore) Analytics(ctx context.Context, limit int) ([]AnalyticsPeriod, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, period_start, period_end, total_jobs_processed, jobs_accepted, jobs_rejected,
		        acceptance_rate::float8, COALESCE(most_common_language, ''), peak_hour, bot_uptime_seconds, created_at
		 FROM analytics_periods ORDER BY period_start DESC LIMIT $1`, defaultLimit(limit, 50))
	if err != nil {
		return nil, fmt.Errorf("listing analytics periods: %w", err)
	}
	defer rows.Close()

	out := make([]AnalyticsPeriod, 0)
	for rows.Next() {
		var p AnalyticsPeriod
		if err := rows.Scan(&p.ID, &p.PeriodStart, &p.PeriodEnd, &p.TotalJobs, &p.Accepted, &p.Rejected,
			&p.AcceptanceRate, &p.MostCommonLanguage, &p.PeakHour, &p.UptimeSeconds, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning analytics period: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Cleanup(ctx context.Context, cutoff time.Time) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM analytics_periods WHERE period_start < $1", cutoff); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM system_logs WHERE created_at < $1", cutoff); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM seen_jobs WHERE first_seen < $1", cutoff); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM job_records WHERE scraped_at < $1 AND status <> $2", cutoff, OutcomeRejected); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			"UPDATE bot_sessions SET status = $1, end_time = now(), updated_at = now() WHERE status = $2 AND start_time < $3",
			StatusStopped, StatusRunning, cutoff)
		return err
	})
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
