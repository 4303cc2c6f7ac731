// Package dashboard serves the bot's REST API and live websocket feed, runs
// bot sessions in-process and keeps the history store tidy.
package dashboard

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mofyally02/atozbot/internal/activity"
	"github.com/mofyally02/atozbot/internal/bot"
	"github.com/mofyally02/atozbot/internal/config"
	"github.com/mofyally02/atozbot/internal/model"
	"github.com/mofyally02/atozbot/internal/store"
)

// Server is the dashboard HTTP server.
type Server struct {
	cfg    config.DashboardConfig
	runner *Runner
	hist   store.History
	hub    *Hub
	rdb    *redis.Client // optional live feed
	ctx    context.Context
	now    func() time.Time
	logger *slog.Logger
}

// NewServer creates a server. Sessions started through the API run under
// ctx. rdb may be nil.
func NewServer(ctx context.Context, cfg config.DashboardConfig, runner *Runner, hist store.History, hub *Hub, rdb *redis.Client, logger *slog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		runner: runner,
		hist:   hist,
		hub:    hub,
		rdb:    rdb,
		ctx:    ctx,
		now:    time.Now,
		logger: logger.With("component", "dashboard"),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/bot/status", s.basicAuth(s.handleStatus))
	mux.HandleFunc("GET /api/bot/sessions", s.basicAuth(s.handleSessions))
	mux.HandleFunc("GET /api/bot/jobs", s.basicAuth(s.handleJobs))
	mux.HandleFunc("GET /api/bot/analytics", s.basicAuth(s.handleAnalytics))
	mux.HandleFunc("GET /api/bot/logs", s.basicAuth(s.handleLogs))
	mux.HandleFunc("POST /api/bot/start", s.basicAuth(s.handleStart))
	mux.HandleFunc("POST /api/bot/stop", s.basicAuth(s.handleStop))

	mux.Handle("GET /ws", s.hub)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("dashboard server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard shutdown: %w", err)
	}
	return nil
}

// basicAuth guards a handler when dashboard credentials are configured.
func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return next
	}
	username, password := []byte(s.cfg.Username), []byte(s.cfg.Password)
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(user), username) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), password) == 1
		if !ok || !userMatch || !passMatch {
			w.Header().Set("WWW-Authenticate", `Basic realm="atozbot"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.now().UTC(),
	})
}

type statusResponse struct {
	Running   bool        `json:"running"`
	Session   *bot.Status `json:"session,omitempty"`
	LastError string      `json:"last_error,omitempty"`
	Clients   int         `json:"websocket_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st, running, lastErr := s.runner.Status()
	resp := statusResponse{Running: running, Clients: s.hub.Clients()}
	if st.SessionID != "" {
		resp.Session = &st
	}
	if lastErr != nil {
		resp.LastError = lastErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.hist.Sessions(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		s.serverError(w, "listing sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	q := store.JobQuery{
		SessionID: r.URL.Query().Get("session_id"),
		Outcome:   r.URL.Query().Get("outcome"),
		Limit:     queryInt(r, "limit", 100),
	}
	if q.Outcome != "" && q.Outcome != store.OutcomeAccepted && q.Outcome != store.OutcomeRejected {
		writeError(w, http.StatusBadRequest, "outcome must be accepted or rejected")
		return
	}
	if hours := queryInt(r, "hours", 0); hours > 0 {
		q.Since = s.now().Add(-time.Duration(hours) * time.Hour)
	}
	jobs, err := s.hist.Jobs(r.Context(), q)
	if err != nil {
		s.serverError(w, "listing jobs", err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

type analyticsResponse struct {
	Hours   int                     `json:"hours"`
	Current store.AnalyticsPeriod   `json:"current"`
	Periods []store.AnalyticsPeriod `json:"periods"`
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)
	end := s.now()
	start := end.Add(-time.Duration(hours) * time.Hour)

	rows, err := s.hist.Jobs(r.Context(), store.JobQuery{Since: start, Limit: 10000})
	if err != nil {
		s.serverError(w, "loading jobs", err)
		return
	}
	periods, err := s.hist.Analytics(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		s.serverError(w, "listing analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, analyticsResponse{
		Hours:   hours,
		Current: store.ComputeAnalytics(rows, start, end, 0),
		Periods: periods,
	})
}

// handleLogs returns a session's stored log. With live=true and a Redis feed
// configured it returns the activity feed instead.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		st, _, _ := s.runner.Status()
		sessionID = st.SessionID
	}
	limit := queryInt(r, "limit", 100)

	if r.URL.Query().Get("live") == "true" {
		if s.rdb == nil {
			writeError(w, http.StatusBadRequest, "live feed is not configured")
			return
		}
		if sessionID == "" {
			writeJSON(w, http.StatusOK, []activity.Entry{})
			return
		}
		entries, err := activity.NewFeed(s.rdb, sessionID, s.logger).Recent(r.Context(), limit)
		if err != nil {
			s.serverError(w, "reading live feed", err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	logs, err := s.hist.Logs(r.Context(), sessionID, limit)
	if err != nil {
		s.serverError(w, "listing logs", err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	st, err := s.runner.Start(s.ctx)
	if errors.Is(err, model.ErrAlreadyRunning) {
		writeError(w, http.StatusBadRequest, "Bot is already running")
		return
	}
	s.hub.Broadcast(MsgStatusChange, map[string]any{"status": "started", "session_id": st.SessionID})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Bot started successfully",
		"session_id": st.SessionID,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	st, err := s.runner.Stop()
	if errors.Is(err, model.ErrNotRunning) {
		writeError(w, http.StatusBadRequest, "Bot is not running")
		return
	}
	s.hub.Broadcast(MsgStatusChange, map[string]any{"status": "stopping", "session_id": st.SessionID})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Bot stop requested",
		"session_id": st.SessionID,
	})
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg+" failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
