package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mofyally02/atozbot/internal/bot"
	"github.com/mofyally02/atozbot/internal/config"
	"github.com/mofyally02/atozbot/internal/model"
	"github.com/mofyally02/atozbot/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBot runs until stopped or cancelled.
type fakeBot struct {
	id      string
	stop    chan struct{}
	once    sync.Once
	started time.Time
}

func newFakeBot(id string) *fakeBot {
	return &fakeBot{id: id, stop: make(chan struct{}), started: time.Now()}
}

func (b *fakeBot) ID() string { return b.id }

func (b *fakeBot) Run(ctx context.Context) error {
	select {
	case <-b.stop:
	case <-ctx.Done():
	}
	return nil
}

func (b *fakeBot) Stop() { b.once.Do(func() { close(b.stop) }) }

func (b *fakeBot) Status() bot.Status {
	return bot.Status{SessionID: b.id, Name: "Session " + b.id, StartedAt: b.started}
}

func newTestHistory(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "dash.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type testEnv struct {
	srv    *httptest.Server
	runner *Runner
	hist   *store.SQLiteStore
	server *Server
}

func newTestEnv(t *testing.T, cfg config.DashboardConfig) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var n int
	var mu sync.Mutex
	runner := NewRunner(func() Bot {
		mu.Lock()
		defer mu.Unlock()
		n++
		return newFakeBot("bot-" + string(rune('0'+n)))
	}, discardLogger())
	hist := newTestHistory(t)
	hub := NewHub(nil, discardLogger())
	server := NewServer(ctx, cfg, runner, hist, hub, nil, discardLogger())
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)
	return &testEnv{srv: srv, runner: runner, hist: hist, server: server}
}

func (e *testEnv) do(t *testing.T, method, path string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	var out map[string]any
	json.Unmarshal(body, &out)
	return resp, out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, config.DashboardConfig{})
	resp, body := env.do(t, http.MethodGet, "/health")
	if resp.StatusCode != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	env := newTestEnv(t, config.DashboardConfig{})

	resp, body := env.do(t, http.MethodPost, "/api/bot/stop")
	if resp.StatusCode != http.StatusBadRequest || body["detail"] != "Bot is not running" {
		t.Errorf("stop while idle = %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPost, "/api/bot/start")
	if resp.StatusCode != http.StatusOK || body["session_id"] != "bot-1" {
		t.Fatalf("start = %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPost, "/api/bot/start")
	if resp.StatusCode != http.StatusBadRequest || body["detail"] != "Bot is already running" {
		t.Errorf("second start = %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/bot/status")
	if resp.StatusCode != http.StatusOK || body["running"] != true {
		t.Errorf("status = %d %v", resp.StatusCode, body)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/bot/stop")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("stop = %d", resp.StatusCode)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	env.runner.Wait(ctx)

	resp, body = env.do(t, http.MethodGet, "/api/bot/status")
	if body["running"] != false {
		t.Errorf("status after stop = %v", body)
	}
	session, _ := body["session"].(map[string]any)
	if session["session_id"] != "bot-1" {
		t.Errorf("last session = %v", body["session"])
	}

	resp, body = env.do(t, http.MethodPost, "/api/bot/start")
	if resp.StatusCode != http.StatusOK || body["session_id"] != "bot-2" {
		t.Errorf("restart = %d %v", resp.StatusCode, body)
	}
	env.runner.Stop()
	env.runner.Wait(ctx)
}

func TestBasicAuth(t *testing.T) {
	env := newTestEnv(t, config.DashboardConfig{Username: "admin", Password: "pw"})

	resp, _ := env.do(t, http.MethodGet, "/api/bot/status")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no credentials = %d, want 401", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/bot/status", nil)
	req.SetBasicAuth("admin", "pw")
	ok, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	ok.Body.Close()
	if ok.StatusCode != http.StatusOK {
		t.Errorf("with credentials = %d, want 200", ok.StatusCode)
	}

	resp, _ = env.do(t, http.MethodGet, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health should stay public, got %d", resp.StatusCode)
	}
}

func seedJobs(t *testing.T, hist store.History, now time.Time) {
	t.Helper()
	ctx := context.Background()
	rows := []store.JobRow{
		{JobRecord: model.JobRecord{Ref: "1/1", Language: "Polish", AppointmentTime: "10:00"}, Outcome: store.OutcomeAccepted, ScrapedAt: now.Add(-time.Hour)},
		{JobRecord: model.JobRecord{Ref: "2/1", Language: "Arabic", AppointmentTime: "14:00"}, Outcome: store.OutcomeRejected, Reason: "Face-to-Face", ScrapedAt: now.Add(-2 * time.Hour)},
		{JobRecord: model.JobRecord{Ref: "3/1", Language: "Polish", AppointmentTime: "10:30"}, Outcome: store.OutcomeAccepted, ScrapedAt: now.Add(-48 * time.Hour)},
	}
	for _, r := range rows {
		if err := hist.AddJob(ctx, r); err != nil {
			t.Fatalf("AddJob: %v", err)
		}
	}
}

func TestJobsEndpoint(t *testing.T) {
	env := newTestEnv(t, config.DashboardConfig{})
	seedJobs(t, env.hist, time.Now())

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"1/1", "2/1", "3/1"}},
		{"accepted", "?outcome=accepted", []string{"1/1", "3/1"}},
		{"last day", "?hours=24", []string{"1/1", "2/1"}},
		{"limited", "?limit=1", []string{"1/1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(env.srv.URL + "/api/bot/jobs" + tt.query)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			defer resp.Body.Close()
			var rows []store.JobRow
			if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
				t.Fatalf("decode: %v", err)
			}
			var refs []string
			for _, r := range rows {
				refs = append(refs, r.Ref)
			}
			if strings.Join(refs, ",") != strings.Join(tt.want, ",") {
				t.Errorf("refs = %v, want %v", refs, tt.want)
			}
		})
	}

	resp, _ := env.do(t, http.MethodGet, "/api/bot/jobs?outcome=maybe")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad outcome = %d, want 400", resp.StatusCode)
	}
}

func TestAnalyticsEndpoint(t *testing.T) {
	env := newTestEnv(t, config.DashboardConfig{})
	seedJobs(t, env.hist, time.Now())

	resp, err := http.Get(env.srv.URL + "/api/bot/analytics?hours=24")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var got analyticsResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	c := got.Current
	if got.Hours != 24 || c.TotalJobs != 2 || c.Accepted != 1 || c.Rejected != 1 || c.AcceptanceRate != 50 {
		t.Errorf("analytics = %+v", got)
	}
	if len(got.Periods) != 0 {
		t.Errorf("periods = %v, want none", got.Periods)
	}
}

func TestLogsEndpoint(t *testing.T) {
	env := newTestEnv(t, config.DashboardConfig{})
	ctx := context.Background()
	if err := env.hist.CreateSession(ctx, store.Session{ID: "s1", Name: "one", StartTime: time.Now()}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := env.hist.AddLog(ctx, store.LogEntry{SessionID: "s1", Level: store.LevelInfo, Message: "Bot session started", Component: "bot", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("AddLog: %v", err)
	}

	resp, err := http.Get(env.srv.URL + "/api/bot/logs?session_id=s1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var logs []store.LogEntry
	if err := json.NewDecoder(resp.Body).Decode(&logs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(logs) != 1 || logs[0].Message != "Bot session started" {
		t.Errorf("logs = %+v", logs)
	}

	live, _ := env.do(t, http.MethodGet, "/api/bot/logs?live=true")
	if live.StatusCode != http.StatusBadRequest {
		t.Errorf("live feed without redis = %d, want 400", live.StatusCode)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	env := newTestEnv(t, config.DashboardConfig{})
	ctx := context.Background()
	for i, id := range []string{"old", "new"} {
		err := env.hist.CreateSession(ctx, store.Session{ID: id, Name: id, StartTime: time.Now().Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	resp, err := http.Get(env.srv.URL + "/api/bot/sessions")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var sessions []store.Session
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "new" {
		t.Errorf("sessions = %+v", sessions)
	}
}
