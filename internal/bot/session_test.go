package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mofyally02/atozbot/internal/config"
	"github.com/mofyally02/atozbot/internal/model"
	"github.com/mofyally02/atozbot/internal/store"
	"github.com/mofyally02/atozbot/internal/tracker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// emptyBoardPage signs in and always shows an empty job list.
type emptyBoardPage struct {
	mu      sync.Mutex
	visited []string
}

func (p *emptyBoardPage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visited = append(p.visited, url)
	return nil
}
func (p *emptyBoardPage) WaitFor(context.Context, string, time.Duration) error     { return nil }
func (p *emptyBoardPage) WaitVisible(context.Context, string, time.Duration) error { return nil }
func (p *emptyBoardPage) WaitIdle(context.Context, time.Duration) error            { return nil }
func (p *emptyBoardPage) HTML(context.Context) (string, error) {
	return `<section class="content__table"><table><tbody></tbody></table></section>`, nil
}
func (p *emptyBoardPage) Query(context.Context, string) ([]model.Element, error) { return nil, nil }
func (p *emptyBoardPage) Visible(context.Context, string) (bool, error)          { return false, nil }
func (p *emptyBoardPage) Click(context.Context, string) error                    { return nil }
func (p *emptyBoardPage) Fill(context.Context, string, string) error             { return nil }

type stopOnPublish struct {
	session *Session
	calls   int
}

func (s *stopOnPublish) Publish(tracker.Snapshot) {
	s.calls++
	s.session.Stop()
}

func testConfig() *config.Config {
	return &config.Config{
		Portal: config.PortalConfig{
			BaseURL:   "https://portal.example.com",
			JobsPath:  "/interpreter-jobs",
			LoginPath: "/login",
			Username:  "interpreter@example.com",
			Password:  "secret",
		},
		Browser: config.BrowserConfig{
			NavTimeout:    time.Second,
			ListTimeout:   time.Second,
			DialogTimeout: time.Second,
		},
		Intervals: config.IntervalConfig{
			Check:          time.Minute,
			QuickCheck:     time.Minute,
			ResultsReport:  time.Hour,
			RejectedReport: time.Hour,
		},
		Rules: config.RulesConfig{
			JobType:           "Telephone",
			ExcludeTypes:      []string{"Face-to-Face"},
			MaxAcceptPerCycle: 2,
		},
	}
}

func newHistory(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fakeOpener(page model.Page, closed *bool) browserOpener {
	return func(context.Context, config.BrowserConfig, *slog.Logger) (model.Page, func() error, error) {
		return page, func() error { *closed = true; return nil }, nil
	}
}

func TestRun_MissingCredentialsFailsSession(t *testing.T) {
	cfg := testConfig()
	cfg.Portal.Password = ""
	hist := newHistory(t)

	s := New(cfg, Deps{History: hist}, discardLogger())
	var closed bool
	s.open = fakeOpener(&emptyBoardPage{}, &closed)

	err := s.Run(context.Background())
	if !errors.Is(err, model.ErrLoginFailed) {
		t.Fatalf("Run error = %v, want ErrLoginFailed", err)
	}
	if !closed {
		t.Error("browser was not closed")
	}

	st := s.Status()
	if st.Running {
		t.Error("session still marked running")
	}
	if st.Snapshot.Login.Success || st.Snapshot.Login.At.IsZero() {
		t.Errorf("login status = %+v, want a recorded failure", st.Snapshot.Login)
	}

	sessions, err := hist.Sessions(context.Background(), 10)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	got := sessions[0]
	if got.ID != s.ID() || got.Status != store.StatusFailed || got.LoginStatus != "failed" || got.EndTime == nil {
		t.Errorf("session = %+v", got)
	}
}

func TestRun_BrowserStartFailure(t *testing.T) {
	hist := newHistory(t)
	s := New(testConfig(), Deps{History: hist}, discardLogger())
	boom := errors.New("no chrome")
	s.open = func(context.Context, config.BrowserConfig, *slog.Logger) (model.Page, func() error, error) {
		return nil, nil, boom
	}

	if err := s.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
	sessions, _ := hist.Sessions(context.Background(), 10)
	if len(sessions) != 1 || sessions[0].Status != store.StatusFailed {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestRun_StopsAfterFirstTick(t *testing.T) {
	hist := newHistory(t)
	cfg := testConfig()
	s := New(cfg, Deps{History: hist}, discardLogger())
	page := &emptyBoardPage{}
	var closed bool
	s.open = fakeOpener(page, &closed)
	stopper := &stopOnPublish{session: s}
	s.deps.Publishers = append(s.deps.Publishers, stopper)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stopper.calls != 1 {
		t.Errorf("publishes = %d, want 1", stopper.calls)
	}
	if !closed {
		t.Error("browser was not closed")
	}

	st := s.Status()
	if !st.Snapshot.Login.Success || st.Snapshot.CheckCycles != 1 {
		t.Errorf("snapshot = %+v", st.Snapshot)
	}

	sessions, err := hist.Sessions(context.Background(), 10)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("Sessions = %v, %v", sessions, err)
	}
	got := sessions[0]
	if got.Status != store.StatusStopped || got.LoginStatus != "success" || got.TotalChecks != 1 {
		t.Errorf("session = %+v", got)
	}

	page.mu.Lock()
	defer page.mu.Unlock()
	if len(page.visited) == 0 || page.visited[0] != cfg.Portal.LoginURL() {
		t.Errorf("visited = %v, want login page first", page.visited)
	}
}

func TestRun_RejectsSecondRun(t *testing.T) {
	s := New(testConfig(), Deps{}, discardLogger())
	s.running.Store(true)
	if err := s.Run(context.Background()); !errors.Is(err, model.ErrAlreadyRunning) {
		t.Errorf("Run error = %v, want ErrAlreadyRunning", err)
	}
}

func TestCheck_EmptyBoard(t *testing.T) {
	page := &emptyBoardPage{}
	var closed bool
	got, err := check(context.Background(), testConfig(), fakeOpener(page, &closed), discardLogger())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("matches = %+v, want none", got)
	}
	if !closed {
		t.Error("browser was not closed")
	}
}
