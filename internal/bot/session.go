// Package bot assembles one bot session: a browser, the portal login, the
// poll cycle and the reporting loop around a single tracker.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mofyally02/atozbot/internal/action"
	"github.com/mofyally02/atozbot/internal/activity"
	"github.com/mofyally02/atozbot/internal/board"
	"github.com/mofyally02/atozbot/internal/browser"
	"github.com/mofyally02/atozbot/internal/config"
	"github.com/mofyally02/atozbot/internal/filter"
	"github.com/mofyally02/atozbot/internal/model"
	"github.com/mofyally02/atozbot/internal/notifier"
	"github.com/mofyally02/atozbot/internal/poller"
	"github.com/mofyally02/atozbot/internal/scheduler"
	"github.com/mofyally02/atozbot/internal/store"
	"github.com/mofyally02/atozbot/internal/tracker"
)

// snapshotRecent is how many recent jobs of each kind a status snapshot holds.
const snapshotRecent = 20

// Deps are the optional collaborators of a session.
type Deps struct {
	Reporter   notifier.Reporter     // defaults to a LogReporter
	History    store.History         // defaults to store.Nop
	Redis      *redis.Client         // enables the activity feed
	Sinks      []tracker.Sink        // extra outcome listeners, e.g. the dashboard hub
	Publishers []scheduler.Publisher // extra snapshot listeners
	Console    *notifier.Console     // prints final statistics when set
}

// Status describes a session for the dashboard and the CLI.
type Status struct {
	SessionID string           `json:"session_id"`
	Name      string           `json:"session_name"`
	Running   bool             `json:"running"`
	StartedAt time.Time        `json:"started_at"`
	Snapshot  tracker.Snapshot `json:"snapshot"`
}

// browserOpener starts a browser and returns its page and a close func.
type browserOpener func(ctx context.Context, cfg config.BrowserConfig, logger *slog.Logger) (model.Page, func() error, error)

func launchRod(ctx context.Context, cfg config.BrowserConfig, logger *slog.Logger) (model.Page, func() error, error) {
	sess, err := browser.Launch(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return sess.Page(), sess.Close, nil
}

// Session is one run of the bot. Run drives everything on the calling
// goroutine; Stop and Status may be called from any goroutine.
type Session struct {
	id        string
	name      string
	startedAt time.Time
	cfg       *config.Config
	deps      Deps
	open      browserOpener
	logger    *slog.Logger

	running  atomic.Bool
	stopping atomic.Bool
	sched    atomic.Pointer[scheduler.Scheduler]
	snap     atomic.Pointer[tracker.Snapshot]
}

// New creates a session. Nothing starts until Run.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Session {
	now := time.Now()
	id := uuid.NewString()
	if deps.Reporter == nil {
		deps.Reporter = notifier.NewLogReporter(logger)
	}
	if deps.History == nil {
		deps.History = store.NewNop()
	}
	return &Session{
		id:        id,
		name:      "Session " + now.Format("2006-01-02 15:04:05"),
		startedAt: now,
		cfg:       cfg,
		deps:      deps,
		open:      launchRod,
		logger:    logger.With("component", "bot", "session", id),
	}
}

func (s *Session) ID() string { return s.id }

// Run logs in and polls until ctx is cancelled or Stop is called. A failed
// login ends the session before any polling with an error wrapping
// model.ErrLoginFailed.
func (s *Session) Run(ctx context.Context) (err error) {
	if !s.running.CompareAndSwap(false, true) {
		return model.ErrAlreadyRunning
	}
	defer s.running.Store(false)

	hist := s.deps.History
	if err := hist.CreateSession(ctx, store.Session{ID: s.id, Name: s.name, StartTime: s.startedAt}); err != nil {
		s.logger.Warn("recording session start failed", "error", err)
	}
	recorder := store.NewRecorder(hist, s.id, s.logger)

	sinks := tracker.MultiSink{recorder}
	publishers := scheduler.MultiPublisher{s}
	if s.deps.Redis != nil {
		feed := activity.NewFeed(s.deps.Redis, s.id, s.logger)
		sinks = append(sinks, feed)
		publishers = append(publishers, feed)
	}
	sinks = append(sinks, s.deps.Sinks...)
	publishers = append(publishers, s.deps.Publishers...)

	iv := s.cfg.Intervals
	tr := tracker.New(iv.ResultsReport, iv.RejectedReport, sinks)
	s.Publish(tr.Snapshot(snapshotRecent))
	recorder.Log(store.LevelInfo, "bot", "Bot session started")

	defer func() {
		s.finish(tr, err)
	}()

	page, closeBrowser, err := s.open(ctx, s.cfg.Browser, s.logger)
	if err != nil {
		tr.SetLoginStatus("Browser failed to start", false)
		return fmt.Errorf("starting browser: %w", err)
	}
	defer func() {
		if cerr := closeBrowser(); cerr != nil {
			s.logger.Debug("closing browser", "error", cerr)
		}
	}()

	if err := browser.NewLogin(page, s.cfg.Portal, s.cfg.Browser.NavTimeout, s.logger).Run(ctx); err != nil {
		tr.SetLoginStatus("Login failed: "+err.Error(), false)
		return err
	}
	tr.SetLoginStatus("Login successful", true)

	brd := board.New(page, s.cfg.Portal.JobsURL(), s.cfg.Browser.ListTimeout, s.logger)
	if err := brd.Open(ctx); err != nil {
		return err
	}

	rules := s.cfg.Rules
	rule := filter.Rule{
		RequiredFields:    rules.RequiredFields,
		AcceptJobType:     rules.JobType,
		ExcludeJobTypes:   rules.ExcludeTypes,
		MaxAcceptPerCycle: rules.MaxAcceptPerCycle,
	}
	classifier := filter.NewClassifier(rule, brd, s.logger)
	exec := action.NewExecutor(page, s.cfg.Browser.DialogTimeout, s.cfg.Browser.NavTimeout, rules.Justification, s.logger)
	cycle := poller.NewBoardPoller(brd, classifier, exec, tr, hist, rule.MaxAcceptPerCycle, s.logger)
	quick := poller.NewQuickChecker(brd, brd, rules.JobType, s.logger)

	reporter := notifier.Multi{s.deps.Reporter, store.NewSessionReporter(hist, s.id)}
	timing := scheduler.Timing{
		Check:             iv.Check,
		QuickCheck:        iv.QuickCheck,
		ResultsReport:     iv.ResultsReport,
		RejectedReport:    iv.RejectedReport,
		EnableQuickCheck:  s.cfg.Features.QuickCheck,
		EnableResults:     s.cfg.Features.ResultsReporting,
		EnableRejected:    s.cfg.Features.RejectedReporting,
		SnapshotRecentMax: snapshotRecent,
	}
	sched := scheduler.NewScheduler(cycle, quick, tr, reporter, publishers, timing, s.logger)
	s.sched.Store(sched)
	defer s.sched.Store(nil)

	if s.stopping.Load() {
		return nil
	}
	s.logger.Info("bot running",
		"job_type", rule.AcceptJobType,
		"max_accept_per_cycle", rule.MaxAcceptPerCycle,
	)
	return sched.Run(ctx)
}

// finish records the end of the session and prints the final statistics.
func (s *Session) finish(tr *tracker.Tracker, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := store.StatusStopped
	msg := "Bot session stopped"
	if runErr != nil {
		status = store.StatusFailed
		msg = "Bot session failed: " + runErr.Error()
	}
	hist := s.deps.History
	counters := store.Counters{TotalChecks: tr.CheckCycles(), TotalAccepted: tr.TotalAccepted(), TotalRejected: tr.TotalRejected()}
	if err := hist.UpdateCounters(ctx, s.id, counters); err != nil {
		s.logger.Warn("recording final counters failed", "error", err)
	}
	if err := hist.EndSession(ctx, s.id, status, time.Now()); err != nil {
		s.logger.Warn("recording session end failed", "error", err)
	}
	level := store.LevelInfo
	if runErr != nil {
		level = store.LevelError
	}
	store.NewRecorder(hist, s.id, s.logger).Log(level, "bot", msg)
	s.Publish(tr.Snapshot(snapshotRecent))

	s.logger.Info("session finished",
		"status", status,
		"accepted", tr.TotalAccepted(),
		"rejected", tr.TotalRejected(),
		"check_cycles", tr.CheckCycles(),
	)
	if c := s.deps.Console; c != nil {
		if err := errors.Join(c.PrintDetailedStats(tr.Login(), tr.Stats()), c.PrintAcceptedReport(tr)); err != nil {
			s.logger.Warn("printing final statistics failed", "error", err)
		}
	}
}

// Stop asks the session to end after the current tick.
func (s *Session) Stop() {
	s.stopping.Store(true)
	if sched := s.sched.Load(); sched != nil {
		sched.Stop()
	}
}

// Running reports whether Run is in progress.
func (s *Session) Running() bool { return s.running.Load() }

// Publish keeps the latest snapshot for Status.
func (s *Session) Publish(snap tracker.Snapshot) {
	s.snap.Store(&snap)
}

// Status returns the latest published state.
func (s *Session) Status() Status {
	st := Status{
		SessionID: s.id,
		Name:      s.name,
		Running:   s.running.Load(),
		StartedAt: s.startedAt,
	}
	if snap := s.snap.Load(); snap != nil {
		st.Snapshot = *snap
	}
	return st
}
