package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mofyally02/atozbot/internal/notifier"
	"github.com/mofyally02/atozbot/internal/tracker"
)

// Cycle is one poll of the job list.
type Cycle interface {
	Poll(ctx context.Context) (int, error)
}

// QuickCheck is a read-only scan of the job list.
type QuickCheck interface {
	Check(ctx context.Context) (int, error)
}

// Publisher receives a copy of the tracker state after every tick.
type Publisher interface {
	Publish(snap tracker.Snapshot)
}

// MultiPublisher fans a snapshot out to several publishers in order.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(snap tracker.Snapshot) {
	for _, p := range m {
		p.Publish(snap)
	}
}

// Timing holds the loop's intervals and which optional units run.
type Timing struct {
	Check             time.Duration
	QuickCheck        time.Duration
	ResultsReport     time.Duration
	RejectedReport    time.Duration
	EnableQuickCheck  bool
	EnableResults     bool
	EnableRejected    bool
	SnapshotRecentMax int
}

// Tick is the loop's sleep: the smallest enabled interval.
func (t Timing) Tick() time.Duration {
	tick := t.Check
	consider := func(enabled bool, d time.Duration) {
		if enabled && d > 0 && d < tick {
			tick = d
		}
	}
	consider(t.EnableQuickCheck, t.QuickCheck)
	consider(t.EnableResults, t.ResultsReport)
	consider(t.EnableRejected, t.RejectedReport)
	return tick
}

// Scheduler owns the run loop of one bot session. On each tick it counts a
// check cycle and then runs, in order, the quick check, the main cycle, the
// results report and the rejected report, each only when it is due. All
// units run on the loop's goroutine.
type Scheduler struct {
	cycle     Cycle
	quick     QuickCheck
	tracker   *tracker.Tracker
	reporter  notifier.Reporter
	publisher Publisher
	timing    Timing
	running   atomic.Bool
	stopped   atomic.Bool
	logger    *slog.Logger

	lastCycle time.Time
	lastQuick time.Time
	now       func() time.Time
}

// NewScheduler creates a scheduler. quick and publisher may be nil.
func NewScheduler(cycle Cycle, quick QuickCheck, tr *tracker.Tracker, reporter notifier.Reporter, publisher Publisher, timing Timing, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cycle:     cycle,
		quick:     quick,
		tracker:   tr,
		reporter:  reporter,
		publisher: publisher,
		timing:    timing,
		logger:    logger.With("component", "scheduler"),
		now:       time.Now,
	}
}

// Run loops until Stop is called or ctx is cancelled. Work already started in
// the current tick is finished before it returns. Run returns at once when
// Stop was called before it.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.stopped.Load() {
		s.logger.Info("scheduler stopped before start")
		return nil
	}
	tick := s.timing.Tick()
	s.logger.Info("starting scheduler",
		"tick", tick.String(),
		"check_interval", s.timing.Check.String(),
		"quick_check", s.timing.EnableQuickCheck,
	)
	s.running.Store(true)
	defer s.running.Store(false)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for !s.stopped.Load() {
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		if s.stopped.Load() {
			break
		}
		if ctx.Err() != nil {
			s.logger.Info("shutting down scheduler")
			return nil
		}
		s.runTick(ctx)
		timer.Reset(tick)
	}
	s.logger.Info("scheduler stopped")
	return nil
}

// Stop asks the loop to exit after the current tick. A stopped scheduler
// cannot be restarted.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) runTick(ctx context.Context) {
	s.tracker.IncrementCheckCycle()
	now := s.now()

	if s.quick != nil && s.timing.EnableQuickCheck && due(now, s.lastQuick, s.timing.QuickCheck) {
		s.lastQuick = now
		s.safely("quick check", func() error {
			n, err := s.quick.Check(ctx)
			if err == nil && n > 0 {
				s.logger.Info("quick check found jobs", "count", n)
			}
			return err
		})
	}

	if due(now, s.lastCycle, s.timing.Check) {
		s.lastCycle = now
		s.safely("cycle", func() error {
			n, err := s.cycle.Poll(ctx)
			if n > 0 {
				s.tracker.UpdateActivity()
			}
			return err
		})
	}

	if s.timing.EnableResults {
		s.safely("results report", func() error {
			if sum, ok := s.tracker.ReportResults(); ok {
				return s.reporter.ReportResults(ctx, sum)
			}
			return nil
		})
	}

	if s.timing.EnableRejected {
		s.safely("rejected report", func() error {
			if sum, ok := s.tracker.ReportRejected(); ok {
				return s.reporter.ReportRejected(ctx, sum)
			}
			return nil
		})
	}

	if s.publisher != nil {
		s.publisher.Publish(s.tracker.Snapshot(s.timing.SnapshotRecentMax))
	}
}

// safely runs one unit of the tick, logging its error or panic so that the
// loop always reaches the next tick.
func (s *Scheduler) safely(unit string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("unit panicked", "unit", unit, "panic", fmt.Sprint(r))
		}
	}()
	if err := fn(); err != nil {
		s.logger.Error("unit failed", "unit", unit, "error", err)
	}
}

func due(now, last time.Time, interval time.Duration) bool {
	return last.IsZero() || now.Sub(last) >= interval
}
