package dashboard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mofyally02/atozbot/internal/bot"
	"github.com/mofyally02/atozbot/internal/model"
)

// Bot is one startable bot session.
type Bot interface {
	ID() string
	Run(ctx context.Context) error
	Stop()
	Status() bot.Status
}

// Runner owns at most one bot session at a time.
type Runner struct {
	newBot func() Bot
	logger *slog.Logger

	mu      sync.Mutex
	current Bot // running session, nil when idle
	last    Bot // most recent session, kept for status after it ends
	lastErr error
	done    chan struct{}
}

// NewRunner creates a runner. newBot is called once per Start.
func NewRunner(newBot func() Bot, logger *slog.Logger) *Runner {
	return &Runner{newBot: newBot, logger: logger.With("component", "runner")}
}

// Start launches a new session in the background. It returns
// model.ErrAlreadyRunning when a session is active.
func (r *Runner) Start(ctx context.Context) (bot.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return r.current.Status(), model.ErrAlreadyRunning
	}

	b := r.newBot()
	done := make(chan struct{})
	r.current, r.last, r.lastErr, r.done = b, b, nil, done

	go func() {
		defer close(done)
		err := b.Run(ctx)
		if err != nil {
			r.logger.Error("bot session ended with error", "session", b.ID(), "error", err)
		} else {
			r.logger.Info("bot session ended", "session", b.ID())
		}
		r.mu.Lock()
		if r.current == b {
			r.current = nil
		}
		r.lastErr = err
		r.mu.Unlock()
	}()

	r.logger.Info("bot session started", "session", b.ID())
	return b.Status(), nil
}

// Stop asks the active session to stop after its current tick. It returns
// model.ErrNotRunning when idle.
func (r *Runner) Stop() (bot.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return bot.Status{}, model.ErrNotRunning
	}
	r.current.Stop()
	return r.current.Status(), nil
}

// Status returns the active or most recent session and the error the most
// recent session ended with.
func (r *Runner) Status() (st bot.Status, running bool, lastErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return bot.Status{}, false, nil
	}
	return r.last.Status(), r.current != nil, r.lastErr
}

// Wait blocks until the active session has ended or ctx is done.
func (r *Runner) Wait(ctx context.Context) {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}
