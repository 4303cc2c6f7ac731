package browser

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/mofyally02/atozbot/internal/config"
	"github.com/mofyally02/atozbot/internal/model"
)

const (
	emailSelector    = "input[name='email']"
	passwordSelector = "input[name='password']"
	submitSelector   = "button[type='submit']"
	signedInSelector = ".header__name"
)

// Login signs in to the portal with short, randomised pauses between steps.
type Login struct {
	page    model.Page
	portal  config.PortalConfig
	timeout time.Duration
	pause   func(ctx context.Context, min, max time.Duration)
	logger  *slog.Logger
}

// NewLogin returns a Login that drives page. timeout bounds each wait.
func NewLogin(page model.Page, portal config.PortalConfig, timeout time.Duration, logger *slog.Logger) *Login {
	return &Login{
		page:    page,
		portal:  portal,
		timeout: timeout,
		pause:   humanPause,
		logger:  logger.With("component", "login"),
	}
}

// Run performs the login. It returns model.ErrLoginFailed when the portal
// still shows the login form after submitting.
func (l *Login) Run(ctx context.Context) error {
	if err := l.portal.CheckCredentials(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrLoginFailed, err)
	}

	if err := l.page.Navigate(ctx, l.portal.LoginURL()); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	l.pause(ctx, 200*time.Millisecond, 600*time.Millisecond)

	if err := l.page.WaitFor(ctx, emailSelector, l.timeout); err != nil {
		return fmt.Errorf("%w: login form not shown: %v", model.ErrLoginFailed, err)
	}
	steps := []struct {
		selector string
		value    string
	}{
		{emailSelector, l.portal.Username},
		{passwordSelector, l.portal.Password},
	}
	for _, s := range steps {
		if err := l.page.Click(ctx, s.selector); err != nil {
			return fmt.Errorf("focus %s: %w", s.selector, err)
		}
		l.pause(ctx, 200*time.Millisecond, 600*time.Millisecond)
		if err := l.page.Fill(ctx, s.selector, s.value); err != nil {
			return fmt.Errorf("fill %s: %w", s.selector, err)
		}
		l.pause(ctx, 200*time.Millisecond, 600*time.Millisecond)
	}

	if err := l.page.Click(ctx, submitSelector); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	if err := l.page.WaitIdle(ctx, l.timeout); err != nil {
		l.logger.Debug("page not idle after login submit", "error", err)
	}

	if err := l.page.WaitFor(ctx, signedInSelector, l.timeout); err != nil {
		// Some accounts land on the job board without the header name.
		stillOnForm, verr := l.page.Visible(ctx, passwordSelector)
		if verr != nil || stillOnForm {
			return fmt.Errorf("%w: signed-in header not shown", model.ErrLoginFailed)
		}
	}
	l.pause(ctx, 800*time.Millisecond, 1400*time.Millisecond)

	l.logger.Info("logged in", "user", l.portal.Username)
	return nil
}

func humanPause(ctx context.Context, min, max time.Duration) {
	d := min + time.Duration(rand.Int64N(int64(max-min)+1))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
