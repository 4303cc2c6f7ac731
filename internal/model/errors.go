package model

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLoginFailed means the portal did not show a signed-in page after
	// submitting credentials.
	ErrLoginFailed = errors.New("login failed")
	// ErrAlreadyRunning is returned when starting a bot that is running.
	ErrAlreadyRunning = errors.New("bot is already running")
	// ErrNotRunning is returned when stopping a bot that is idle.
	ErrNotRunning = errors.New("bot is not running")
	// ErrListNotReady means the job list container did not render in time.
	ErrListNotReady = errors.New("job list not ready")
)

// IsTimeout reports whether err came from a bounded wait running out.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
