package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mofyally02/atozbot/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// counter returns an fn for Do that delegates to result with the attempt number.
func counter(calls *int, result func(attempt int) error) func(context.Context) error {
	return func(context.Context) error {
		*calls++
		return result(*calls)
	}
}

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), 2, 10*time.Millisecond, discardLogger(), counter(&calls, func(int) error {
		return nil
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesOn5xx_SucceedsOnSecondAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), 2, 10*time.Millisecond, discardLogger(), counter(&calls, func(attempt int) error {
		if attempt == 1 {
			return &model.HTTPError{StatusCode: 503, Err: errors.New("service unavailable")}
		}
		return nil
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDo_DoesNotRetryOn4xx(t *testing.T) {
	var calls int
	err := Do(context.Background(), 2, 10*time.Millisecond, discardLogger(), counter(&calls, func(int) error {
		return &model.HTTPError{StatusCode: 404, Err: errors.New("not found")}
	}))
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Fatalf("expected HTTPError with status 404, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call (no retry), got %d", calls)
	}
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int
	err := Do(context.Background(), 2, 10*time.Millisecond, discardLogger(), counter(&calls, func(int) error {
		return &model.HTTPError{StatusCode: 500, Err: errors.New("internal error")}
	}))
	if err == nil {
		t.Fatal("expected error after max retries, got nil")
	}
	// 1 initial + 2 retries
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_HonoursRetryAfter(t *testing.T) {
	var calls int
	start := time.Now()
	err := Do(context.Background(), 1, time.Hour, discardLogger(), counter(&calls, func(attempt int) error {
		if attempt == 1 {
			return &model.HTTPError{StatusCode: 429, RetryAfter: 20 * time.Millisecond}
		}
		return nil
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Retry-After should override base delay, waited %v", elapsed)
	}
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	var calls int
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, 2, time.Second, discardLogger(), counter(&calls, func(int) error {
		return &model.HTTPError{StatusCode: 500, Err: errors.New("internal error")}
	}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}
