package browser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mofyally02/atozbot/internal/config"
	"github.com/mofyally02/atozbot/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedPage records interactions; selectors in present resolve, others time out.
type scriptedPage struct {
	present map[string]bool
	visible map[string]bool
	filled  map[string]string
	clicks  []string
	urls    []string
}

func newScriptedPage() *scriptedPage {
	return &scriptedPage{
		present: map[string]bool{emailSelector: true},
		visible: map[string]bool{},
		filled:  map[string]string{},
	}
}

func (p *scriptedPage) Navigate(_ context.Context, url string) error {
	p.urls = append(p.urls, url)
	return nil
}

func (p *scriptedPage) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	if p.present[selector] {
		return nil
	}
	return context.DeadlineExceeded
}

func (p *scriptedPage) WaitVisible(ctx context.Context, selector string, d time.Duration) error {
	return p.WaitFor(ctx, selector, d)
}
func (p *scriptedPage) WaitIdle(context.Context, time.Duration) error          { return nil }
func (p *scriptedPage) HTML(context.Context) (string, error)                   { return "", nil }
func (p *scriptedPage) Query(context.Context, string) ([]model.Element, error) { return nil, nil }

func (p *scriptedPage) Visible(_ context.Context, selector string) (bool, error) {
	return p.visible[selector], nil
}

func (p *scriptedPage) Click(_ context.Context, selector string) error {
	p.clicks = append(p.clicks, selector)
	return nil
}

func (p *scriptedPage) Fill(_ context.Context, selector, text string) error {
	p.filled[selector] = text
	return nil
}

func newTestLogin(page model.Page) *Login {
	l := NewLogin(page, config.PortalConfig{
		BaseURL:   "https://portal.example",
		LoginPath: "/login",
		Username:  "me@example.com",
		Password:  "secret",
	}, time.Second, discardLogger())
	l.pause = func(context.Context, time.Duration, time.Duration) {}
	return l
}

func TestLogin_Success(t *testing.T) {
	page := newScriptedPage()
	page.present[signedInSelector] = true

	if err := newTestLogin(page).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(page.urls) != 1 || page.urls[0] != "https://portal.example/login" {
		t.Errorf("urls = %v", page.urls)
	}
	if page.filled[emailSelector] != "me@example.com" || page.filled[passwordSelector] != "secret" {
		t.Errorf("filled = %v", page.filled)
	}
	if last := page.clicks[len(page.clicks)-1]; last != submitSelector {
		t.Errorf("last click = %q, want submit", last)
	}
}

func TestLogin_RedirectedWithoutHeader(t *testing.T) {
	page := newScriptedPage()

	if err := newTestLogin(page).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestLogin_StillOnForm(t *testing.T) {
	page := newScriptedPage()
	page.visible[passwordSelector] = true

	err := newTestLogin(page).Run(context.Background())
	if !errors.Is(err, model.ErrLoginFailed) {
		t.Fatalf("err = %v, want ErrLoginFailed", err)
	}
}

func TestLogin_MissingCredentials(t *testing.T) {
	page := newScriptedPage()
	l := NewLogin(page, config.PortalConfig{BaseURL: "https://portal.example"}, time.Second, discardLogger())

	if err := l.Run(context.Background()); !errors.Is(err, model.ErrLoginFailed) {
		t.Fatalf("err = %v, want ErrLoginFailed", err)
	}
	if len(page.urls) != 0 {
		t.Error("should not navigate without credentials")
	}
}

func TestHostOf(t *testing.T) {
	if got := hostOf("https://portal.example/interpreter-jobs/1"); got != "portal.example" {
		t.Errorf("hostOf = %q", got)
	}
	if got := hostOf("not a url"); got != "not a url" {
		t.Errorf("hostOf = %q", got)
	}
}
