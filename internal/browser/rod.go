package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/mofyally02/atozbot/internal/config"
	"github.com/mofyally02/atozbot/internal/model"
	"github.com/mofyally02/atozbot/internal/ratelimit"
)

// Session owns a browser process (or a connection to a remote one) and the
// single page the bot drives.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *RodPage
}

// Launch starts a browser, or connects to cfg.ControlURL, and opens one page
// with the configured user agent, locale, timezone and viewport.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *slog.Logger) (*Session, error) {
	s := &Session{}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		s.launcher = launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			s.launcher = s.launcher.Bin(cfg.Bin)
		}
		if cfg.Locale != "" {
			s.launcher = s.launcher.Set("lang", cfg.Locale)
		}
		u, err := s.launcher.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := configurePage(page, cfg); err != nil {
		s.Close()
		return nil, err
	}

	s.page = &RodPage{
		page:       page,
		navTimeout: cfg.NavTimeout,
		limiter:    ratelimit.New(cfg.MinNavDelay),
		logger:     logger.With("component", "browser"),
	}
	logger.Info("browser ready", "headless", cfg.Headless, "remote", cfg.ControlURL != "")
	return s, nil
}

func configurePage(page *rod.Page, cfg config.BrowserConfig) error {
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.Locale,
	}); err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1366,
		Height:            768,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	if cfg.Timezone != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: cfg.Timezone}).Call(page); err != nil {
			return fmt.Errorf("set timezone: %w", err)
		}
	}
	return nil
}

// Page returns the session's page.
func (s *Session) Page() *RodPage { return s.page }

// Close closes the browser and removes the launcher's temporary profile.
func (s *Session) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	s.cleanup()
	return err
}

func (s *Session) cleanup() {
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
}

// RodPage implements model.Page on a rod page. Every call is bounded by the
// caller's context and a timeout.
type RodPage struct {
	page       *rod.Page
	navTimeout time.Duration
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
}

var _ model.Page = (*RodPage)(nil)

// bounded returns the page bound to ctx with timeout d. The caller must call
// the returned cancel func once the page calls are done.
func (p *RodPage) bounded(ctx context.Context, d time.Duration) (*rod.Page, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(ctx, d)
	return p.page.Context(tctx), cancel
}

// Navigate loads url and waits for the load event.
func (p *RodPage) Navigate(ctx context.Context, rawURL string) error {
	if err := p.limiter.Wait(ctx, hostOf(rawURL)); err != nil {
		return err
	}
	p.logger.Debug("navigate", "url", rawURL)
	pg, cancel := p.bounded(ctx, p.navTimeout)
	defer cancel()
	if err := pg.Navigate(rawURL); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", rawURL, err)
	}
	return nil
}

// WaitFor waits until selector matches an element.
func (p *RodPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	pg, cancel := p.bounded(ctx, timeout)
	defer cancel()
	if _, err := pg.Element(selector); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

// WaitVisible waits until selector matches an element that is visible.
func (p *RodPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	pg, cancel := p.bounded(ctx, timeout)
	defer cancel()
	el, err := pg.Element(selector)
	if err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("wait visible %q: %w", selector, err)
	}
	return nil
}

// WaitIdle waits for the page to become idle.
func (p *RodPage) WaitIdle(ctx context.Context, timeout time.Duration) error {
	if err := p.page.Context(ctx).WaitIdle(timeout); err != nil {
		return fmt.Errorf("wait idle: %w", err)
	}
	return nil
}

// HTML returns the page's current document.
func (p *RodPage) HTML(ctx context.Context) (string, error) {
	pg, cancel := p.bounded(ctx, p.navTimeout)
	defer cancel()
	html, err := pg.HTML()
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

// Query returns the elements currently matching selector without waiting.
// The elements stay bound to ctx, not to the query's timeout.
func (p *RodPage) Query(ctx context.Context, selector string) ([]model.Element, error) {
	pg, cancel := p.bounded(ctx, p.navTimeout)
	defer cancel()
	els, err := pg.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return wrapElements(ctx, els, p.navTimeout), nil
}

// Visible reports whether selector matches a visible element right now.
func (p *RodPage) Visible(ctx context.Context, selector string) (bool, error) {
	pg, cancel := p.bounded(ctx, p.navTimeout)
	defer cancel()
	has, el, err := pg.Has(selector)
	if err != nil {
		return false, fmt.Errorf("query %q: %w", selector, err)
	}
	if !has {
		return false, nil
	}
	return el.Visible()
}

// Click clicks the first element matching selector.
func (p *RodPage) Click(ctx context.Context, selector string) error {
	pg, cancel := p.bounded(ctx, p.navTimeout)
	defer cancel()
	el, err := pg.Element(selector)
	if err != nil {
		return fmt.Errorf("find %q: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// Fill replaces the text of the first input matching selector.
func (p *RodPage) Fill(ctx context.Context, selector, text string) error {
	pg, cancel := p.bounded(ctx, p.navTimeout)
	defer cancel()
	el, err := pg.Element(selector)
	if err != nil {
		return fmt.Errorf("find %q: %w", selector, err)
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select %q: %w", selector, err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("fill %q: %w", selector, err)
	}
	return nil
}

// rodElement bounds every call on el by timeout, derived from ctx.
type rodElement struct {
	ctx     context.Context
	el      *rod.Element
	timeout time.Duration
}

func wrapElements(ctx context.Context, els rod.Elements, timeout time.Duration) []model.Element {
	out := make([]model.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{ctx: ctx, el: el, timeout: timeout})
	}
	return out
}

func (e *rodElement) bounded() (*rod.Element, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(e.ctx, e.timeout)
	return e.el.Context(tctx), cancel
}

func (e *rodElement) Text() (string, error) {
	el, cancel := e.bounded()
	defer cancel()
	return el.Text()
}

func (e *rodElement) Attribute(name string) (string, bool, error) {
	el, cancel := e.bounded()
	defer cancel()
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) Query(selector string) ([]model.Element, error) {
	el, cancel := e.bounded()
	defer cancel()
	els, err := el.Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(e.ctx, els, e.timeout), nil
}

func (e *rodElement) Click() error {
	el, cancel := e.bounded()
	defer cancel()
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
