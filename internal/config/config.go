package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the bot, the dashboard and the tools
// that read session history.
type Config struct {
	Portal       PortalConfig
	Browser      BrowserConfig
	Intervals    IntervalConfig
	Features     FeatureConfig
	Rules        RulesConfig
	Notification NotificationConfig
	Store        StoreConfig
	Redis        RedisConfig
	Dashboard    DashboardConfig
}

// PortalConfig locates the job board and holds the interpreter's credentials.
type PortalConfig struct {
	BaseURL   string
	JobsPath  string
	LoginPath string
	Username  string // expanded from env var by Load
	Password  string // expanded from env var by Load
}

// JobsURL is the absolute URL of the job list.
func (p PortalConfig) JobsURL() string { return joinURL(p.BaseURL, p.JobsPath) }

// LoginURL is the absolute URL of the login form.
func (p PortalConfig) LoginURL() string { return joinURL(p.BaseURL, p.LoginPath) }

// CheckCredentials reports whether a username and password are configured.
func (p PortalConfig) CheckCredentials() error {
	if p.Username == "" || p.Password == "" {
		return fmt.Errorf("portal.username and portal.password are required")
	}
	return nil
}

// BrowserConfig controls the automated browser.
type BrowserConfig struct {
	Headless      bool
	Bin           string        // browser executable, empty to let the launcher pick one
	ControlURL    string        // DevTools websocket of an already running browser
	UserAgent     string
	Locale        string
	Timezone      string
	NavTimeout    time.Duration // navigation and network idle waits
	ListTimeout   time.Duration // wait for the job list container
	DialogTimeout time.Duration // wait for a confirmation dialog to appear
	MinNavDelay   time.Duration // minimum gap between navigations to the portal
}

// IntervalConfig holds the four independent timers of the run loop.
type IntervalConfig struct {
	Check          time.Duration
	QuickCheck     time.Duration
	ResultsReport  time.Duration
	RejectedReport time.Duration
}

// FeatureConfig toggles the optional units of the run loop.
type FeatureConfig struct {
	QuickCheck        bool
	ResultsReporting  bool
	RejectedReporting bool
}

// RulesConfig is the classification rule.
type RulesConfig struct {
	JobType           string
	ExcludeTypes      []string
	RequiredFields    []string
	MaxAcceptPerCycle int
	Justification     string // text entered in the cancellation-reason dialog
}

// NotificationConfig controls which reporter is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// StoreConfig selects the session history database.
type StoreConfig struct {
	Driver    string // "sqlite", "postgres" or "none"
	DSN       string
	Retention time.Duration
}

// RedisConfig enables the live activity feed when URL is set.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// DashboardConfig controls the HTTP dashboard.
type DashboardConfig struct {
	Addr           string   `yaml:"addr"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

const (
	defaultBaseURL       = "https://portal.atozinterpreting.com"
	defaultJobsPath      = "/interpreter-jobs"
	defaultLoginPath     = "/login"
	defaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultJobType       = "Telephone interpreting"
	defaultJustification = "Accepting job via automation"
)

var (
	defaultExcludeTypes   = []string{"Face-to-Face", "Face to Face", "In-Person", "Onsite"}
	defaultRequiredFields = []string{"ref", "submitted", "appt_date", "appt_time", "duration", "language", "status"}
)

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Portal       rawPortalConfig    `yaml:"portal"`
	Browser      rawBrowserConfig   `yaml:"browser"`
	Intervals    rawIntervalConfig  `yaml:"intervals"`
	Features     rawFeatureConfig   `yaml:"features"`
	Rules        rawRulesConfig     `yaml:"rules"`
	Notification NotificationConfig `yaml:"notification"`
	Store        rawStoreConfig     `yaml:"store"`
	Redis        RedisConfig        `yaml:"redis"`
	Dashboard    DashboardConfig    `yaml:"dashboard"`
}

type rawPortalConfig struct {
	BaseURL   string `yaml:"base_url"`
	JobsPath  string `yaml:"jobs_path"`
	LoginPath string `yaml:"login_path"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type rawBrowserConfig struct {
	Headless      *bool  `yaml:"headless"`
	Bin           string `yaml:"bin"`
	ControlURL    string `yaml:"control_url"`
	UserAgent     string `yaml:"user_agent"`
	Locale        string `yaml:"locale"`
	Timezone      string `yaml:"timezone"`
	NavTimeout    string `yaml:"nav_timeout"`
	ListTimeout   string `yaml:"list_timeout"`
	DialogTimeout string `yaml:"dialog_timeout"`
	MinNavDelay   string `yaml:"min_nav_delay"`
}

type rawIntervalConfig struct {
	Check          string `yaml:"check"`
	QuickCheck     string `yaml:"quick_check"`
	ResultsReport  string `yaml:"results_report"`
	RejectedReport string `yaml:"rejected_report"`
}

type rawFeatureConfig struct {
	QuickCheck        *bool `yaml:"quick_check"`
	ResultsReporting  *bool `yaml:"results_reporting"`
	RejectedReporting *bool `yaml:"rejected_reporting"`
}

type rawRulesConfig struct {
	JobType           string   `yaml:"job_type"`
	ExcludeTypes      []string `yaml:"exclude_types"`
	RequiredFields    []string `yaml:"required_fields"`
	MaxAcceptPerCycle *int     `yaml:"max_accept_per_cycle"`
	Justification     string   `yaml:"justification"`
}

type rawStoreConfig struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	Retention string `yaml:"retention"`
}

// Load reads the .env file next to path (if any), then parses the YAML config
// file at path with environment variables expanded, validates it, and returns
// Config.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromRaw(raw rawConfig) (*Config, error) {
	var (
		cfg Config
		err error
	)

	cfg.Portal = PortalConfig{
		BaseURL:   strings.TrimRight(orDefault(raw.Portal.BaseURL, defaultBaseURL), "/"),
		JobsPath:  orDefault(raw.Portal.JobsPath, defaultJobsPath),
		LoginPath: orDefault(raw.Portal.LoginPath, defaultLoginPath),
		Username:  raw.Portal.Username,
		Password:  raw.Portal.Password,
	}

	cfg.Browser = BrowserConfig{
		Headless:   boolOr(raw.Browser.Headless, true),
		Bin:        raw.Browser.Bin,
		ControlURL: raw.Browser.ControlURL,
		UserAgent:  orDefault(raw.Browser.UserAgent, defaultUserAgent),
		Locale:     orDefault(raw.Browser.Locale, "en-GB"),
		Timezone:   orDefault(raw.Browser.Timezone, "Europe/London"),
	}
	durations := []struct {
		key  string
		raw  string
		def  time.Duration
		dest *time.Duration
	}{
		{"browser.nav_timeout", raw.Browser.NavTimeout, 30 * time.Second, &cfg.Browser.NavTimeout},
		{"browser.list_timeout", raw.Browser.ListTimeout, 10 * time.Second, &cfg.Browser.ListTimeout},
		{"browser.dialog_timeout", raw.Browser.DialogTimeout, 1500 * time.Millisecond, &cfg.Browser.DialogTimeout},
		{"browser.min_nav_delay", raw.Browser.MinNavDelay, 0, &cfg.Browser.MinNavDelay},
		{"intervals.check", raw.Intervals.Check, 500 * time.Millisecond, &cfg.Intervals.Check},
		{"intervals.quick_check", raw.Intervals.QuickCheck, 10 * time.Second, &cfg.Intervals.QuickCheck},
		{"intervals.results_report", raw.Intervals.ResultsReport, 5 * time.Second, &cfg.Intervals.ResultsReport},
		{"intervals.rejected_report", raw.Intervals.RejectedReport, 12 * time.Hour, &cfg.Intervals.RejectedReport},
		{"store.retention", raw.Store.Retention, 7 * 24 * time.Hour, &cfg.Store.Retention},
	}
	for _, d := range durations {
		*d.dest = d.def
		if d.raw == "" {
			continue
		}
		*d.dest, err = time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", d.key, d.raw, err)
		}
	}

	cfg.Features = FeatureConfig{
		QuickCheck:        boolOr(raw.Features.QuickCheck, true),
		ResultsReporting:  boolOr(raw.Features.ResultsReporting, true),
		RejectedReporting: boolOr(raw.Features.RejectedReporting, true),
	}

	cfg.Rules = RulesConfig{
		JobType:           orDefault(raw.Rules.JobType, defaultJobType),
		ExcludeTypes:      raw.Rules.ExcludeTypes,
		RequiredFields:    raw.Rules.RequiredFields,
		MaxAcceptPerCycle: 5,
		Justification:     orDefault(raw.Rules.Justification, defaultJustification),
	}
	if cfg.Rules.ExcludeTypes == nil {
		cfg.Rules.ExcludeTypes = append([]string(nil), defaultExcludeTypes...)
	}
	if cfg.Rules.RequiredFields == nil {
		cfg.Rules.RequiredFields = append([]string(nil), defaultRequiredFields...)
	}
	if raw.Rules.MaxAcceptPerCycle != nil {
		cfg.Rules.MaxAcceptPerCycle = *raw.Rules.MaxAcceptPerCycle
	}

	cfg.Notification = raw.Notification
	if cfg.Notification.Type == "" {
		cfg.Notification.Type = "log"
	}

	cfg.Store = StoreConfig{
		Driver:    orDefault(raw.Store.Driver, "sqlite"),
		DSN:       raw.Store.DSN,
		Retention: cfg.Store.Retention,
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.DSN == "" {
		cfg.Store.DSN = "atozbot.db"
	}

	cfg.Redis = raw.Redis
	cfg.Dashboard = raw.Dashboard
	if cfg.Dashboard.Addr == "" {
		cfg.Dashboard.Addr = ":8000"
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Portal.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("portal.base_url must be an absolute URL, got %q", cfg.Portal.BaseURL)
	}

	intervals := map[string]time.Duration{
		"intervals.check":           cfg.Intervals.Check,
		"intervals.quick_check":     cfg.Intervals.QuickCheck,
		"intervals.results_report":  cfg.Intervals.ResultsReport,
		"intervals.rejected_report": cfg.Intervals.RejectedReport,
		"browser.nav_timeout":       cfg.Browser.NavTimeout,
		"browser.list_timeout":      cfg.Browser.ListTimeout,
		"browser.dialog_timeout":    cfg.Browser.DialogTimeout,
	}
	for key, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", key, d)
		}
	}
	if cfg.Browser.MinNavDelay < 0 {
		return fmt.Errorf("browser.min_nav_delay must not be negative, got %v", cfg.Browser.MinNavDelay)
	}

	if strings.TrimSpace(cfg.Rules.JobType) == "" {
		return fmt.Errorf("rules.job_type must not be empty")
	}
	if cfg.Rules.MaxAcceptPerCycle < 1 {
		return fmt.Errorf("rules.max_accept_per_cycle must be at least 1, got %d", cfg.Rules.MaxAcceptPerCycle)
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}

	switch cfg.Store.Driver {
	case "sqlite", "none":
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when driver is \"postgres\"")
		}
	default:
		return fmt.Errorf("store.driver must be sqlite, postgres or none, got %q", cfg.Store.Driver)
	}
	if cfg.Store.Retention < 24*time.Hour {
		return fmt.Errorf("store.retention must be at least 24h, got %v", cfg.Store.Retention)
	}

	if (cfg.Dashboard.Username == "") != (cfg.Dashboard.Password == "") {
		return fmt.Errorf("dashboard.username and dashboard.password must be set together")
	}

	return nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
