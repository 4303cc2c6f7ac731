package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
portal:
  username: me@example.com
  password: secret
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Portal.JobsURL(); got != "https://portal.atozinterpreting.com/interpreter-jobs" {
		t.Errorf("JobsURL = %q", got)
	}
	if got := cfg.Portal.LoginURL(); got != "https://portal.atozinterpreting.com/login" {
		t.Errorf("LoginURL = %q", got)
	}
	if cfg.Intervals.Check != 500*time.Millisecond {
		t.Errorf("Check = %v, want 500ms", cfg.Intervals.Check)
	}
	if cfg.Intervals.QuickCheck != 10*time.Second {
		t.Errorf("QuickCheck = %v, want 10s", cfg.Intervals.QuickCheck)
	}
	if cfg.Intervals.ResultsReport != 5*time.Second {
		t.Errorf("ResultsReport = %v, want 5s", cfg.Intervals.ResultsReport)
	}
	if cfg.Intervals.RejectedReport != 12*time.Hour {
		t.Errorf("RejectedReport = %v, want 12h", cfg.Intervals.RejectedReport)
	}
	if cfg.Rules.MaxAcceptPerCycle != 5 {
		t.Errorf("MaxAcceptPerCycle = %d, want 5", cfg.Rules.MaxAcceptPerCycle)
	}
	if cfg.Rules.JobType != "Telephone interpreting" {
		t.Errorf("JobType = %q", cfg.Rules.JobType)
	}
	if len(cfg.Rules.ExcludeTypes) != 4 || cfg.Rules.ExcludeTypes[0] != "Face-to-Face" {
		t.Errorf("ExcludeTypes = %v", cfg.Rules.ExcludeTypes)
	}
	if len(cfg.Rules.RequiredFields) != 7 {
		t.Errorf("RequiredFields = %v", cfg.Rules.RequiredFields)
	}
	if !cfg.Browser.Headless {
		t.Error("Headless should default to true")
	}
	if !cfg.Features.QuickCheck || !cfg.Features.ResultsReporting || !cfg.Features.RejectedReporting {
		t.Errorf("Features = %+v, want all enabled", cfg.Features)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.DSN != "atozbot.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Notification.Type != "log" {
		t.Errorf("Notification.Type = %q, want log", cfg.Notification.Type)
	}
	if err := cfg.Portal.CheckCredentials(); err != nil {
		t.Errorf("CheckCredentials: %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
portal:
  base_url: https://staging.example.com/
  jobs_path: jobs
browser:
  headless: false
  dialog_timeout: 500ms
intervals:
  check: 1s
  rejected_report: 200ms
features:
  quick_check: false
rules:
  job_type: Video interpreting
  exclude_types: [Onsite]
  max_accept_per_cycle: 2
store:
  driver: none
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Portal.JobsURL(); got != "https://staging.example.com/jobs" {
		t.Errorf("JobsURL = %q", got)
	}
	if cfg.Browser.Headless {
		t.Error("Headless should be false")
	}
	if cfg.Browser.DialogTimeout != 500*time.Millisecond {
		t.Errorf("DialogTimeout = %v", cfg.Browser.DialogTimeout)
	}
	if cfg.Intervals.RejectedReport != 200*time.Millisecond {
		t.Errorf("RejectedReport = %v", cfg.Intervals.RejectedReport)
	}
	if cfg.Features.QuickCheck {
		t.Error("QuickCheck should be disabled")
	}
	if cfg.Rules.JobType != "Video interpreting" || cfg.Rules.MaxAcceptPerCycle != 2 {
		t.Errorf("Rules = %+v", cfg.Rules)
	}
	if len(cfg.Rules.ExcludeTypes) != 1 || cfg.Rules.ExcludeTypes[0] != "Onsite" {
		t.Errorf("ExcludeTypes = %v", cfg.Rules.ExcludeTypes)
	}
}

func TestLoad_ExpandsEnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ATOZBOT_TEST_PASSWORD=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ATOZBOT_TEST_USER", "me@example.com")
	t.Cleanup(func() { os.Unsetenv("ATOZBOT_TEST_PASSWORD") })

	path := filepath.Join(dir, "config.yaml")
	content := `
portal:
  username: ${ATOZBOT_TEST_USER}
  password: ${ATOZBOT_TEST_PASSWORD}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Portal.Username != "me@example.com" {
		t.Errorf("Username = %q", cfg.Portal.Username)
	}
	if cfg.Portal.Password != "from-dotenv" {
		t.Errorf("Password = %q", cfg.Portal.Password)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml")); err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "portal: [broken")); err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad duration", "intervals:\n  check: soon\n", "intervals.check"},
		{"zero interval", "intervals:\n  results_report: 0s\n", "intervals.results_report"},
		{"zero cap", "rules:\n  max_accept_per_cycle: 0\n", "max_accept_per_cycle"},
		{"relative base url", "portal:\n  base_url: portal\n", "portal.base_url"},
		{"slack without webhook", "notification:\n  type: slack\n", "webhook_url"},
		{"slack bad webhook", "notification:\n  type: slack\n  webhook_url: https://evil.example/\n", "hooks.slack.com"},
		{"unknown notifier", "notification:\n  type: pager\n", "notification.type"},
		{"postgres without dsn", "store:\n  driver: postgres\n", "store.dsn"},
		{"unknown driver", "store:\n  driver: mongo\n", "store.driver"},
		{"short retention", "store:\n  retention: 1h\n", "store.retention"},
		{"half dashboard auth", "dashboard:\n  username: admin\n", "dashboard.username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestPortalConfig_CheckCredentials(t *testing.T) {
	if err := (PortalConfig{Username: "me"}).CheckCredentials(); err == nil {
		t.Error("expected error without password")
	}
}
