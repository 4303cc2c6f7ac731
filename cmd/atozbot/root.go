package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mofyally02/atozbot/internal/activity"
	"github.com/mofyally02/atozbot/internal/config"
	"github.com/mofyally02/atozbot/internal/notifier"
	"github.com/mofyally02/atozbot/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "atozbot",
	Short: "AtoZ interpreting job-board bot",
	Long:  "atozbot watches the AtoZ interpreter job board, accepts matching jobs and reports on what it did.",
	// Default to `start` so that `atozbot` with no args runs the bot.
	RunE:          runStart,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: ATOZBOT_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > ATOZBOT_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("ATOZBOT_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupReporter(cfg *config.Config, logger *slog.Logger) notifier.Reporter {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack reporter")
		httpClient := &http.Client{Timeout: 30 * time.Second}
		return notifier.NewSlackReporter(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogReporter(logger)
	}
}

func setupStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.History, error) {
	hist, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	logger.Info("history store opened", "driver", cfg.Store.Driver)
	return hist, nil
}

// setupRedis connects the live activity feed. A missing or unreachable Redis
// only disables the feed.
func setupRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) *redis.Client {
	if cfg.Redis.URL == "" {
		return nil
	}
	rdb, err := activity.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Warn("activity feed disabled", "error", err)
		return nil
	}
	logger.Info("activity feed enabled")
	return rdb
}
