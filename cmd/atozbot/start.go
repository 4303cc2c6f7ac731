package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mofyally02/atozbot/internal/bot"
	"github.com/mofyally02/atozbot/internal/notifier"
)

var noConsole bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the bot in the foreground",
	Long:  "Log in and run the bot; blocks until SIGINT/SIGTERM, then prints the session statistics.",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().BoolVar(&noConsole, "no-console", false, "do not print final statistics tables")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}
	logger.Info("config loaded",
		"job_type", cfg.Rules.JobType,
		"check_interval", cfg.Intervals.Check.String(),
		"max_accept_per_cycle", cfg.Rules.MaxAcceptPerCycle,
		"headless", cfg.Browser.Headless,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hist, err := setupStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return err
	}
	defer hist.Close()

	deps := bot.Deps{
		Reporter: setupReporter(cfg, logger),
		History:  hist,
		Redis:    setupRedis(ctx, cfg, logger),
	}
	if deps.Redis != nil {
		defer deps.Redis.Close()
	}
	if !noConsole {
		deps.Console = notifier.NewConsole(os.Stdout)
	}

	if err := bot.New(cfg, deps, logger).Run(ctx); err != nil {
		logger.Error("bot stopped with error", "error", err)
		return err
	}
	logger.Info("goodbye")
	return nil
}
