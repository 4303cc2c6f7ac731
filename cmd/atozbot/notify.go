package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/mofyally02/atozbot/internal/notifier"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test report",
	Long:  "Sends a sample results report using the configured reporter.",
	RunE:  runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := notifier.SendTestReport(ctx, setupReporter(cfg, logger)); err != nil {
		logger.Error("test report failed", "error", err)
		return err
	}
	logger.Info("test report sent successfully")
	return nil
}
