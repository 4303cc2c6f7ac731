package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mofyally02/atozbot/internal/bot"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Log in once and list jobs of the configured type",
	Long:  "Runs a single quick check and prints the matched jobs. Nothing is accepted or rejected.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs, err := bot.Check(ctx, cfg, logger)
	if err != nil {
		logger.Error("check failed", "error", err)
		return err
	}

	if len(jobs) == 0 {
		fmt.Printf("No matched %q jobs on the board.\n", cfg.Rules.JobType)
		return nil
	}
	data := pterm.TableData{{"Ref", "Date", "Time", "Duration", "Language", "Status"}}
	for _, j := range jobs {
		data = append(data, []string{j.Ref, j.AppointmentDate, j.AppointmentTime, j.Duration, j.Language, j.Status})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	fmt.Println(out)
	return nil
}
