package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mofyally02/atozbot/internal/audit"
	"github.com/mofyally02/atozbot/internal/store"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Browse session history interactively (TUI)",
	Long:  "Shows the session picker, then a split-pane view of the jobs the session accepted and rejected.",
	RunE:  runAuditCmd,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	// Log output before the alt-screen starts corrupts the display.
	silentLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hist, err := setupStore(cmd.Context(), cfg, silentLogger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return err
	}
	defer hist.Close()

	return runAudit(cmd.Context(), hist)
}

func runAudit(ctx context.Context, hist store.History) error {
	for {
		sessions, err := hist.Sessions(ctx, 100)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		choice, err := audit.RunSessionPicker(sessions)
		if err != nil {
			return fmt.Errorf("session picker: %w", err)
		}
		if choice < 0 {
			return nil
		}
		session := sessions[choice]

		rows, err := audit.RunLoader(session.Name, func(ctx context.Context) ([]store.JobRow, error) {
			return hist.Jobs(ctx, store.JobQuery{SessionID: session.ID, Limit: 5000})
		})
		if err != nil {
			fmt.Printf("Error loading jobs: %v\n", err)
			continue
		}

		wantQuit, err := audit.RunAuditTUI(session, rows)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
	}
}
