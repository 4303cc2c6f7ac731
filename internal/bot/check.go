package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mofyally02/atozbot/internal/board"
	"github.com/mofyally02/atozbot/internal/browser"
	"github.com/mofyally02/atozbot/internal/config"
	"github.com/mofyally02/atozbot/internal/model"
	"github.com/mofyally02/atozbot/internal/poller"
)

// Check logs in and runs one quick check for the configured job type. It
// never accepts or rejects anything.
func Check(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]model.JobRecord, error) {
	return check(ctx, cfg, launchRod, logger)
}

func check(ctx context.Context, cfg *config.Config, open browserOpener, logger *slog.Logger) ([]model.JobRecord, error) {
	logger = logger.With("component", "check")

	page, closeBrowser, err := open(ctx, cfg.Browser, logger)
	if err != nil {
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	defer func() {
		if cerr := closeBrowser(); cerr != nil {
			logger.Debug("closing browser", "error", cerr)
		}
	}()

	if err := browser.NewLogin(page, cfg.Portal, cfg.Browser.NavTimeout, logger).Run(ctx); err != nil {
		return nil, err
	}

	brd := board.New(page, cfg.Portal.JobsURL(), cfg.Browser.ListTimeout, logger)
	matches, err := poller.NewQuickChecker(brd, brd, cfg.Rules.JobType, logger).Matches(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("check complete", "matches", len(matches), "job_type", cfg.Rules.JobType)
	return matches, nil
}
