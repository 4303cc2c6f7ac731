package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mofyally02/atozbot/internal/bot"
	"github.com/mofyally02/atozbot/internal/dashboard"
	"github.com/mofyally02/atozbot/internal/scheduler"
	"github.com/mofyally02/atozbot/internal/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API",
	Long:  "Serves the REST API and websocket feed; bot sessions are started and stopped through the API.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hist, err := setupStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return err
	}
	defer hist.Close()

	rdb := setupRedis(ctx, cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}
	reporter := setupReporter(cfg, logger)
	hub := dashboard.NewHub(cfg.Dashboard.AllowedOrigins, logger)

	runner := dashboard.NewRunner(func() dashboard.Bot {
		return bot.New(cfg, bot.Deps{
			Reporter:   reporter,
			History:    hist,
			Redis:      rdb,
			Sinks:      []tracker.Sink{hub},
			Publishers: []scheduler.Publisher{hub},
		}, logger)
	}, logger)

	housekeeper := dashboard.NewHousekeeper(hist, hub, runner, cfg.Store.Retention, logger)
	if err := housekeeper.Start(ctx); err != nil {
		logger.Error("failed to start housekeeping", "error", err)
		return err
	}
	defer housekeeper.Stop()

	server := dashboard.NewServer(ctx, cfg.Dashboard, runner, hist, hub, rdb, logger)
	if err := server.ListenAndServe(ctx); err != nil {
		logger.Error("dashboard stopped with error", "error", err)
		return err
	}

	// Sessions run under ctx, so they are already stopping.
	runner.Wait(context.Background())
	logger.Info("goodbye")
	return nil
}
