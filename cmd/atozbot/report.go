package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mofyally02/atozbot/internal/store"
)

var reportHours int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print analytics from the session history",
	Long:  "Aggregates the jobs handled in the last --hours and lists the stored analytics periods.",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportHours, "hours", 24, "size of the reporting window in hours")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}
	ctx := cmd.Context()
	hist, err := setupStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return err
	}
	defer hist.Close()

	end := time.Now()
	start := end.Add(-time.Duration(reportHours) * time.Hour)
	rows, err := hist.Jobs(ctx, store.JobQuery{Since: start, Limit: 10000})
	if err != nil {
		return fmt.Errorf("loading jobs: %w", err)
	}
	current := store.ComputeAnalytics(rows, start, end, 0)
	periods, err := hist.Analytics(ctx, 12)
	if err != nil {
		return fmt.Errorf("loading analytics: %w", err)
	}

	out, err := renderReport(reportHours, current, periods)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func renderReport(hours int, p store.AnalyticsPeriod, periods []store.AnalyticsPeriod) (string, error) {
	peak := "n/a"
	if p.PeakHour >= 0 {
		peak = fmt.Sprintf("%02d:00", p.PeakHour)
	}
	summary := pterm.TableData{
		{"Last " + fmt.Sprint(hours) + "h", ""},
		{"Jobs handled", humanize.Comma(int64(p.TotalJobs))},
		{"Accepted", humanize.Comma(int64(p.Accepted))},
		{"Rejected", humanize.Comma(int64(p.Rejected))},
		{"Acceptance rate", fmt.Sprintf("%.1f%%", p.AcceptanceRate)},
		{"Most common language", orDash(p.MostCommonLanguage)},
		{"Peak appointment hour", peak},
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(summary).Srender()
	if err != nil {
		return "", fmt.Errorf("render table: %w", err)
	}
	out += "\n\n"

	if len(p.Languages) > 0 {
		langs := make([]string, 0, len(p.Languages))
		for l := range p.Languages {
			langs = append(langs, l)
		}
		sort.Slice(langs, func(i, j int) bool {
			if p.Languages[langs[i]] != p.Languages[langs[j]] {
				return p.Languages[langs[i]] > p.Languages[langs[j]]
			}
			return langs[i] < langs[j]
		})
		data := pterm.TableData{{"Language", "Jobs"}}
		for _, l := range langs {
			data = append(data, []string{l, fmt.Sprint(p.Languages[l])})
		}
		t, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return "", fmt.Errorf("render table: %w", err)
		}
		out += t + "\n\n"
	}

	if len(periods) > 0 {
		data := pterm.TableData{{"Period", "Jobs", "Accepted", "Rejected", "Rate", "Uptime"}}
		for _, ap := range periods {
			data = append(data, []string{
				humanize.Time(ap.PeriodEnd),
				fmt.Sprint(ap.TotalJobs),
				fmt.Sprint(ap.Accepted),
				fmt.Sprint(ap.Rejected),
				fmt.Sprintf("%.1f%%", ap.AcceptanceRate),
				(time.Duration(ap.UptimeSeconds) * time.Second).String(),
			})
		}
		t, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return "", fmt.Errorf("render table: %w", err)
		}
		out += t + "\n"
	}
	return out, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
