package main

import (
	"strings"
	"testing"
	"time"

	"github.com/mofyally02/atozbot/internal/store"
)

func TestRenderReport(t *testing.T) {
	end := time.Now()
	p := store.AnalyticsPeriod{
		TotalJobs:          4,
		Accepted:           3,
		Rejected:           1,
		AcceptanceRate:     75,
		MostCommonLanguage: "Polish",
		PeakHour:           9,
		Languages:          map[string]int{"Polish": 3, "Arabic": 1},
	}
	periods := []store.AnalyticsPeriod{{PeriodEnd: end, TotalJobs: 2, Accepted: 2, AcceptanceRate: 100, UptimeSeconds: 3600}}

	out, err := renderReport(24, p, periods)
	if err != nil {
		t.Fatalf("renderReport: %v", err)
	}
	for _, want := range []string{"Last 24h", "75.0%", "Polish", "09:00", "Arabic", "1h0m0s"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Polish") > strings.Index(out, "Arabic") {
		t.Error("languages should be ordered by count")
	}
}

func TestRenderReport_Empty(t *testing.T) {
	out, err := renderReport(1, store.AnalyticsPeriod{PeakHour: -1}, nil)
	if err != nil {
		t.Fatalf("renderReport: %v", err)
	}
	if !strings.Contains(out, "n/a") || !strings.Contains(out, "-") {
		t.Errorf("empty report:\n%s", out)
	}
}
