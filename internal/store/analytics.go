package store

import (
	"time"

	"github.com/mofyally02/atozbot/internal/tracker"
)

// ComputeAnalytics aggregates the job rows handled in [start, end). Rows
// outside the window are ignored. uptime is the bot's running time within the
// window.
func ComputeAnalytics(rows []JobRow, start, end time.Time, uptime time.Duration) AnalyticsPeriod {
	p := AnalyticsPeriod{
		PeriodStart:   start,
		PeriodEnd:     end,
		PeakHour:      -1,
		UptimeSeconds: int64(uptime / time.Second),
		Languages:     map[string]int{},
		Hours:         map[int]int{},
	}
	for _, r := range rows {
		if r.ScrapedAt.Before(start) || !r.ScrapedAt.Before(end) {
			continue
		}
		p.TotalJobs++
		switch r.Outcome {
		case OutcomeAccepted:
			p.Accepted++
		case OutcomeRejected:
			p.Rejected++
		}
		if r.Language != "" {
			p.Languages[r.Language]++
		}
		if h, ok := r.AppointmentHour(); ok {
			p.Hours[h]++
		}
	}
	if p.TotalJobs > 0 {
		p.AcceptanceRate = float64(p.Accepted) / float64(p.TotalJobs) * 100
	}
	if ranked := tracker.Ranked(p.Languages); len(ranked) > 0 {
		p.MostCommonLanguage = ranked[0].Key
	}
	best := 0
	for h := 0; h < 24; h++ {
		if n := p.Hours[h]; n > best {
			best, p.PeakHour = n, h
		}
	}
	return p
}
