package tracker

import (
	"sort"
	"time"

	"github.com/mofyally02/atozbot/internal/model"
)

// Summary is the results report: totals for the session plus the accepted and
// rejected jobs recorded since the previous results report.
type Summary struct {
	ReportTime      time.Time
	SessionDuration time.Duration
	CheckCycles     int64
	Login           LoginStatus
	SinceLogin      time.Duration // zero when never logged in
	SinceActivity   time.Duration // zero when never active

	TotalAccepted           int
	TotalRejected           int
	AcceptedSinceLastReport int
	RejectedSinceLastReport int
	AcceptedJobs            []model.AcceptedJob
	RejectedJobs            []model.RejectedJob
}

// HasActivity reports whether any job was accepted or rejected since the
// previous report.
func (s Summary) HasActivity() bool {
	return s.AcceptedSinceLastReport > 0 || s.RejectedSinceLastReport > 0
}

// RejectedSummary is the rejected jobs report.
type RejectedSummary struct {
	ReportTime              time.Time
	SessionDuration         time.Duration
	Interval                time.Duration
	CheckCycles             int64
	Login                   LoginStatus
	TotalRejected           int
	RejectedSinceLastReport int
	Jobs                    []model.RejectedJob
}

// Summary computes the results summary without advancing the report time.
// A job belongs to "since last report" when it was recorded at or after the
// previous results report.
func (t *Tracker) Summary() Summary {
	now := t.now()
	s := Summary{
		ReportTime:      now,
		SessionDuration: now.Sub(t.sessionStart),
		CheckCycles:     t.checkCycles,
		Login:           t.login,
		TotalAccepted:   t.totalAccepted,
		TotalRejected:   t.totalRejected,
	}
	if !t.loginTime.IsZero() {
		s.SinceLogin = now.Sub(t.loginTime)
	}
	if !t.lastActivity.IsZero() {
		s.SinceActivity = now.Sub(t.lastActivity)
	}
	for _, a := range t.accepted {
		if sinceReport(a.AcceptedAt, t.lastReport, t.reported) {
			s.AcceptedJobs = append(s.AcceptedJobs, a)
		}
	}
	for _, r := range t.rejected {
		if sinceReport(r.RejectedAt, t.lastReport, t.reported) {
			s.RejectedJobs = append(s.RejectedJobs, r)
		}
	}
	s.AcceptedSinceLastReport = len(s.AcceptedJobs)
	s.RejectedSinceLastReport = len(s.RejectedJobs)
	return s
}

// RejectedSummary computes the rejected jobs summary without advancing the
// rejected report time.
func (t *Tracker) RejectedSummary() RejectedSummary {
	now := t.now()
	s := RejectedSummary{
		ReportTime:      now,
		SessionDuration: now.Sub(t.sessionStart),
		Interval:        t.rejectedInterval,
		CheckCycles:     t.checkCycles,
		Login:           t.login,
		TotalRejected:   t.totalRejected,
	}
	for _, r := range t.rejected {
		if sinceReport(r.RejectedAt, t.lastRejectedReport, t.rejectedReported) {
			s.Jobs = append(s.Jobs, r)
		}
	}
	s.RejectedSinceLastReport = len(s.Jobs)
	return s
}

// sinceReport reports whether at falls in the window opened by the previous
// report. The first window includes the session start; later windows exclude
// the previous report instant, which the previous report already counted.
func sinceReport(at, last time.Time, reported bool) bool {
	if !reported {
		return !at.Before(last)
	}
	return at.After(last)
}

// Period is a time-of-day bucket of an appointment.
type Period string

const (
	Morning   Period = "morning"   // 06:00 to 11:59
	Afternoon Period = "afternoon" // 12:00 to 16:59
	Evening   Period = "evening"   // 17:00 to 21:59
	Night     Period = "night"
)

// Periods lists the buckets in display order.
var Periods = []Period{Morning, Afternoon, Evening, Night}

// PeriodOf buckets an hour of the day.
func PeriodOf(hour int) Period {
	switch {
	case hour >= 6 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Afternoon
	case hour >= 17 && hour < 22:
		return Evening
	default:
		return Night
	}
}

// Stats are distributions over the whole session.
type Stats struct {
	TotalAccepted    int
	TotalRejected    int
	TotalJobs        int
	CheckCycles      int64
	SessionDuration  time.Duration
	Languages        map[string]int // accepted jobs
	TimePeriods      map[Period]int // accepted jobs with a readable time
	RejectionReasons map[string]int
	AcceptedPerHour  float64
	ProcessedPerHour float64
	AcceptanceRate   float64
}

// Stats aggregates the accepted and rejected history.
func (t *Tracker) Stats() Stats {
	dur := t.now().Sub(t.sessionStart)
	st := Stats{
		TotalAccepted:    t.totalAccepted,
		TotalRejected:    t.totalRejected,
		TotalJobs:        t.totalAccepted + t.totalRejected,
		CheckCycles:      t.checkCycles,
		SessionDuration:  dur,
		Languages:        map[string]int{},
		TimePeriods:      map[Period]int{},
		RejectionReasons: map[string]int{},
		AcceptanceRate:   t.AcceptanceRate(),
	}
	for _, a := range t.accepted {
		st.Languages[languageOrUnknown(a.Language)]++
		if h, ok := a.AppointmentHour(); ok {
			st.TimePeriods[PeriodOf(h)]++
		}
	}
	for _, r := range t.rejected {
		st.RejectionReasons[r.Reason]++
	}
	if hours := dur.Hours(); hours > 0 {
		st.AcceptedPerHour = float64(st.TotalAccepted) / hours
		st.ProcessedPerHour = float64(st.TotalJobs) / hours
	}
	return st
}

// Count is one entry of a ranked distribution.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Ranked orders a distribution by descending count, then by key.
func Ranked(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// GroupByLanguage groups accepted jobs by language, largest group first.
func GroupByLanguage(jobs []model.AcceptedJob) ([]Count, map[string][]model.AcceptedJob) {
	groups := map[string][]model.AcceptedJob{}
	counts := map[string]int{}
	for _, j := range jobs {
		lang := languageOrUnknown(j.Language)
		groups[lang] = append(groups[lang], j)
		counts[lang]++
	}
	return Ranked(counts), groups
}

func languageOrUnknown(lang string) string {
	if lang == "" {
		return "Unknown"
	}
	return lang
}

// Snapshot is a copy of the tracker state that may be read from any goroutine.
type Snapshot struct {
	SessionStart   time.Time           `json:"session_start"`
	LastActivity   time.Time           `json:"last_activity"`
	Login          LoginStatus         `json:"login"`
	CheckCycles    int64               `json:"check_cycles"`
	TotalAccepted  int                 `json:"total_accepted"`
	TotalRejected  int                 `json:"total_rejected"`
	AcceptanceRate float64             `json:"acceptance_rate"`
	RecentAccepted []model.AcceptedJob `json:"recent_accepted"`
	RecentRejected []model.RejectedJob `json:"recent_rejected"`
}

// Snapshot copies the counters and the most recent jobs (at most recent of
// each kind).
func (t *Tracker) Snapshot(recent int) Snapshot {
	return Snapshot{
		SessionStart:   t.sessionStart,
		LastActivity:   t.lastActivity,
		Login:          t.login,
		CheckCycles:    t.checkCycles,
		TotalAccepted:  t.totalAccepted,
		TotalRejected:  t.totalRejected,
		AcceptanceRate: t.AcceptanceRate(),
		RecentAccepted: tail(t.accepted, recent),
		RecentRejected: tail(t.rejected, recent),
	}
}

func tail[T any](s []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return append([]T(nil), s...)
}
