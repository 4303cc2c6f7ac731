package notifier

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	"github.com/mofyally02/atozbot/internal/tracker"
)

var _ Reporter = (*Console)(nil)

// Console renders reports as coloured tables for an operator watching the
// terminal.
type Console struct {
	w   io.Writer
	now func() time.Time
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, now: time.Now}
}

// ReportResults prints the results report.
func (c *Console) ReportResults(_ context.Context, s tracker.Summary) error {
	var b strings.Builder
	b.WriteString(pterm.DefaultSection.Sprint("AtoZ bot results " + s.ReportTime.Format("15:04:05")))
	fmt.Fprintf(&b, "Login: %s\n", loginText(s.Login))
	fmt.Fprintf(&b, "Session: %s, %s check cycles\n", s.SessionDuration.Round(time.Second), humanize.Comma(s.CheckCycles))
	fmt.Fprintf(&b, "Accepted: %s  Rejected: %s  Processed: %d\n",
		pterm.Green(s.TotalAccepted), pterm.Red(s.TotalRejected), s.TotalAccepted+s.TotalRejected)
	fmt.Fprintf(&b, "Since last report: %d accepted, %d rejected\n", s.AcceptedSinceLastReport, s.RejectedSinceLastReport)

	if s.HasActivity() {
		data := pterm.TableData{{"", "Ref", "Language", "Date", "Time", "Detail"}}
		for _, j := range s.AcceptedJobs {
			data = append(data, []string{pterm.Green("accepted"), j.Ref, j.Language, j.AppointmentDate, j.AppointmentTime, humanize.RelTime(j.AcceptedAt, c.now(), "ago", "from now")})
		}
		for _, j := range s.RejectedJobs {
			data = append(data, []string{pterm.Red("rejected"), j.Ref, j.Language, j.AppointmentDate, j.AppointmentTime, j.Reason})
		}
		if err := c.table(&b, data); err != nil {
			return err
		}
	} else {
		b.WriteString(pterm.Gray("No new job activity since last report") + "\n")
	}
	_, err := io.WriteString(c.w, b.String())
	return err
}

// ReportRejected prints the rejected jobs report.
func (c *Console) ReportRejected(_ context.Context, s tracker.RejectedSummary) error {
	var b strings.Builder
	b.WriteString(pterm.DefaultSection.Sprint("Rejected jobs " + s.ReportTime.Format("15:04:05")))
	fmt.Fprintf(&b, "Total rejected: %d, since last report: %d (every %s)\n", s.TotalRejected, s.RejectedSinceLastReport, s.Interval)
	if len(s.Jobs) == 0 {
		b.WriteString(pterm.Gray("No new jobs rejected since last report") + "\n")
	} else {
		data := pterm.TableData{{"Ref", "Language", "Date", "Time", "Reason", "Rejected"}}
		for _, j := range s.Jobs {
			data = append(data, []string{j.Ref, j.Language, j.AppointmentDate, j.AppointmentTime, j.Reason, j.RejectedAt.Format("15:04:05")})
		}
		if err := c.table(&b, data); err != nil {
			return err
		}
	}
	_, err := io.WriteString(c.w, b.String())
	return err
}

// PrintDetailedStats prints the session statistics shown when a bot stops.
func (c *Console) PrintDetailedStats(login tracker.LoginStatus, st tracker.Stats) error {
	var b strings.Builder
	b.WriteString(pterm.DefaultHeader.Sprint("Detailed statistics") + "\n")
	fmt.Fprintf(&b, "Login: %s\n", loginText(login))
	data := pterm.TableData{
		{"Metric", "Value"},
		{"Jobs processed", humanize.Comma(int64(st.TotalJobs))},
		{"Accepted", pterm.Green(st.TotalAccepted)},
		{"Rejected", pterm.Red(st.TotalRejected)},
		{"Acceptance rate", fmt.Sprintf("%.1f%%", st.AcceptanceRate)},
		{"Session", st.SessionDuration.Round(time.Second).String()},
		{"Check cycles", humanize.Comma(st.CheckCycles)},
		{"Accepted per hour", fmt.Sprintf("%.2f", st.AcceptedPerHour)},
		{"Processed per hour", fmt.Sprintf("%.2f", st.ProcessedPerHour)},
	}
	if err := c.table(&b, data); err != nil {
		return err
	}

	if len(st.Languages) > 0 {
		b.WriteString(pterm.DefaultSection.Sprint("Languages (accepted)"))
		if err := c.table(&b, countTable("Language", tracker.Ranked(st.Languages))); err != nil {
			return err
		}
	}
	if len(st.TimePeriods) > 0 {
		b.WriteString(pterm.DefaultSection.Sprint("Time of day (accepted)"))
		data := pterm.TableData{{"Period", "Jobs"}}
		for _, p := range tracker.Periods {
			if n := st.TimePeriods[p]; n > 0 {
				data = append(data, []string{capitalize(string(p)), fmt.Sprint(n)})
			}
		}
		if err := c.table(&b, data); err != nil {
			return err
		}
	}
	if len(st.RejectionReasons) > 0 {
		b.WriteString(pterm.DefaultSection.Sprint("Rejection reasons"))
		if err := c.table(&b, countTable("Reason", tracker.Ranked(st.RejectionReasons))); err != nil {
			return err
		}
	}
	_, err := io.WriteString(c.w, b.String())
	return err
}

// PrintAcceptedReport prints every accepted job grouped by language.
func (c *Console) PrintAcceptedReport(tr *tracker.Tracker) error {
	var b strings.Builder
	b.WriteString(pterm.DefaultHeader.Sprint("Accepted job report") + "\n")
	jobs := tr.Accepted()
	if len(jobs) == 0 {
		b.WriteString(pterm.Yellow("No jobs have been accepted yet.") + "\n")
		_, err := io.WriteString(c.w, b.String())
		return err
	}

	order, groups := tracker.GroupByLanguage(jobs)
	for _, lang := range order {
		b.WriteString(pterm.DefaultSection.Sprint(fmt.Sprintf("%s (%d)", lang.Key, lang.Count)))
		data := pterm.TableData{{"Ref", "Date", "Time", "Duration", "Accepted"}}
		for _, j := range groups[lang.Key] {
			data = append(data, []string{j.Ref, j.AppointmentDate, j.AppointmentTime, j.Duration, j.AcceptedAt.Format("02 Jan 15:04:05")})
		}
		if err := c.table(&b, data); err != nil {
			return err
		}
	}
	fmt.Fprintf(&b, "Total accepted: %d across %d languages\n", len(jobs), len(order))
	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *Console) table(b *strings.Builder, data pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	b.WriteString(out)
	b.WriteString("\n")
	return nil
}

func countTable(label string, counts []tracker.Count) pterm.TableData {
	data := pterm.TableData{{label, "Jobs"}}
	for _, c := range counts {
		data = append(data, []string{c.Key, fmt.Sprint(c.Count)})
	}
	return data
}

func loginText(l tracker.LoginStatus) string {
	if l.Success {
		return pterm.Green("✓ ") + l.Message
	}
	return pterm.Red("✗ ") + l.Message
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
