package tracker

import (
	"testing"
	"time"

	"github.com/mofyally02/atozbot/internal/model"
)

// fakeClock is advanced manually by tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time            { return c.t }
func (c *fakeClock) advance(d time.Duration)   { c.t = c.t.Add(d) }
func newClock() *fakeClock                     { return &fakeClock{t: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)} }

type recordingSink struct {
	accepted []model.AcceptedJob
	rejected []model.RejectedJob
	logins   []LoginStatus
}

func (s *recordingSink) OnAccepted(j model.AcceptedJob)  { s.accepted = append(s.accepted, j) }
func (s *recordingSink) OnRejected(j model.RejectedJob)  { s.rejected = append(s.rejected, j) }
func (s *recordingSink) OnLoginStatus(l LoginStatus)     { s.logins = append(s.logins, l) }

func job(ref, lang, apptTime string) model.JobRecord {
	return model.JobRecord{Ref: ref, Language: lang, AppointmentTime: apptTime, Status: "Matched"}
}

func TestReportTiming(t *testing.T) {
	clock := newClock()
	tr := newWithClock(5*time.Second, 12*time.Hour, nil, clock.now)

	tr.AddAccepted(job("1/1", "Polish", "10:00"))
	clock.advance(time.Second)
	tr.AddAccepted(job("2/1", "Polish", "11:00"))
	clock.advance(time.Second)
	tr.AddAccepted(job("3/1", "Arabic", "14:00"))

	clock.advance(2 * time.Second) // t=4
	if tr.ShouldReport() {
		t.Fatal("ShouldReport at t=4 should be false")
	}
	clock.advance(2 * time.Second) // t=6
	if !tr.ShouldReport() {
		t.Fatal("ShouldReport at t=6 should be true")
	}
	if got := tr.Summary().AcceptedSinceLastReport; got != 3 {
		t.Errorf("AcceptedSinceLastReport = %d, want 3", got)
	}

	s, ok := tr.ReportResults()
	if !ok {
		t.Fatal("ReportResults should report when due")
	}
	if s.AcceptedSinceLastReport != 3 || s.TotalAccepted != 3 {
		t.Errorf("summary = %+v", s)
	}
	if tr.ShouldReport() {
		t.Error("ShouldReport immediately after a report should be false")
	}
	if _, ok := tr.ReportResults(); ok {
		t.Error("ReportResults should not report twice in a row")
	}

	clock.advance(5 * time.Second)
	s, ok = tr.ReportResults()
	if !ok {
		t.Fatal("ReportResults should report after another interval")
	}
	if s.AcceptedSinceLastReport != 0 || s.TotalAccepted != 3 {
		t.Errorf("second summary: since=%d total=%d, want 0 and 3", s.AcceptedSinceLastReport, s.TotalAccepted)
	}
	if s.HasActivity() {
		t.Error("no jobs since last report, HasActivity should be false")
	}
}

func TestShouldReportDoesNotAdvance(t *testing.T) {
	clock := newClock()
	tr := newWithClock(time.Second, time.Second, nil, clock.now)
	clock.advance(2 * time.Second)
	for i := 0; i < 3; i++ {
		if !tr.ShouldReport() || !tr.ShouldReportRejected() {
			t.Fatalf("call %d: due report should stay due until reported", i)
		}
	}
}

func TestRejectedReportIndependent(t *testing.T) {
	clock := newClock()
	tr := newWithClock(5*time.Second, 500*time.Millisecond, nil, clock.now)

	tr.AddRejected(job("9/1", "French", "18:00"), "Face-to-Face")
	clock.advance(600 * time.Millisecond)

	if tr.ShouldReport() {
		t.Error("results report should not be due")
	}
	rs, ok := tr.ReportRejected()
	if !ok {
		t.Fatal("rejected report should be due")
	}
	if rs.RejectedSinceLastReport != 1 || rs.Jobs[0].Reason != "Face-to-Face" {
		t.Errorf("rejected summary = %+v", rs)
	}
	if rs.Interval != 500*time.Millisecond {
		t.Errorf("Interval = %v", rs.Interval)
	}

	clock.advance(5 * time.Second)
	s, ok := tr.ReportResults()
	if !ok {
		t.Fatal("results report should be due")
	}
	if s.RejectedSinceLastReport != 1 {
		t.Errorf("results report keeps its own window, RejectedSinceLastReport = %d", s.RejectedSinceLastReport)
	}
}

func TestReportWindowBoundary(t *testing.T) {
	clock := newClock()
	tr := newWithClock(5*time.Second, 5*time.Second, nil, clock.now)

	tr.AddAccepted(job("1/1", "Polish", "10:00"))
	tr.AddRejected(job("2/1", "Arabic", "11:00"), "Onsite")
	clock.advance(5 * time.Second)

	// Stamped at the same instant as the report that follows.
	tr.AddAccepted(job("3/1", "Polish", "12:00"))
	tr.AddRejected(job("4/1", "Arabic", "13:00"), "Onsite")
	s, ok := tr.ReportResults()
	if !ok || s.AcceptedSinceLastReport != 2 || s.RejectedSinceLastReport != 2 {
		t.Fatalf("first report = %+v, ok %v; want both jobs of each kind", s, ok)
	}
	rs, ok := tr.ReportRejected()
	if !ok || rs.RejectedSinceLastReport != 2 {
		t.Fatalf("first rejected report = %+v, ok %v", rs, ok)
	}

	clock.advance(5 * time.Second)
	s, ok = tr.ReportResults()
	if !ok {
		t.Fatal("second report should be due")
	}
	if s.AcceptedSinceLastReport != 0 || s.RejectedSinceLastReport != 0 {
		t.Errorf("second report recounted jobs: accepted %d rejected %d", s.AcceptedSinceLastReport, s.RejectedSinceLastReport)
	}
	rs, ok = tr.ReportRejected()
	if !ok || rs.RejectedSinceLastReport != 0 {
		t.Errorf("second rejected report recounted jobs: %d", rs.RejectedSinceLastReport)
	}
}

func TestCountersMatchSequences(t *testing.T) {
	tr := New(time.Second, time.Second, nil)
	for i := 0; i < 4; i++ {
		tr.AddAccepted(job("a", "Polish", "09:00"))
		if i%2 == 0 {
			tr.AddRejected(job("r", "Polish", "09:00"), "Onsite")
		}
		if len(tr.Accepted()) != tr.TotalAccepted() || len(tr.Rejected()) != tr.TotalRejected() {
			t.Fatalf("step %d: counters out of sync", i)
		}
	}
	if tr.TotalAccepted() != 4 || tr.TotalRejected() != 2 {
		t.Errorf("totals = %d/%d, want 4/2", tr.TotalAccepted(), tr.TotalRejected())
	}
}

func TestSinkAndLoginStatus(t *testing.T) {
	sink := &recordingSink{}
	clock := newClock()
	tr := newWithClock(time.Second, time.Second, sink, clock.now)

	tr.SetLoginStatus("Logged in", true)
	tr.AddAccepted(job("1/1", "Polish", "10:00"))
	tr.AddRejected(job("2/1", "Polish", "10:00"), "")

	if len(sink.logins) != 1 || !sink.logins[0].Success {
		t.Errorf("logins = %+v", sink.logins)
	}
	if len(sink.accepted) != 1 || sink.accepted[0].Ref != "1/1" {
		t.Errorf("accepted = %+v", sink.accepted)
	}
	if len(sink.rejected) != 1 || sink.rejected[0].Reason != "Unknown" {
		t.Errorf("rejected = %+v", sink.rejected)
	}

	clock.advance(30 * time.Second)
	s := tr.Summary()
	if s.SinceLogin != 30*time.Second {
		t.Errorf("SinceLogin = %v", s.SinceLogin)
	}
	if s.Login.Message != "Logged in" {
		t.Errorf("Login = %+v", s.Login)
	}
}

func TestStats(t *testing.T) {
	clock := newClock()
	tr := newWithClock(time.Second, time.Second, nil, clock.now)

	tr.AddAccepted(job("1", "Polish", "07:30"))
	tr.AddAccepted(job("2", "Polish", "13:00"))
	tr.AddAccepted(job("3", "Arabic", "19:15 - 20:00"))
	tr.AddAccepted(job("4", "", "23:00"))
	tr.AddAccepted(job("5", "Urdu", "TBC"))
	tr.AddRejected(job("6", "Polish", "10:00"), "Face-to-Face")
	tr.AddRejected(job("7", "Polish", "10:00"), "Face-to-Face")
	tr.AddRejected(job("8", "Polish", "10:00"), "Onsite")
	clock.advance(2 * time.Hour)

	st := tr.Stats()
	if st.TotalJobs != 8 {
		t.Errorf("TotalJobs = %d", st.TotalJobs)
	}
	if st.Languages["Polish"] != 2 || st.Languages["Unknown"] != 1 {
		t.Errorf("Languages = %v", st.Languages)
	}
	wantPeriods := map[Period]int{Morning: 1, Afternoon: 1, Evening: 1, Night: 1}
	for p, n := range wantPeriods {
		if st.TimePeriods[p] != n {
			t.Errorf("TimePeriods[%s] = %d, want %d", p, st.TimePeriods[p], n)
		}
	}
	if st.RejectionReasons["Face-to-Face"] != 2 || st.RejectionReasons["Onsite"] != 1 {
		t.Errorf("RejectionReasons = %v", st.RejectionReasons)
	}
	if st.AcceptedPerHour != 2.5 {
		t.Errorf("AcceptedPerHour = %v, want 2.5", st.AcceptedPerHour)
	}
	if st.ProcessedPerHour != 4 {
		t.Errorf("ProcessedPerHour = %v, want 4", st.ProcessedPerHour)
	}
	if got := tr.AcceptanceRate(); got != 62.5 {
		t.Errorf("AcceptanceRate = %v, want 62.5", got)
	}
}

func TestPeriodOf(t *testing.T) {
	tests := []struct {
		hour int
		want Period
	}{
		{5, Night}, {6, Morning}, {11, Morning}, {12, Afternoon},
		{16, Afternoon}, {17, Evening}, {21, Evening}, {22, Night}, {0, Night},
	}
	for _, tt := range tests {
		if got := PeriodOf(tt.hour); got != tt.want {
			t.Errorf("PeriodOf(%d) = %s, want %s", tt.hour, got, tt.want)
		}
	}
}

func TestRankedAndGroup(t *testing.T) {
	ranked := Ranked(map[string]int{"b": 2, "a": 2, "c": 5})
	if ranked[0].Key != "c" || ranked[1].Key != "a" || ranked[2].Key != "b" {
		t.Errorf("Ranked = %v", ranked)
	}

	tr := New(time.Second, time.Second, nil)
	tr.AddAccepted(job("1", "Polish", "10:00"))
	tr.AddAccepted(job("2", "Arabic", "10:00"))
	tr.AddAccepted(job("3", "Polish", "10:00"))
	order, groups := GroupByLanguage(tr.Accepted())
	if order[0].Key != "Polish" || len(groups["Polish"]) != 2 {
		t.Errorf("order = %v, groups = %v", order, groups)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := New(time.Second, time.Second, nil)
	for i := 0; i < 5; i++ {
		tr.AddAccepted(job("x", "Polish", "10:00"))
	}
	snap := tr.Snapshot(2)
	if len(snap.RecentAccepted) != 2 || snap.TotalAccepted != 5 {
		t.Fatalf("snapshot = %+v", snap)
	}
	snap.RecentAccepted[0].Ref = "changed"
	if tr.Accepted()[3].Ref != "x" {
		t.Error("mutating a snapshot changed the tracker")
	}
}
