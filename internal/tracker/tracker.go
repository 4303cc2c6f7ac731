package tracker

import (
	"time"

	"github.com/mofyally02/atozbot/internal/model"
)

// Sink receives outcomes after the tracker has recorded them. Calls are made
// synchronously from the goroutine that owns the tracker.
type Sink interface {
	OnAccepted(job model.AcceptedJob)
	OnRejected(job model.RejectedJob)
	OnLoginStatus(status LoginStatus)
}

// MultiSink fans out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) OnAccepted(job model.AcceptedJob) {
	for _, s := range m {
		s.OnAccepted(job)
	}
}

func (m MultiSink) OnRejected(job model.RejectedJob) {
	for _, s := range m {
		s.OnRejected(job)
	}
}

func (m MultiSink) OnLoginStatus(status LoginStatus) {
	for _, s := range m {
		s.OnLoginStatus(status)
	}
}

// LoginStatus is the most recent login attempt.
type LoginStatus struct {
	Message string    `json:"message"`
	Success bool      `json:"success"`
	At      time.Time `json:"at"`
}

// Tracker accumulates accepted and rejected jobs for one bot run and decides
// when the two periodic reports are due.
//
// A Tracker is not safe for concurrent use. It is owned by the run loop;
// other goroutines read copies obtained through Snapshot.
type Tracker struct {
	reportInterval   time.Duration
	rejectedInterval time.Duration

	accepted      []model.AcceptedJob
	rejected      []model.RejectedJob
	totalAccepted int
	totalRejected int
	checkCycles   int64
	login         LoginStatus
	loginTime     time.Time

	sessionStart       time.Time
	lastActivity       time.Time
	lastReport         time.Time
	lastRejectedReport time.Time
	reported           bool
	rejectedReported   bool

	sink Sink
	now  func() time.Time
}

// New returns a Tracker whose session starts now. sink may be nil.
func New(reportInterval, rejectedInterval time.Duration, sink Sink) *Tracker {
	return newWithClock(reportInterval, rejectedInterval, sink, time.Now)
}

func newWithClock(reportInterval, rejectedInterval time.Duration, sink Sink, now func() time.Time) *Tracker {
	start := now()
	return &Tracker{
		reportInterval:     reportInterval,
		rejectedInterval:   rejectedInterval,
		login:              LoginStatus{Message: "Not attempted"},
		sessionStart:       start,
		lastReport:         start,
		lastRejectedReport: start,
		sink:               sink,
		now:                now,
	}
}

// AddAccepted records an accepted job.
func (t *Tracker) AddAccepted(job model.JobRecord) model.AcceptedJob {
	a := model.AcceptedJob{JobRecord: job, AcceptedAt: t.now()}
	t.accepted = append(t.accepted, a)
	t.totalAccepted++
	t.lastActivity = a.AcceptedAt
	if t.sink != nil {
		t.sink.OnAccepted(a)
	}
	return a
}

// AddRejected records a rejected job and the reason for it.
func (t *Tracker) AddRejected(job model.JobRecord, reason string) model.RejectedJob {
	if reason == "" {
		reason = "Unknown"
	}
	r := model.RejectedJob{JobRecord: job, RejectedAt: t.now(), Reason: reason}
	t.rejected = append(t.rejected, r)
	t.totalRejected++
	t.lastActivity = r.RejectedAt
	if t.sink != nil {
		t.sink.OnRejected(r)
	}
	return r
}

// IncrementCheckCycle counts one wake of the run loop.
func (t *Tracker) IncrementCheckCycle() {
	t.checkCycles++
	t.lastActivity = t.now()
}

// SetLoginStatus records the outcome of a login attempt.
func (t *Tracker) SetLoginStatus(message string, success bool) {
	now := t.now()
	t.login = LoginStatus{Message: message, Success: success, At: now}
	if success {
		t.loginTime = now
	}
	t.lastActivity = now
	if t.sink != nil {
		t.sink.OnLoginStatus(t.login)
	}
}

// UpdateActivity marks the tracker as active now.
func (t *Tracker) UpdateActivity() {
	t.lastActivity = t.now()
}

// ShouldReport reports whether the results report interval has elapsed since
// the last results report. It does not advance the report time.
func (t *Tracker) ShouldReport() bool {
	return t.now().Sub(t.lastReport) >= t.reportInterval
}

// ShouldReportRejected is ShouldReport for the rejected jobs report.
func (t *Tracker) ShouldReportRejected() bool {
	return t.now().Sub(t.lastRejectedReport) >= t.rejectedInterval
}

// ReportResults returns the results summary and advances the report time
// when a report is due. It returns false and changes nothing otherwise.
func (t *Tracker) ReportResults() (Summary, bool) {
	if !t.ShouldReport() {
		return Summary{}, false
	}
	s := t.Summary()
	t.lastReport = s.ReportTime
	t.reported = true
	return s, true
}

// ReportRejected is ReportResults for the rejected jobs report.
func (t *Tracker) ReportRejected() (RejectedSummary, bool) {
	if !t.ShouldReportRejected() {
		return RejectedSummary{}, false
	}
	s := t.RejectedSummary()
	t.lastRejectedReport = s.ReportTime
	t.rejectedReported = true
	return s, true
}

// TotalAccepted returns the number of accepted jobs.
func (t *Tracker) TotalAccepted() int { return t.totalAccepted }

// TotalRejected returns the number of rejected jobs.
func (t *Tracker) TotalRejected() int { return t.totalRejected }

// CheckCycles returns the number of run loop wakes.
func (t *Tracker) CheckCycles() int64 { return t.checkCycles }

// Login returns the last login status.
func (t *Tracker) Login() LoginStatus { return t.login }

// SessionStart returns when the tracker was created.
func (t *Tracker) SessionStart() time.Time { return t.sessionStart }

// Accepted returns a copy of all accepted jobs in order.
func (t *Tracker) Accepted() []model.AcceptedJob {
	return append([]model.AcceptedJob(nil), t.accepted...)
}

// Rejected returns a copy of all rejected jobs in order.
func (t *Tracker) Rejected() []model.RejectedJob {
	return append([]model.RejectedJob(nil), t.rejected...)
}

// AcceptanceRate is the percentage of processed jobs that were accepted.
func (t *Tracker) AcceptanceRate() float64 {
	total := t.totalAccepted + t.totalRejected
	if total == 0 {
		return 0
	}
	return float64(t.totalAccepted) / float64(total) * 100
}
