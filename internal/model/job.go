package model

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Field names used by required-field rules. They match the column keys of the
// portal's job list.
const (
	FieldRef             = "ref"
	FieldSubmitted       = "submitted"
	FieldAppointmentDate = "appt_date"
	FieldAppointmentTime = "appt_time"
	FieldDuration        = "duration"
	FieldLanguage        = "language"
	FieldStatus          = "status"
	FieldDetailURL       = "detail_url"
)

// JobRecord is one row of the job list as it was displayed at extraction time.
// Records are never updated in place; every poll yields a fresh set.
type JobRecord struct {
	Ref             string `json:"ref"`        // board reference, e.g. "123456/1"
	SubmittedAt     string `json:"submitted"`  // as displayed
	AppointmentDate string `json:"appt_date"`  // as displayed
	AppointmentTime string `json:"appt_time"`  // "HH:MM" or "HH:MM - HH:MM"
	Duration        string `json:"duration"`   // free text
	Language        string `json:"language"`   // free text
	Status          string `json:"status"`     // e.g. "Matched"
	DetailURL       string `json:"detail_url"` // absolute, empty when the row had no link
}

// Field returns the value of a named field and whether the name is known.
func (j JobRecord) Field(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FieldRef:
		return j.Ref, true
	case FieldSubmitted:
		return j.SubmittedAt, true
	case FieldAppointmentDate:
		return j.AppointmentDate, true
	case FieldAppointmentTime:
		return j.AppointmentTime, true
	case FieldDuration:
		return j.Duration, true
	case FieldLanguage:
		return j.Language, true
	case FieldStatus:
		return j.Status, true
	case FieldDetailURL:
		return j.DetailURL, true
	}
	return "", false
}

// NumericRef returns the part of the reference before the first "/", which is
// the id the portal uses in form actions.
func (j JobRecord) NumericRef() string {
	ref := strings.TrimSpace(j.Ref)
	if i := strings.Index(ref, "/"); i >= 0 {
		return ref[:i]
	}
	return ref
}

// AppointmentHour parses the leading hour of AppointmentTime.
func (j JobRecord) AppointmentHour() (int, bool) {
	t := strings.TrimSpace(j.AppointmentTime)
	i := strings.Index(t, ":")
	if i <= 0 {
		return 0, false
	}
	h, err := strconv.Atoi(strings.TrimSpace(t[:i]))
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// Decision is the outcome of classifying a job.
type Decision int

const (
	Skip Decision = iota
	Accept
	Reject
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "skip"
	}
}

// Verdict is a Decision plus the reason for a rejection. Inspected reports
// whether the detail page was opened to reach it.
type Verdict struct {
	Decision  Decision
	Reason    string
	Inspected bool
}

// AcceptedJob is a job the bot accepted.
type AcceptedJob struct {
	JobRecord
	AcceptedAt time.Time `json:"accepted_at"`
}

// RejectedJob is a job the bot rejected, with the excluded type that caused it.
type RejectedJob struct {
	JobRecord
	RejectedAt time.Time `json:"rejected_at"`
	Reason     string    `json:"reason"`
}

// SeenStore remembers job refs that have already been acted on.
type SeenStore interface {
	HasSeen(ref string) (bool, error)
	MarkSeen(ref string) error
}

// DetailFetcher returns the interpreter-details text of a job's detail page.
// An empty string means the text could not be located.
type DetailFetcher interface {
	InterpreterDetails(ctx context.Context, detailURL string) (string, error)
}
