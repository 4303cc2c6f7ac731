package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mofyally02/atozbot/internal/model"
	"github.com/mofyally02/atozbot/internal/store"
)

var base = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func row(ref, outcome, reason string, at time.Time) store.JobRow {
	return store.JobRow{
		JobRecord: model.JobRecord{
			Ref:             ref,
			Language:        "Polish",
			AppointmentDate: "02/05/2025",
			AppointmentTime: "10:00",
			Duration:        "30 min",
			DetailURL:       "https://portal.example.com/interpreter-jobs/" + ref,
		},
		Outcome:   outcome,
		Reason:    reason,
		ScrapedAt: at,
	}
}

func sampleRows() []store.JobRow {
	return []store.JobRow{
		row("1/1", store.OutcomeAccepted, "", base),
		row("2/1", store.OutcomeRejected, "Face-to-Face", base.Add(time.Minute)),
		row("3/1", store.OutcomeAccepted, "", base.Add(2*time.Minute)),
		row("4/1", "unknown", "", base),
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(m tea.Model, msgs ...tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, msg := range msgs {
		m, cmd = m.Update(msg)
	}
	return m, cmd
}

func TestSplitRows(t *testing.T) {
	accepted, rejected := splitRows(sampleRows())
	if len(accepted) != 2 || accepted[0].Ref != "3/1" || accepted[1].Ref != "1/1" {
		t.Errorf("accepted = %v", accepted)
	}
	if len(rejected) != 1 || rejected[0].Reason != "Face-to-Face" {
		t.Errorf("rejected = %v", rejected)
	}
}

func TestAuditModel_Navigation(t *testing.T) {
	m := newAuditModel(store.Session{Name: "Session A"}, sampleRows())
	got, _ := send(m, tea.WindowSizeMsg{Width: 120, Height: 40}, key("down"), key("down"))
	am := got.(auditModel)
	if am.leftCursor != 1 {
		t.Errorf("left cursor = %d, want 1 (clamped)", am.leftCursor)
	}
	if !strings.Contains(am.View(), "Accepted (2)") || !strings.Contains(am.View(), "Rejected (1)") {
		t.Errorf("list view missing pane headers:\n%s", am.View())
	}

	got, _ = send(am, key("tab"), key("enter"))
	am = got.(auditModel)
	if am.view != viewDetail || am.detailJob.Ref != "2/1" {
		t.Fatalf("detail = %v %q, want rejected job 2/1", am.view, am.detailJob.Ref)
	}
	detail := am.renderDetail()
	for _, want := range []string{"Face-to-Face", "rejected", "02/05/2025 10:00"} {
		if !strings.Contains(detail, want) {
			t.Errorf("detail missing %q:\n%s", want, detail)
		}
	}

	got, _ = send(am, key("esc"))
	if got.(auditModel).view != viewList {
		t.Error("esc should return to the list")
	}
}

func TestAuditModel_QuitVersusBack(t *testing.T) {
	m := newAuditModel(store.Session{}, nil)
	got, cmd := send(m, tea.WindowSizeMsg{Width: 80, Height: 24}, key("q"))
	if !got.(auditModel).wantQuit || cmd == nil {
		t.Error("q should quit")
	}
	got, cmd = send(m, tea.WindowSizeMsg{Width: 80, Height: 24}, key("esc"))
	if got.(auditModel).wantQuit || cmd == nil {
		t.Error("esc should go back without quitting")
	}

	got, _ = send(m, tea.WindowSizeMsg{Width: 80, Height: 24}, key("enter"))
	if got.(auditModel).view != viewList {
		t.Error("enter on an empty pane should stay on the list")
	}
}

func TestRenderJobs(t *testing.T) {
	_, rejected := splitRows(sampleRows())
	out := renderJobs(rejected, 0, true)
	if !strings.Contains(out, "> ") || !strings.Contains(out, "2/1") || !strings.Contains(out, "Face-to-Face") {
		t.Errorf("rendered = %q", out)
	}
	if got := renderJobs(nil, 0, true); got != "  (no jobs)" {
		t.Errorf("empty = %q", got)
	}
}

func TestPickerModel(t *testing.T) {
	sessions := []store.Session{
		{Name: "first", Status: store.StatusStopped, StartTime: base},
		{Name: "second", Status: store.StatusRunning, StartTime: base},
	}
	m := pickerModel{sessions: sessions, chosen: pickerNone}

	got, _ := send(m, key("down"), key("down"), key("enter"))
	if got.(pickerModel).chosen != 1 {
		t.Errorf("chosen = %d, want 1", got.(pickerModel).chosen)
	}
	got, _ = send(m, key("q"))
	if got.(pickerModel).chosen != pickerQuit {
		t.Errorf("chosen = %d, want quit", got.(pickerModel).chosen)
	}
	if !strings.Contains(m.View(), "second") || !strings.Contains(m.View(), "[running]") {
		t.Errorf("picker view:\n%s", m.View())
	}

	empty := pickerModel{chosen: pickerNone}
	got, _ = send(empty, key("enter"))
	if got.(pickerModel).chosen != pickerNone {
		t.Error("enter with no sessions should not choose")
	}
}

func TestLoaderModel(t *testing.T) {
	want := []store.JobRow{row("1/1", store.OutcomeAccepted, "", base)}
	m := newLoader("Session A", func(context.Context) ([]store.JobRow, error) { return want, nil })

	msg := m.doFetch()()
	got, _ := send(m, msg)
	lm := got.(loaderModel)
	if !lm.done || lm.err != nil || len(lm.result) != 1 {
		t.Errorf("loader = %+v", lm)
	}
	if lm.View() != "" {
		t.Errorf("finished loader should render nothing, got %q", lm.View())
	}

	got, _ = send(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if !errors.Is(got.(loaderModel).err, errCancelled) {
		t.Errorf("ctrl+c err = %v", got.(loaderModel).err)
	}
}
