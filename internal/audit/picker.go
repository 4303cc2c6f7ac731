package audit

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/mofyally02/atozbot/internal/store"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

const (
	pickerNone = -1
	pickerQuit = -2
)

type pickerModel struct {
	sessions []store.Session
	cursor   int
	chosen   int
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.chosen = pickerQuit
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.sessions)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.sessions) > 0 {
				m.chosen = m.cursor
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func sessionLabel(s store.Session) string {
	return fmt.Sprintf("%s  [%s]  %d accepted / %d rejected  started %s",
		s.Name, s.Status, s.TotalAccepted, s.TotalRejected, humanize.Time(s.StartTime))
}

func (m pickerModel) View() string {
	s := pickerTitleStyle.Render("Session History: select a session")
	s += "\n"

	if len(m.sessions) == 0 {
		s += pickerItemStyle.Render("(no sessions recorded yet)") + "\n"
	}
	for i, sess := range m.sessions {
		label := sessionLabel(sess)
		if i == m.cursor {
			s += pickerSelectedStyle.Render("> "+label) + "\n"
		} else {
			s += pickerItemStyle.Render(label) + "\n"
		}
	}

	s += pickerHintStyle.Render("↑/↓/j/k navigate  enter select  q quit")
	return s
}

// RunSessionPicker shows an interactive session selector. It returns the
// index of the chosen session, or -1 if the user quit.
func RunSessionPicker(sessions []store.Session) (int, error) {
	result, err := tea.NewProgram(pickerModel{sessions: sessions, chosen: pickerNone}).Run()
	if err != nil {
		return -1, err
	}
	final := result.(pickerModel)
	if final.chosen < 0 {
		return -1, nil
	}
	return final.chosen, nil
}
