package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mofyally02/atozbot/internal/store"
)

var errCancelled = errors.New("cancelled")

type fetchDoneMsg struct {
	rows []store.JobRow
	err  error
}

type loaderModel struct {
	label   string
	fetchFn func(ctx context.Context) ([]store.JobRow, error)
	spinner spinner.Model
	result  []store.JobRow
	err     error
	done    bool
}

func newLoader(label string, fetchFn func(ctx context.Context) ([]store.JobRow, error)) loaderModel {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	return loaderModel{label: label, fetchFn: fetchFn, spinner: s}
}

func (m loaderModel) Init() tea.Cmd {
	return tea.Batch(m.doFetch(), m.spinner.Tick)
}

func (m loaderModel) doFetch() tea.Cmd {
	fetchFn := m.fetchFn
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		rows, err := fetchFn(ctx)
		return fetchDoneMsg{rows: rows, err: err}
	}
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case fetchDoneMsg:
		m.result, m.err, m.done = msg.rows, msg.err, true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done, m.err = true, errCancelled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m loaderModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s Loading jobs for %s...\n", m.spinner.View(), m.label)
}

// RunLoader shows a spinner while fetching job rows. It renders inline.
func RunLoader(label string, fetchFn func(ctx context.Context) ([]store.JobRow, error)) ([]store.JobRow, error) {
	result, err := tea.NewProgram(newLoader(label, fetchFn)).Run()
	if err != nil {
		return nil, err
	}
	final := result.(loaderModel)
	return final.result, final.err
}
