// Package tui shows the live progress of a load test in the terminal.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ccload/internal/runner"
	"ccload/internal/tui/components"
	"ccload/internal/tui/styles"
)

type snapshotMsg runner.Snapshot

type doneMsg struct{}

type Model struct {
	updates <-chan runner.Snapshot
	done    <-chan struct{}

	Progress progress.Model
	Rate     components.Sparkline

	Last     runner.Snapshot
	lastReqs uint64
	lastAt   time.Time

	Width    int
	Aborted  bool
	Finished bool
}

func NewModel(updates <-chan runner.Snapshot, done <-chan struct{}) Model {
	return Model{
		updates:  updates,
		done:     done,
		Progress: progress.New(progress.WithDefaultGradient()),
		Rate:     components.NewSparkline(40, "Requests/s", styles.Title),
		lastAt:   time.Now(),
	}
}

func waitForSnapshot(ch <-chan runner.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(s)
	}
}

func waitForDone(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return doneMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.updates), waitForDone(m.done))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.Aborted = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Progress.Width = max(msg.Width-4, 10)
		m.Rate.Width = max(msg.Width-6, 10)
		return m, nil

	case snapshotMsg:
		s := runner.Snapshot(msg)
		now := time.Now()
		if s.Target != m.Last.Target || s.Requests < m.lastReqs {
			m.Rate.Reset()
			m.lastReqs = 0
		}
		if dt := now.Sub(m.lastAt).Seconds(); dt > 0 {
			m.Rate.Add(float64(s.Requests-m.lastReqs) / dt)
		}
		m.Last = s
		m.lastReqs = s.Requests
		m.lastAt = now
		return m, waitForSnapshot(m.updates)

	case doneMsg:
		m.Finished = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) percent() float64 {
	if m.Last.Total <= 0 {
		return 0
	}
	return min(float64(m.Last.Requests)/float64(m.Last.Total), 1)
}

func (m Model) View() string {
	if m.Finished {
		return ""
	}

	var b strings.Builder

	b.WriteString(styles.Title.Render("Testing " + m.Last.Target))
	b.WriteString("\n\n")

	failStyle := styles.Value
	if m.Last.Fail > 0 {
		failStyle = styles.Error
	}
	counters := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(fmt.Sprintf("DONE: %s/%d\nINF: %d",
			styles.Value.Render(fmt.Sprint(m.Last.Requests)), m.Last.Total, m.Last.Inflight)),
		styles.Box.Render(fmt.Sprintf("2XX: %s\n5XX: %s",
			styles.Value.Render(fmt.Sprint(m.Last.Success)), failStyle.Render(fmt.Sprint(m.Last.Fail)))),
		styles.Box.Render(fmt.Sprintf("P99: %s", styles.Warn.Render(m.Last.P99.Round(time.Microsecond).String()))),
	)
	b.WriteString(counters)
	b.WriteString("\n\n")
	b.WriteString(m.Rate.View())
	b.WriteString("\n\n")
	b.WriteString(m.Progress.ViewAs(m.percent()))
	b.WriteString("\n\n")
	b.WriteString(styles.RenderKey("q", "abort"))
	b.WriteString("\n")

	return b.String()
}

// Run shows live progress on out until done is closed. It reports whether the
// user aborted.
func Run(out io.Writer, updates <-chan runner.Snapshot, done <-chan struct{}) (aborted bool, err error) {
	p := tea.NewProgram(NewModel(updates, done), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return false, err
	}
	return final.(Model).Aborted, nil
}
