package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/guiyumin/streamscribe/internal/core/extractor"
	"github.com/guiyumin/streamscribe/internal/core/i18n"
	"github.com/guiyumin/streamscribe/internal/core/pipeline"
)

const (
	historyLines = 6
	eventBuffer  = 64
)

var (
	progressInfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	progressDoneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	progressErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	progressHintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
)

type eventMsg pipeline.Event

type finishedMsg struct{}

type progressModel struct {
	spinner   spinner.Model
	t         *i18n.Translations
	events    <-chan pipeline.Event
	cancel    context.CancelFunc
	history   []string
	current   string
	width     int
	cancelled bool
	finished  bool
}

func newProgressModel(events <-chan pipeline.Event, cancel context.CancelFunc, t *i18n.Translations) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return progressModel{spinner: s, t: t, events: events, cancel: cancel, width: 80}
}

// waitForEvent reads the next progress line; a closed channel means the
// pipeline has returned.
func waitForEvent(ch <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return finishedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// keep draining until the pipeline notices
			m.cancelled = true
			m.cancel()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		if m.current != "" {
			m.history = append(m.history, m.current)
			if len(m.history) > historyLines {
				m.history = m.history[len(m.history)-historyLines:]
			}
		}
		m.current = msg.Message
		return m, waitForEvent(m.events)

	case finishedMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	width := max(m.width-6, 20)
	var b strings.Builder
	b.WriteString("\n")
	for _, line := range m.history {
		fmt.Fprintf(&b, "  %s %s\n", progressDoneStyle.Render("✓"), progressHintStyle.Render(truncate(line, width)))
	}
	if m.finished {
		return b.String()
	}
	current := m.current
	if current == "" {
		current = "..."
	}
	fmt.Fprintf(&b, "  %s %s\n", m.spinner.View(), progressInfoStyle.Render(truncate(current, width)))
	if m.cancelled {
		fmt.Fprintf(&b, "\n  %s %s\n", progressErrStyle.Render("✗"), m.t.Progress.Cancelled)
	}
	return b.String()
}

// truncate shortens s to width terminal cells.
func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

// runWithProgress runs the batch on a worker goroutine and renders its
// progress lines with a spinner until it returns.
func runWithProgress(ctx context.Context, p *pipeline.Pipeline, reqs []extractor.Request, t *i18n.Translations) (*pipeline.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan pipeline.Event, eventBuffer)
	type outcome struct {
		sum *pipeline.Summary
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		sum, err := p.AcquireBatch(ctx, reqs, pipeline.ChannelSink(events))
		close(events)
		done <- outcome{sum, err}
	}()

	if _, err := tea.NewProgram(newProgressModel(events, cancel, t)).Run(); err != nil {
		cancel()
		// drain so the worker can finish
		for range events {
		}
		res := <-done
		if res.err != nil {
			return res.sum, res.err
		}
		return res.sum, err
	}
	res := <-done
	return res.sum, res.err
}
