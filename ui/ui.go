// Package ui provides the terminal interface of the drill.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/echodrill/internal/drill"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

const (
	statusMessageTimeout = time.Second * 3
	progressInterval     = 100 * time.Millisecond
	ellipsis             = "…"
)

// Engine is the part of drill.Engine the TUI drives.
type Engine interface {
	Start(ctx context.Context)
	Stop()
	Active() bool
}

type keyMap struct {
	Toggle key.Binding
	Copy   key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "start/stop")),
	Copy:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy phrase")),
	Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

type (
	statusMessageTimeoutMsg struct{}
	progressTickMsg         time.Time
	stoppedMsg              struct{}
	quitMsg                 struct{}
)

type model struct {
	cfg     Config
	ctx     context.Context
	engine  Engine
	events  *Events
	status  *StatusDisplay
	spinner spinner.Model

	width, height int
	now           time.Time

	statusMessage string
	statusTimer   *time.Timer

	// copy writes to the system clipboard; replaced in tests.
	copy func(string) error
}

// NewProgram returns a new Tea program driving engine. ctx bounds the
// sessions the TUI starts.
func NewProgram(ctx context.Context, cfg Config, engine Engine, events *Events) *tea.Program {
	log.Debug("Starting echodrill TUI", "alt_screen", cfg.AltScreen, "auto_start", cfg.AutoStart)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	return tea.NewProgram(newModel(ctx, cfg, engine, events), opts...)
}

func newModel(ctx context.Context, cfg Config, engine Engine, events *Events) model {
	if cfg.Timings == (drill.Timings{}) {
		cfg.Timings = drill.DefaultTimings()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = captionStyle

	return model{
		cfg:     cfg,
		ctx:     ctx,
		engine:  engine,
		events:  events,
		status:  NewStatusDisplay(cfg.Timings),
		spinner: sp,
		now:     time.Now(),
		copy:    clipboard.WriteAll,
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.events.wait(), m.spinner.Tick, progressTick()}
	if m.cfg.AutoStart {
		cmds = append(cmds, m.startCmd())
	}
	return tea.Batch(cmds...)
}

func progressTick() tea.Cmd {
	return tea.Tick(progressInterval, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

// startCmd and stopCmd run off the Update loop; Stop waits for in-flight
// hooks, which in turn wait for nothing but the event queue.
func (m model) startCmd() tea.Cmd {
	return func() tea.Msg {
		m.engine.Start(m.ctx)
		return nil
	}
}

func (m model) stopCmd(then tea.Msg) tea.Cmd {
	return func() tea.Msg {
		m.engine.Stop()
		return then
	}
}

func (m *model) showStatusMessage(msg string) tea.Cmd {
	m.statusMessage = msg
	if m.statusTimer != nil {
		m.statusTimer.Stop()
	}
	m.statusTimer = time.NewTimer(statusMessageTimeout)
	t := m.statusTimer
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, m.stopCmd(quitMsg{})

		case key.Matches(msg, keys.Toggle):
			if m.engine.Active() {
				return m, m.stopCmd(stoppedMsg{})
			}
			return m, m.startCmd()

		case key.Matches(msg, keys.Copy):
			l, ok := m.status.Lesson()
			if !ok {
				return m, nil
			}
			if err := m.copy(l.NativeText + "\n" + l.TargetText); err != nil {
				log.Debug("Clipboard unavailable", "err", err)
				cmd := m.showStatusMessage("Clipboard unavailable")
				return m, cmd
			}
			cmd := m.showStatusMessage("Copied phrase")
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case PhaseMsg, LessonMsg, ErrorMsg:
		m.status.UpdateFromMessage(msg)
		if e, ok := msg.(ErrorMsg); ok {
			log.Error("Drill stopped", "err", e.Err)
		}
		return m, m.events.wait()

	case progressTickMsg:
		m.now = time.Time(msg)
		return m, progressTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMessageTimeoutMsg:
		m.statusMessage = ""

	case stoppedMsg:
		cmd := m.showStatusMessage("Stopped")
		return m, cmd

	case quitMsg:
		return m, tea.Quit
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	width := m.width
	if width == 0 {
		width = 80
	}
	textWidth := width - 4
	if m.cfg.MaxWidth > 0 && textWidth > int(m.cfg.MaxWidth) { //nolint:gosec
		textWidth = int(m.cfg.MaxWidth) //nolint:gosec
	}

	fmt.Fprintf(&b, "\n  %s\n\n", m.captionView())

	if l, ok := m.status.Lesson(); ok {
		fmt.Fprintf(&b, "%s\n", indent(nativeStyle.Render(wordwrap.String(l.NativeText, textWidth))))
		fmt.Fprintf(&b, "%s\n", indent(targetStyle.Render(wordwrap.String(l.TargetText, textWidth))))
		if l.Category != "" {
			fmt.Fprintf(&b, "%s\n", indent(categoryStyle.Render(l.Category)))
		}
		b.WriteString("\n")
	}

	if m.status.Phase().IsPause() {
		fmt.Fprintf(&b, "  %s\n\n", m.status.renderProgressBar(min(textWidth, 40), m.now))
	}

	if err := m.status.Err(); err != "" {
		fmt.Fprintf(&b, "%s\n\n", indent(errorStyle.Render(wordwrap.String(err, textWidth))))
	}

	// Keep the status bar on the last line.
	if used := strings.Count(b.String(), "\n") + 1; m.height > used {
		b.WriteString(strings.Repeat("\n", m.height-used))
	}
	m.statusBarView(&b, width)
	return b.String()
}

func (m model) captionView() string {
	p := m.status.Phase()
	switch {
	case p == drill.Idle && m.status.Err() != "":
		return errorStyle.Render("Stopped") + helpStyle.Render("  press space to try again")
	case p == drill.Idle:
		return captionStyle.Render("Ready") + helpStyle.Render("  press space to start")
	case p == drill.LoadingLesson:
		return m.spinner.View() + " " + captionStyle.Render(p.Caption())
	default:
		return captionStyle.Render(p.Caption())
	}
}

func (m model) statusBarView(b *strings.Builder, width int) {
	logo := logoView()
	phase := statusBarPhaseStyle(" " + m.status.CompactStatus() + " ")
	help := statusBarHelpStyle(" space start/stop · c copy · q quit ")

	note := m.statusMessage
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(phase)-
			ansi.PrintableRuneWidth(help),
	)), ellipsis)
	note = statusBarNoteStyle(note)

	padding := max(0,
		width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(phase)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(help),
	)
	emptySpace := statusBarNoteStyle(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s", logo, phase, note, emptySpace, help)
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
