package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/echodrill/internal/drill"
	"github.com/dgnsrekt/echodrill/internal/lesson"
)

// eventBuffer bounds how many drill events may queue up while the TUI is
// busy. A drill cycle produces about a dozen.
const eventBuffer = 64

// PhaseMsg is sent when the drill enters a phase.
type PhaseMsg struct {
	Phase drill.Phase
	At    time.Time
}

// LessonMsg is sent when a new lesson becomes current.
type LessonMsg struct {
	Lesson lesson.Lesson
}

// ErrorMsg is sent when a session ends on a failure.
type ErrorMsg struct {
	Err error
}

// Events carries drill callbacks into the Bubble Tea loop. Hooks never wait
// on the TUI, so a Stop issued from the TUI cannot block on them.
type Events struct {
	ch chan tea.Msg
}

// NewEvents creates an event queue.
func NewEvents() *Events {
	return &Events{ch: make(chan tea.Msg, eventBuffer)}
}

// Hooks returns drill hooks feeding e.
func (e *Events) Hooks() drill.Hooks {
	return drill.Hooks{
		OnPhaseChange: func(p drill.Phase) { e.push(PhaseMsg{Phase: p, At: time.Now()}) },
		OnLesson:      func(l lesson.Lesson) { e.push(LessonMsg{Lesson: l}) },
		OnError:       func(err error) { e.push(ErrorMsg{Err: err}) },
	}
}

// push drops the oldest queued event when the queue is full.
func (e *Events) push(msg tea.Msg) {
	for {
		select {
		case e.ch <- msg:
			return
		default:
		}
		select {
		case <-e.ch:
		default:
		}
	}
}

// wait returns a command that delivers the next event.
func (e *Events) wait() tea.Cmd {
	return func() tea.Msg {
		return <-e.ch
	}
}
