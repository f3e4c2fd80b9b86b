package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/echodrill/internal/drill"
	"github.com/dgnsrekt/echodrill/internal/lesson"
)

// StatusDisplay tracks what the drill is doing for the status bar and the
// main view.
type StatusDisplay struct {
	timings drill.Timings

	phase   drill.Phase
	since   time.Time
	lesson  lesson.Lesson
	lessons int
	err     string
}

// NewStatusDisplay creates an idle status display.
func NewStatusDisplay(t drill.Timings) *StatusDisplay {
	return &StatusDisplay{timings: t, phase: drill.Idle}
}

// UpdateFromMessage applies a drill event.
func (s *StatusDisplay) UpdateFromMessage(msg any) {
	switch m := msg.(type) {
	case PhaseMsg:
		if m.Phase == drill.LoadingLesson {
			s.err = ""
		}
		s.phase, s.since = m.Phase, m.At

	case LessonMsg:
		s.lesson = m.Lesson
		s.lessons++

	case ErrorMsg:
		s.err = m.Err.Error()
	}
}

// Phase returns the current phase.
func (s *StatusDisplay) Phase() drill.Phase {
	return s.phase
}

// Lesson returns the current lesson, if any.
func (s *StatusDisplay) Lesson() (lesson.Lesson, bool) {
	return s.lesson, s.lesson.ID != ""
}

// IsActive reports whether a drill is running.
func (s *StatusDisplay) IsActive() bool {
	return s.phase != drill.Idle
}

// Err returns the message of the failure that ended the last session.
func (s *StatusDisplay) Err() string {
	return s.err
}

// Progress returns how far the current pause has run, from 0 to 1. Phases
// that play audio have no known length and report 0.
func (s *StatusDisplay) Progress(now time.Time) float64 {
	d := s.timings.For(s.phase)
	if d <= 0 || s.since.IsZero() {
		return 0
	}
	p := float64(now.Sub(s.since)) / float64(d)
	return min(max(p, 0), 1)
}

// CompactStatus returns a short status for the status bar.
func (s *StatusDisplay) CompactStatus() string {
	var icon string
	switch {
	case s.phase == drill.Idle && s.err != "":
		icon = "✗"
	case s.phase == drill.Idle:
		icon = "■"
	case s.phase == drill.LoadingLesson:
		icon = "⟳"
	case s.phase.IsPause():
		icon = "⏸"
	default:
		icon = "▶"
	}

	status := fmt.Sprintf("%s %s", icon, s.phase.Caption())
	if s.lessons > 0 {
		status += fmt.Sprintf(" · lesson %d", s.lessons)
	}
	return status
}

// renderProgressBar draws the pause progress in width cells.
func (s *StatusDisplay) renderProgressBar(width int, now time.Time) string {
	if width <= 0 {
		return ""
	}
	filled := int(s.Progress(now) * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(mintGreen).Render(bar)
}
