package drill

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgnsrekt/echodrill/internal/audio"
	"github.com/dgnsrekt/echodrill/internal/lesson"
)

// ErrLessonUnavailable is returned when no playable lesson could be obtained.
var ErrLessonUnavailable = errors.New("no playable lesson available")

// Code identifies the kind of failure that ended a session.
type Code string

const (
	CodePreloadTimeout    Code = "PRELOAD_TIMEOUT"
	CodePlayback          Code = "PLAYBACK"
	CodeLessonUnavailable Code = "LESSON_UNAVAILABLE"
)

// Error is reported through OnError when a session ends on a failure.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// classify turns a terminal failure into an *Error.
func classify(message string, err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	switch {
	case errors.Is(err, ErrLessonUnavailable),
		errors.Is(err, lesson.ErrNotFound),
		errors.Is(err, lesson.ErrUnauthorized),
		errors.Is(err, lesson.ErrMissingClip):
		return newError(CodeLessonUnavailable, message, err)
	case errors.Is(err, audio.ErrPreloadTimeout):
		return newError(CodePreloadTimeout, message, err)
	default:
		return newError(CodePlayback, message, err)
	}
}

// IsCancelled reports whether err means the work was stopped rather than
// failed. Cancellation is never reported as an error.
func IsCancelled(err error) bool {
	return errors.Is(err, audio.ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, audio.ErrReleased)
}
