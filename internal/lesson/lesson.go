package lesson

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the source has no lesson to hand out.
	ErrNotFound = errors.New("no lesson available")

	// ErrUnauthorized is returned when the lesson service rejects our credentials.
	ErrUnauthorized = errors.New("lesson service rejected credentials")

	// ErrMissingClip is returned when a lesson lacks a clip reference.
	ErrMissingClip = errors.New("lesson is missing a clip reference")
)

// Lesson is one native/target phrase pair plus the clips that speak it.
// Lessons are values: generation returns a new Lesson instead of mutating one.
type Lesson struct {
	ID            string `json:"id" yaml:"id"`
	NativeText    string `json:"nativePhrase" yaml:"native"`
	TargetText    string `json:"targetPhrase" yaml:"target"`
	Category      string `json:"category,omitempty" yaml:"category,omitempty"`
	NativeClipRef string `json:"nativeAudioUrl,omitempty" yaml:"native_clip,omitempty"`
	TargetClipRef string `json:"targetAudioUrl,omitempty" yaml:"target_clip,omitempty"`
}

// Playable reports whether both clip references are present.
func (l Lesson) Playable() bool {
	return l.NativeClipRef != "" && l.TargetClipRef != ""
}

// Validate returns ErrMissingClip, wrapped with the side that is missing,
// when the lesson cannot be played.
func (l Lesson) Validate() error {
	switch {
	case l.NativeClipRef == "" && l.TargetClipRef == "":
		return fmt.Errorf("lesson %s: native and target: %w", l.ID, ErrMissingClip)
	case l.NativeClipRef == "":
		return fmt.Errorf("lesson %s: native: %w", l.ID, ErrMissingClip)
	case l.TargetClipRef == "":
		return fmt.Errorf("lesson %s: target: %w", l.ID, ErrMissingClip)
	}
	return nil
}

// String returns a short human readable form, used in logs.
func (l Lesson) String() string {
	return fmt.Sprintf("%s (%q / %q)", l.ID, l.NativeText, l.TargetText)
}

// Source hands out lessons, typically chosen at random from a corpus.
type Source interface {
	// FetchRandomLesson returns one lesson or ErrNotFound when the corpus is empty.
	FetchRandomLesson(ctx context.Context) (Lesson, error)
}

// Generator produces clips for lessons that arrive without them.
// Implementations are best effort: a returned lesson may still be unplayable.
type Generator interface {
	GenerateClips(ctx context.Context, l Lesson) (Lesson, error)
}

// FillerLocator is implemented by sources that also host the filler clip.
type FillerLocator interface {
	FillerClipURL(ctx context.Context) (string, error)
}

// merge keeps the clip refs already present on l and fills the empty ones
// from generated.
func merge(l Lesson, nativeRef, targetRef string) Lesson {
	if l.NativeClipRef == "" {
		l.NativeClipRef = nativeRef
	}
	if l.TargetClipRef == "" {
		l.TargetClipRef = targetRef
	}
	return l
}
