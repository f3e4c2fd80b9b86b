package audio

import "errors"

var (
	// ErrPreloadTimeout is returned when a clip did not buffer enough to start
	// playing within the preload timeout.
	ErrPreloadTimeout = errors.New("clip did not become playable in time")

	// ErrPlayback is returned when a ready clip fails to decode or play.
	ErrPlayback = errors.New("playback failed")

	// ErrCancelled is returned by PlayToEnd when the play was cancelled.
	ErrCancelled = errors.New("playback cancelled")

	// ErrNotReady is returned when an asset is handed out before it is ready.
	ErrNotReady = errors.New("asset is not ready")

	// ErrBusy is returned when a Controller or Asset is already in use.
	ErrBusy = errors.New("already playing")

	// ErrReleased is returned when using an asset or preloader after release.
	ErrReleased = errors.New("asset released")

	// ErrUndecodable is returned when a fetched clip is not a supported format.
	ErrUndecodable = errors.New("clip is not decodable audio")

	// ErrNoDevice is returned when no sound output can be opened.
	ErrNoDevice = errors.New("no audio output available")
)
