package ui

import "github.com/dgnsrekt/echodrill/internal/drill"

// Config contains TUI-specific configuration.
type Config struct {
	// MaxWidth caps the width of the lesson text. 0 uses the window width.
	MaxWidth uint `env:"ECHODRILL_MAX_WIDTH" envDefault:"80"`

	// AltScreen runs the TUI in the alternate screen buffer.
	AltScreen bool `env:"ECHODRILL_ALT_SCREEN" envDefault:"true"`

	// AutoStart begins the drill as soon as the TUI is up.
	AutoStart bool

	// Timings drive the pause progress bar.
	Timings drill.Timings
}
