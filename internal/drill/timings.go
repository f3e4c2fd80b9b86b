package drill

import (
	"fmt"
	"time"
)

// Timings are the durations of the pause phases.
//
// Earlier versions of the drill used 10s for both repeat pauses; the
// canonical table gives the first repetition 5s and the second 10s.
type Timings struct {
	PauseShort          time.Duration `yaml:"pause_short" mapstructure:"pause_short"`
	PauseForRepeatShort time.Duration `yaml:"pause_repeat_short" mapstructure:"pause_repeat_short"`
	PauseForRepeatLong  time.Duration `yaml:"pause_repeat_long" mapstructure:"pause_repeat_long"`
	PauseBeforeFiller   time.Duration `yaml:"pause_before_filler" mapstructure:"pause_before_filler"`
	PauseAfterFiller    time.Duration `yaml:"pause_after_filler" mapstructure:"pause_after_filler"`
}

// DefaultTimings returns the canonical timing table.
func DefaultTimings() Timings {
	return Timings{
		PauseShort:          2 * time.Second,
		PauseForRepeatShort: 5 * time.Second,
		PauseForRepeatLong:  10 * time.Second,
		PauseBeforeFiller:   5 * time.Second,
		PauseAfterFiller:    2 * time.Second,
	}
}

// For returns the duration of a pause phase, or 0 for other phases.
func (t Timings) For(p Phase) time.Duration {
	switch p {
	case PauseShort:
		return t.PauseShort
	case PauseForRepeatShort:
		return t.PauseForRepeatShort
	case PauseForRepeatLong:
		return t.PauseForRepeatLong
	case PauseBeforeFiller:
		return t.PauseBeforeFiller
	case PauseAfterFiller:
		return t.PauseAfterFiller
	default:
		return 0
	}
}

// Validate rejects negative durations.
func (t Timings) Validate() error {
	for _, p := range []Phase{PauseShort, PauseForRepeatShort, PauseForRepeatLong, PauseBeforeFiller, PauseAfterFiller} {
		if d := t.For(p); d < 0 {
			return fmt.Errorf("%s duration cannot be negative: %v", p, d)
		}
	}
	return nil
}
