package drill

// Phase is one step of the drill cycle.
type Phase int

const (
	Idle Phase = iota
	LoadingLesson
	PlayingNative
	PauseShort
	PlayingTargetFirst
	PauseForRepeatShort
	PlayingTargetSecond
	PauseForRepeatLong
	PauseBeforeFiller
	PlayingFiller
	PauseAfterFiller
)

var phaseNames = [...]string{
	Idle:                "Idle",
	LoadingLesson:       "LoadingLesson",
	PlayingNative:       "PlayingNative",
	PauseShort:          "PauseShort",
	PlayingTargetFirst:  "PlayingTargetFirst",
	PauseForRepeatShort: "PauseForRepeatShort",
	PlayingTargetSecond: "PlayingTargetSecond",
	PauseForRepeatLong:  "PauseForRepeatLong",
	PauseBeforeFiller:   "PauseBeforeFiller",
	PlayingFiller:       "PlayingFiller",
	PauseAfterFiller:    "PauseAfterFiller",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "Unknown"
	}
	return phaseNames[p]
}

// Next returns the phase that follows p. The cycle loops from
// PauseAfterFiller back to PlayingNative; Idle leads to LoadingLesson.
func (p Phase) Next() Phase {
	switch p {
	case Idle:
		return LoadingLesson
	case PauseAfterFiller:
		return PlayingNative
	default:
		if p < Idle || p > PauseAfterFiller {
			return Idle
		}
		return p + 1
	}
}

// IsPause reports whether p waits on a timer instead of playing audio.
func (p Phase) IsPause() bool {
	switch p {
	case PauseShort, PauseForRepeatShort, PauseForRepeatLong, PauseBeforeFiller, PauseAfterFiller:
		return true
	}
	return false
}

// Caption is a short instruction for the learner.
func (p Phase) Caption() string {
	switch p {
	case Idle:
		return "Stopped"
	case LoadingLesson:
		return "Loading lesson…"
	case PlayingNative:
		return "Listen"
	case PauseShort:
		return "Think"
	case PlayingTargetFirst, PlayingTargetSecond:
		return "Listen carefully"
	case PauseForRepeatShort, PauseForRepeatLong:
		return "Repeat"
	case PauseBeforeFiller, PauseAfterFiller:
		return "…"
	case PlayingFiller:
		return "Next phrase"
	default:
		return ""
	}
}
