package domain

// TimerType names the three pomodoro session kinds.
type TimerType string

const (
	TypeFocus      TimerType = "focus"
	TypeShortBreak TimerType = "short_break"
	TypeLongBreak  TimerType = "long_break"
)

func (t TimerType) Valid() bool {
	switch t {
	case TypeFocus, TypeShortBreak, TypeLongBreak:
		return true
	}
	return false
}

func (t TimerType) IsBreak() bool {
	return t == TypeShortBreak || t == TypeLongBreak
}

// Phase is the timer lifecycle.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
)

// NextType picks the session that follows a completed one. Breaks always
// lead back to focus; a completed focus leads to a long break every
// longBreakInterval-th time, counted over completedFocus (which already
// includes the session that just finished).
func NextType(completed TimerType, completedFocus, longBreakInterval int) TimerType {
	if completed.IsBreak() {
		return TypeFocus
	}
	if longBreakInterval > 0 && completedFocus%longBreakInterval == 0 {
		return TypeLongBreak
	}
	return TypeShortBreak
}
