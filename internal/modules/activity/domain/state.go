package domain

import "time"

// State is the single process-wide activity state.
type State string

const (
	StateActive   State = "active"
	StatePassive  State = "passive"
	StateInactive State = "inactive"
	StateIdle     State = "idle"
)

func (s State) Valid() bool {
	switch s {
	case StateActive, StatePassive, StateInactive, StateIdle:
		return true
	}
	return false
}

// Snapshot carries the state and the timestamps that drive transitions. It
// lives for the process lifetime and is persisted so a restart can pick up
// where the evicted process left off.
type Snapshot struct {
	State             State     `json:"state"`
	PreviousState     State     `json:"previousState,omitempty"`
	LastActivityAt    time.Time `json:"lastActivityAt"`
	LastStateChangeAt time.Time `json:"lastStateChangeAt"`
	WindowFocused     bool      `json:"windowFocused"`
}

func NewSnapshot(now time.Time) Snapshot {
	return Snapshot{
		State:             StateActive,
		LastActivityAt:    now,
		LastStateChangeAt: now,
		WindowFocused:     true,
	}
}

// Config holds the transition thresholds; tests compress them.
type Config struct {
	ActiveToPassive time.Duration
	PassiveToIdle   time.Duration
	CheckInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ActiveToPassive: 30 * time.Second,
		PassiveToIdle:   2 * time.Minute,
		CheckInterval:   5 * time.Second,
	}
}

// NextOnTick evaluates the timeout-driven transitions for a periodic tick.
// Focus loss dominates every state; the passive and idle timeouts only run
// while the window is focused. The returned bool reports whether the state
// changes.
func NextOnTick(s Snapshot, now time.Time, cfg Config) (State, bool) {
	if !s.WindowFocused {
		if s.State == StateInactive {
			return s.State, false
		}
		return StateInactive, true
	}
	switch s.State {
	case StateActive:
		if now.Sub(s.LastActivityAt) > cfg.ActiveToPassive {
			return StatePassive, true
		}
	case StatePassive:
		if now.Sub(s.LastStateChangeAt) > cfg.PassiveToIdle {
			return StateIdle, true
		}
	case StateInactive:
		return StateActive, true
	case StateIdle:
		// Stays idle until focus loss or a fresh activity signal.
	}
	return s.State, false
}
