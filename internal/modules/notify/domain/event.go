package domain

import "time"

type Kind string

const (
	KindStateChanged   Kind = "state.changed"
	KindTimerStarted   Kind = "timer.started"
	KindTimerCompleted Kind = "timer.completed"
	KindBlocked        Kind = "tab.blocked"
)

// Event is a semantic notification for the view layer; the core never
// renders UI, it only emits these.
type Event struct {
	Kind          Kind      `json:"kind"`
	At            time.Time `json:"at"`
	OldState      string    `json:"oldState,omitempty"`
	NewState      string    `json:"newState,omitempty"`
	TimerType     string    `json:"timerType,omitempty"`
	NextTimerType string    `json:"nextTimerType,omitempty"`
	AutoStarting  bool      `json:"autoStarting,omitempty"`
	Domain        string    `json:"domain,omitempty"`
	TodaySeconds  int64     `json:"todaySeconds,omitempty"`
	LimitMinutes  int       `json:"limitMinutes,omitempty"`
}

// Alert reports whether the event should surface as a user-facing
// notification, as opposed to plain state fan-out for the popup.
func (e Event) Alert() bool {
	switch e.Kind {
	case KindTimerStarted, KindTimerCompleted, KindBlocked:
		return true
	default:
		return false
	}
}
