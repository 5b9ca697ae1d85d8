package dto

// TimerStatus is the outward view of the pomodoro timer.
type TimerStatus struct {
	Phase            string `json:"phase"`
	Type             string `json:"type,omitempty"`
	RemainingSeconds int64  `json:"remainingSeconds"`
	CompletedFocus   int    `json:"completedFocus"`
}
