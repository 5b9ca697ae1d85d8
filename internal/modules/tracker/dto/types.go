package dto

import (
	pomodorodto "prostop/internal/modules/pomodoro/dto"
)

// StatusOutput is the combined daemon status served to clients.
type StatusOutput struct {
	State         string                  `json:"state"`
	WindowFocused bool                    `json:"windowFocused"`
	Tracking      bool                    `json:"tracking"`
	TrackedDomain string                  `json:"trackedDomain,omitempty"`
	TodaySeconds  int64                   `json:"todaySeconds"`
	LimitMinutes  int                     `json:"limitMinutes"`
	Timer         pomodorodto.TimerStatus `json:"timer"`
}
