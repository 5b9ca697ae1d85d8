package domain

import (
	activitydomain "prostop/internal/modules/activity/domain"
)

// Tab identifies one browser tab and its current URL.
type Tab struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// PersistedState is what survives a daemon restart: the activity snapshot,
// the last day boundary seen, and the pomodoro focus counter.
type PersistedState struct {
	Activity       activitydomain.Snapshot `json:"activity"`
	LastResetDate  string                  `json:"lastResetDate"`
	CompletedFocus int                     `json:"completedFocus"`
}
