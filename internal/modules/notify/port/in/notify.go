package in

import "context"

// Notifier is the outbound event surface the core components emit through.
type Notifier interface {
	StateChanged(ctx context.Context, oldState, newState string)
	TimerStarted(ctx context.Context, timerType string)
	TimerCompleted(ctx context.Context, timerType, nextType string, autoStarting bool)
	Blocked(ctx context.Context, domainKey string, todaySeconds int64, limitMinutes int)
}
