package usecase

import (
	"context"
	"time"

	activityout "prostop/internal/modules/activity/port/out"
)

// SessionLedger is the slice of the ledger the activity machine drives.
type SessionLedger interface {
	Flush(ctx context.Context, now time.Time) error
	Pause(reason string)
	Resume(at time.Time)
}

// SessionBridge adapts the ledger to the activity machine's session port:
// leaving ACTIVE commits the elapsed interval and stops the meter, coming
// back restarts it.
type SessionBridge struct {
	ledger SessionLedger
}

func NewSessionBridge(ledger SessionLedger) *SessionBridge {
	return &SessionBridge{ledger: ledger}
}

func (b *SessionBridge) CloseOut(ctx context.Context, at time.Time, reason string) error {
	if err := b.ledger.Flush(ctx, at); err != nil {
		return err
	}
	b.ledger.Pause(reason)
	return nil
}

func (b *SessionBridge) Resume(_ context.Context, at time.Time) error {
	b.ledger.Resume(at)
	return nil
}

var _ activityout.SessionControl = (*SessionBridge)(nil)
