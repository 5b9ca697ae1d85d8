package out

import (
	"context"
	"time"
)

// SessionControl is how the state machine drives the time ledger on state
// entry: close-out on INACTIVE/IDLE, resume on re-entry to ACTIVE.
type SessionControl interface {
	CloseOut(ctx context.Context, at time.Time, reason string) error
	Resume(ctx context.Context, at time.Time) error
}
