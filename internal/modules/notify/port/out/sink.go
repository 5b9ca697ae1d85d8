package out

import (
	"context"

	"prostop/internal/modules/notify/domain"
)

// Sink delivers one event to one destination. A sink with no listener
// returns apperrors.ErrNoListener, which delivery treats as a non-error.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event domain.Event) error
}
