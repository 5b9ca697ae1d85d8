package out

import (
	"context"

	"prostop/internal/modules/tracker/domain"
)

// TabPort is the outbound surface to the connected browser: query which tab
// is active, and navigate a tab elsewhere. Both fail with ErrNoListener when
// no browser is connected.
type TabPort interface {
	QueryActiveTab(ctx context.Context) (domain.Tab, error)
	Navigate(ctx context.Context, tabID int, url string) error
}

// StateStore persists the restart-surviving state.
type StateStore interface {
	Load(ctx context.Context) (domain.PersistedState, error)
	Save(ctx context.Context, state domain.PersistedState) error
}
