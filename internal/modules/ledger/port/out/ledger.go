package out

import (
	"context"

	"prostop/internal/modules/ledger/domain"
)

// WebsiteStore holds every domain's record in one keyed collection. Update
// runs fn inside the store's critical section: the whole collection is read,
// mutated, and written back before any other update may begin.
type WebsiteStore interface {
	Load(ctx context.Context) (map[string]*domain.WebsiteRecord, error)
	Update(ctx context.Context, fn func(records map[string]*domain.WebsiteRecord) error) error
}

// UsageProjector mirrors committed day buckets into a queryable index. The
// JSON collection stays the source of truth; the projection is rebuildable,
// so projection failures must not fail a commit.
type UsageProjector interface {
	UpsertUsage(ctx context.Context, domainKey, day string, seconds int64) error
	PruneBefore(ctx context.Context, day string) error
	UsageBetween(ctx context.Context, domainKey, from, to string) (int64, error)
	DaysWithUsage(ctx context.Context, domainKey, from, to string) (int, error)
}
