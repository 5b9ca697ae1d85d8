package out

import (
	"context"
	"time"
)

// UsageSource answers "how long has this domain been used today, and what is
// its limit". Reads go to the source of truth rather than the projection so
// a blocking decision never lags a just-committed interval.
type UsageSource interface {
	TodayUsage(ctx context.Context, domainKey string, now time.Time) (seconds int64, limitMinutes int, err error)
}
