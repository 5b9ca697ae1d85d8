package domain

import (
	"net/url"
	"strconv"
	"time"
)

// Decision is the outcome of evaluating one domain against its daily limit.
type Decision struct {
	Blocked      bool
	TodaySeconds int64
	LimitMinutes int
}

// OverrideGrant suppresses blocking for one domain until it expires.
type OverrideGrant struct {
	Domain    string    `json:"domain"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (g OverrideGrant) Active(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}

// BlockedPagePath is resolved by the browser client against its own origin.
const BlockedPagePath = "blocked.html"

// BlockedPageURL builds the relative URL the client navigates a blocked tab
// to, carrying enough context for the blocked page to render without a
// round trip.
func BlockedPageURL(domainKey string, todaySeconds int64, limitMinutes int, originalURL string) string {
	values := url.Values{}
	values.Set("domain", domainKey)
	values.Set("timeSpent", strconv.FormatInt(todaySeconds, 10))
	values.Set("timeLimit", strconv.Itoa(limitMinutes))
	if originalURL != "" {
		values.Set("originalUrl", originalURL)
	}
	return BlockedPagePath + "?" + values.Encode()
}
