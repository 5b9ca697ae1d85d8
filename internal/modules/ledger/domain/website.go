package domain

import "time"

const dayKeyLayout = "2006-01-02"

// WebsiteRecord is the persisted per-domain counter set. TimeSpentSeconds is
// an independent lifetime counter: after retention pruning it can exceed the
// sum of the visible day buckets, which is accepted rather than recomputing
// the total from a truncated history.
type WebsiteRecord struct {
	Domain           string           `json:"domain"`
	TimeSpentSeconds int64            `json:"timeSpent"`
	DailyUsage       map[string]int64 `json:"dailyUsage"`
	TimeLimitMinutes int              `json:"timeLimit,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

func NewWebsiteRecord(domainKey string, createdAt time.Time) *WebsiteRecord {
	return &WebsiteRecord{
		Domain:     domainKey,
		DailyUsage: map[string]int64{},
		CreatedAt:  createdAt,
	}
}

// DayKey formats the wall-clock date of t as the bucket key.
func DayKey(t time.Time) string {
	return t.Format(dayKeyLayout)
}

// AddUsage credits seconds to the lifetime total and the given day bucket.
func (r *WebsiteRecord) AddUsage(day string, seconds int64) {
	if seconds <= 0 {
		return
	}
	if r.DailyUsage == nil {
		r.DailyUsage = map[string]int64{}
	}
	r.TimeSpentSeconds += seconds
	r.DailyUsage[day] += seconds
}

func (r *WebsiteRecord) UsageOn(day string) int64 {
	if r == nil || r.DailyUsage == nil {
		return 0
	}
	return r.DailyUsage[day]
}

// PruneBefore drops day buckets strictly older than cutoff and reports
// whether anything was removed. The lifetime total is left untouched.
func (r *WebsiteRecord) PruneBefore(cutoff string) bool {
	pruned := false
	for day := range r.DailyUsage {
		if day < cutoff {
			delete(r.DailyUsage, day)
			pruned = true
		}
	}
	return pruned
}

// Session is the live tracking interval for the current domain.
type Session struct {
	Domain    string
	StartedAt time.Time
}
