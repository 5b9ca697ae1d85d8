package dto

import "time"

type SiteOutput struct {
	Domain           string
	TotalSeconds     int64
	TodaySeconds     int64
	TimeLimitMinutes int
	CreatedAt        time.Time
}

type StatsOutput struct {
	Domain              string
	TotalSeconds        int64
	TodaySeconds        int64
	WeekSeconds         int64
	AverageDailySeconds int64
	TimeLimitMinutes    int
}
