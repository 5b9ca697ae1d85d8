package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"prostop/internal/modules/ledger/domain"
	"prostop/internal/modules/ledger/dto"
	apperrors "prostop/internal/platform/errors"
)

const averageWindowDays = 28

// Stats aggregates usage windows for one domain from the projection: today,
// the current calendar week (Sunday start), and the 28-day daily average
// over days that actually saw usage.
func (l *Ledger) Stats(ctx context.Context, domainKey string) (dto.StatsOutput, error) {
	records, err := l.store.Load(ctx)
	if err != nil {
		return dto.StatsOutput{}, fmt.Errorf("load websites: %w", err)
	}
	record, ok := records[domainKey]
	if !ok {
		return dto.StatsOutput{}, apperrors.ErrNotFound
	}

	now := l.clk.Now()
	today := domain.DayKey(now)
	weekStart := domain.DayKey(now.AddDate(0, 0, -int(now.Weekday())))
	windowStart := domain.DayKey(now.AddDate(0, 0, -(averageWindowDays - 1)))

	todaySeconds, err := l.projector.UsageBetween(ctx, domainKey, today, today)
	if err != nil {
		return dto.StatsOutput{}, fmt.Errorf("query today usage: %w", err)
	}
	weekSeconds, err := l.projector.UsageBetween(ctx, domainKey, weekStart, today)
	if err != nil {
		return dto.StatsOutput{}, fmt.Errorf("query week usage: %w", err)
	}
	windowSeconds, err := l.projector.UsageBetween(ctx, domainKey, windowStart, today)
	if err != nil {
		return dto.StatsOutput{}, fmt.Errorf("query average window: %w", err)
	}
	activeDays, err := l.projector.DaysWithUsage(ctx, domainKey, windowStart, today)
	if err != nil {
		return dto.StatsOutput{}, fmt.Errorf("query active days: %w", err)
	}

	average := int64(0)
	if activeDays > 0 {
		average = windowSeconds / int64(activeDays)
	}
	return dto.StatsOutput{
		Domain:              domainKey,
		TotalSeconds:        record.TimeSpentSeconds,
		TodaySeconds:        todaySeconds,
		WeekSeconds:         weekSeconds,
		AverageDailySeconds: average,
		TimeLimitMinutes:    record.TimeLimitMinutes,
	}, nil
}

// Sites lists every tracked domain with its lifetime and today totals,
// sorted by today's usage descending.
func (l *Ledger) Sites(ctx context.Context) ([]dto.SiteOutput, error) {
	records, err := l.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load websites: %w", err)
	}
	today := domain.DayKey(l.clk.Now())
	out := make([]dto.SiteOutput, 0, len(records))
	for _, record := range records {
		out = append(out, dto.SiteOutput{
			Domain:           record.Domain,
			TotalSeconds:     record.TimeSpentSeconds,
			TodaySeconds:     record.UsageOn(today),
			TimeLimitMinutes: record.TimeLimitMinutes,
			CreatedAt:        record.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TodaySeconds != out[j].TodaySeconds {
			return out[i].TodaySeconds > out[j].TodaySeconds
		}
		return out[i].Domain < out[j].Domain
	})
	return out, nil
}

// TodayUsage reads today's bucket for one domain straight from the source of
// truth; the blocking evaluator uses it rather than the projection.
func (l *Ledger) TodayUsage(ctx context.Context, domainKey string, now time.Time) (int64, int, error) {
	records, err := l.store.Load(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load websites: %w", err)
	}
	record, ok := records[domainKey]
	if !ok {
		return 0, 0, nil
	}
	return record.UsageOn(domain.DayKey(now)), record.TimeLimitMinutes, nil
}
