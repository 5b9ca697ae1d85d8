package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"prostop/internal/modules/ledger/domain"
	"prostop/internal/modules/ledger/service"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

type memoryStore struct {
	records map[string]*domain.WebsiteRecord
	updates int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]*domain.WebsiteRecord{}}
}

func (m *memoryStore) Load(context.Context) (map[string]*domain.WebsiteRecord, error) {
	return m.records, nil
}

func (m *memoryStore) Update(_ context.Context, fn func(map[string]*domain.WebsiteRecord) error) error {
	m.updates++
	return fn(m.records)
}

type memoryProjector struct {
	buckets map[string]map[string]int64
}

func newMemoryProjector() *memoryProjector {
	return &memoryProjector{buckets: map[string]map[string]int64{}}
}

func (m *memoryProjector) UpsertUsage(_ context.Context, domainKey, day string, seconds int64) error {
	if m.buckets[domainKey] == nil {
		m.buckets[domainKey] = map[string]int64{}
	}
	m.buckets[domainKey][day] = seconds
	return nil
}

func (m *memoryProjector) PruneBefore(_ context.Context, day string) error {
	for _, days := range m.buckets {
		for d := range days {
			if d < day {
				delete(days, d)
			}
		}
	}
	return nil
}

func (m *memoryProjector) UsageBetween(_ context.Context, domainKey, from, to string) (int64, error) {
	total := int64(0)
	for d, seconds := range m.buckets[domainKey] {
		if d >= from && d <= to {
			total += seconds
		}
	}
	return total, nil
}

func (m *memoryProjector) DaysWithUsage(_ context.Context, domainKey, from, to string) (int, error) {
	days := 0
	for d, seconds := range m.buckets[domainKey] {
		if d >= from && d <= to && seconds > 0 {
			days++
		}
	}
	return days, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLedger(clk *fakeClock) (*service.Ledger, *memoryStore, *memoryProjector) {
	store := newMemoryStore()
	projector := newMemoryProjector()
	ledger := service.NewLedger(clk, domain.DefaultConfig(), store, projector, discardLogger())
	return ledger, store, projector
}

func at(hour, minute, second int) time.Time {
	return time.Date(2026, 8, 31, hour, minute, second, 0, time.UTC)
}

func TestFlushIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &fakeClock{now: at(10, 0, 0)}
	ledger, store, _ := newLedger(clk)

	if err := ledger.StartTracking(ctx, "example.com", at(10, 0, 0)); err != nil {
		t.Fatalf("start tracking: %v", err)
	}
	if err := ledger.Flush(ctx, at(10, 0, 45)); err != nil {
		t.Fatalf("first flush: %v", err)
	}
	if err := ledger.Flush(ctx, at(10, 0, 45)); err != nil {
		t.Fatalf("second flush: %v", err)
	}

	record := store.records["example.com"]
	if record == nil {
		t.Fatalf("record was not created")
	}
	if record.TimeSpentSeconds != 45 {
		t.Fatalf("expected 45s committed exactly once, got %d", record.TimeSpentSeconds)
	}
	if got := record.UsageOn("2026-08-31"); got != 45 {
		t.Fatalf("expected day bucket 45s, got %d", got)
	}
}

func TestNoDoubleCountingAcrossTabSwitch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &fakeClock{now: at(9, 0, 0)}
	ledger, store, _ := newLedger(clk)

	// A from t0, B at t0+20s, back to A at t0+50s, final flush at t0+80s.
	if err := ledger.StartTracking(ctx, "a.example", at(9, 0, 0)); err != nil {
		t.Fatalf("track a: %v", err)
	}
	if err := ledger.StartTracking(ctx, "b.example", at(9, 0, 20)); err != nil {
		t.Fatalf("track b: %v", err)
	}
	if err := ledger.StartTracking(ctx, "a.example", at(9, 0, 50)); err != nil {
		t.Fatalf("track a again: %v", err)
	}
	if err := ledger.Flush(ctx, at(9, 1, 20)); err != nil {
		t.Fatalf("final flush: %v", err)
	}

	if got := store.records["a.example"].TimeSpentSeconds; got != 50 {
		t.Fatalf("domain a: expected 20+30=50s, got %d", got)
	}
	if got := store.records["b.example"].TimeSpentSeconds; got != 30 {
		t.Fatalf("domain b: expected exactly 30s, got %d", got)
	}
}

func TestMicroIntervalsAreDiscarded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &fakeClock{now: at(12, 0, 0)}
	ledger, store, _ := newLedger(clk)

	if err := ledger.StartTracking(ctx, "a.example", at(12, 0, 0)); err != nil {
		t.Fatalf("track a: %v", err)
	}
	// Rapid flicker to b and back, 300ms apart.
	base := at(12, 0, 0)
	if err := ledger.StartTracking(ctx, "b.example", base.Add(300*time.Millisecond)); err != nil {
		t.Fatalf("track b: %v", err)
	}
	if err := ledger.StartTracking(ctx, "a.example", base.Add(600*time.Millisecond)); err != nil {
		t.Fatalf("track a again: %v", err)
	}
	if len(store.records) != 0 {
		t.Fatalf("micro-intervals must not create records, got %d", len(store.records))
	}
}

func TestMidnightSpanCommitsToFlushDate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &fakeClock{now: at(23, 59, 0)}
	ledger, store, _ := newLedger(clk)

	start := time.Date(2026, 8, 31, 23, 59, 30, 0, time.UTC)
	flush := time.Date(2026, 9, 1, 0, 0, 5, 0, time.UTC)
	if err := ledger.StartTracking(ctx, "example.com", start); err != nil {
		t.Fatalf("start tracking: %v", err)
	}
	if err := ledger.Flush(ctx, flush); err != nil {
		t.Fatalf("flush: %v", err)
	}

	record := store.records["example.com"]
	if got := record.UsageOn("2026-09-01"); got != 35 {
		t.Fatalf("whole interval belongs to the flush date, got %d", got)
	}
	if got := record.UsageOn("2026-08-31"); got != 0 {
		t.Fatalf("no split across the boundary, got %d on the old date", got)
	}
}

func TestPauseWithoutFlushDropsInterval(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &fakeClock{now: at(8, 0, 0)}
	ledger, store, _ := newLedger(clk)

	if err := ledger.StartTracking(ctx, "example.com", at(8, 0, 0)); err != nil {
		t.Fatalf("start tracking: %v", err)
	}
	ledger.Pause("window inactive")
	if err := ledger.Flush(ctx, at(8, 5, 0)); err != nil {
		t.Fatalf("flush after pause: %v", err)
	}
	if len(store.records) != 0 {
		t.Fatalf("pause-then-flush must not commit, got %d records", len(store.records))
	}

	// Resume restarts the same domain from the resume timestamp.
	ledger.Resume(at(8, 10, 0))
	if err := ledger.Flush(ctx, at(8, 10, 30)); err != nil {
		t.Fatalf("flush after resume: %v", err)
	}
	if got := store.records["example.com"].TimeSpentSeconds; got != 30 {
		t.Fatalf("expected 30s after resume, got %d", got)
	}
}

func TestRetentionPrunesBucketsButNotTotals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &fakeClock{now: at(10, 0, 0)}
	ledger, store, projector := newLedger(clk)

	old := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	if err := ledger.StartTracking(ctx, "example.com", old); err != nil {
		t.Fatalf("start tracking: %v", err)
	}
	if err := ledger.Flush(ctx, old.Add(100*time.Second)); err != nil {
		t.Fatalf("old flush: %v", err)
	}
	if err := ledger.Flush(ctx, at(10, 1, 40)); err != nil {
		t.Fatalf("recent flush: %v", err)
	}

	if err := ledger.CleanupRetention(ctx, at(10, 2, 0)); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	record := store.records["example.com"]
	if record.UsageOn("2026-01-01") != 0 {
		t.Fatalf("old bucket must be pruned")
	}
	if record.UsageOn("2026-08-31") == 0 {
		t.Fatalf("recent bucket must survive")
	}
	if record.TimeSpentSeconds < 100 {
		t.Fatalf("lifetime total must keep pruned history, got %d", record.TimeSpentSeconds)
	}
	if projector.buckets["example.com"]["2026-01-01"] != 0 {
		t.Fatalf("projection must be pruned too")
	}
}

func TestResetTodayZeroesOnlyToday(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &fakeClock{now: at(10, 0, 0)}
	ledger, store, _ := newLedger(clk)

	yesterday := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	if err := ledger.StartTracking(ctx, "example.com", yesterday); err != nil {
		t.Fatalf("start tracking: %v", err)
	}
	if err := ledger.Flush(ctx, yesterday.Add(60*time.Second)); err != nil {
		t.Fatalf("yesterday flush: %v", err)
	}
	if err := ledger.Flush(ctx, at(10, 1, 0)); err != nil {
		t.Fatalf("today flush: %v", err)
	}

	if err := ledger.ResetToday(ctx, at(10, 5, 0)); err != nil {
		t.Fatalf("reset today: %v", err)
	}
	record := store.records["example.com"]
	if record.UsageOn("2026-08-31") != 0 {
		t.Fatalf("today's bucket must be zeroed")
	}
	if record.UsageOn("2026-08-30") != 60 {
		t.Fatalf("historical buckets must survive a reset")
	}
}

func TestStatsAggregatesWindows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &fakeClock{now: at(10, 0, 0)} // 2026-08-31 is a Monday
	ledger, _, projector := newLedger(clk)

	days := map[string]int64{
		"2026-08-31": 120, // today, in week (Sunday 08-30 start)
		"2026-08-30": 60,  // Sunday, in week
		"2026-08-29": 30,  // Saturday, out of week, in 28-day window
		"2026-08-04": 90,  // in 28-day window
		"2026-08-03": 500, // outside 28-day window
	}
	for day, seconds := range days {
		start := day + "T09:00:00Z"
		from, err := time.Parse(time.RFC3339, start)
		if err != nil {
			t.Fatalf("parse %s: %v", start, err)
		}
		if err := ledger.StartTracking(ctx, "example.com", from); err != nil {
			t.Fatalf("start tracking: %v", err)
		}
		if err := ledger.Flush(ctx, from.Add(time.Duration(seconds)*time.Second)); err != nil {
			t.Fatalf("flush %s: %v", day, err)
		}
	}
	if len(projector.buckets["example.com"]) != len(days) {
		t.Fatalf("projection missing buckets: %v", projector.buckets)
	}

	stats, err := ledger.Stats(ctx, "example.com")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TodaySeconds != 120 {
		t.Fatalf("today: got %d", stats.TodaySeconds)
	}
	if stats.WeekSeconds != 180 {
		t.Fatalf("week (Sun+Mon): got %d", stats.WeekSeconds)
	}
	// Window 2026-08-04..2026-08-31 holds 120+60+30+90 over 4 active days.
	if stats.AverageDailySeconds != 75 {
		t.Fatalf("average: got %d", stats.AverageDailySeconds)
	}
	if stats.TotalSeconds != 800 {
		t.Fatalf("lifetime total: got %d", stats.TotalSeconds)
	}
}
