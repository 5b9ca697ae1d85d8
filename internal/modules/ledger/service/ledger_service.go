package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"prostop/internal/modules/ledger/domain"
	ledgerout "prostop/internal/modules/ledger/port/out"
	"prostop/internal/platform/clock"
	apperrors "prostop/internal/platform/errors"
)

// Ledger owns the live tracking session and commits elapsed time into the
// persisted per-domain day buckets. All mutation of the session happens under
// one mutex; the store serializes the collection read-modify-write itself.
type Ledger struct {
	clk       clock.Clock
	cfg       domain.Config
	store     ledgerout.WebsiteStore
	projector ledgerout.UsageProjector
	logger    *slog.Logger

	mu       sync.Mutex
	tracking bool
	session  domain.Session
}

func NewLedger(clk clock.Clock, cfg domain.Config, store ledgerout.WebsiteStore, projector ledgerout.UsageProjector, logger *slog.Logger) *Ledger {
	return &Ledger{clk: clk, cfg: cfg, store: store, projector: projector, logger: logger}
}

// StartTracking switches the tracked session to domainKey. A different
// domain already being tracked is closed out first, using at as the boundary
// so no interval is counted twice or dropped.
func (l *Ledger) StartTracking(ctx context.Context, domainKey string, at time.Time) error {
	if domainKey == "" {
		return apperrors.ErrInvalidInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tracking && l.session.Domain != domainKey {
		if err := l.flushLocked(ctx, at); err != nil {
			return err
		}
	}
	l.tracking = true
	l.session = domain.Session{Domain: domainKey, StartedAt: at}
	l.logger.Debug("tracking started", "domain", domainKey)
	return nil
}

// Flush commits the elapsed interval of the current session and resets its
// start to now. Calling it twice in a row commits nothing the second time.
func (l *Ledger) Flush(ctx context.Context, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.tracking {
		return nil
	}
	return l.flushLocked(ctx, now)
}

func (l *Ledger) flushLocked(ctx context.Context, now time.Time) error {
	elapsed := now.Sub(l.session.StartedAt)
	defer func() { l.session.StartedAt = now }()

	if elapsed < l.cfg.MinTrackable {
		return nil
	}
	seconds := int64(elapsed.Round(time.Second) / time.Second)
	if seconds <= 0 {
		return nil
	}
	return l.commit(ctx, l.session.Domain, domain.DayKey(now), seconds)
}

// Pause stops tracking without committing. Callers that want the elapsed
// time kept must flush first.
func (l *Ledger) Pause(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.tracking {
		return
	}
	l.tracking = false
	l.logger.Debug("tracking paused", "domain", l.session.Domain, "reason", reason)
}

// Resume restarts tracking for the last known domain, if there is one.
func (l *Ledger) Resume(at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tracking || l.session.Domain == "" {
		return
	}
	l.tracking = true
	l.session.StartedAt = at
	l.logger.Debug("tracking resumed", "domain", l.session.Domain)
}

// PeriodicUpdate is a flush that does not stop tracking, run on an interval
// so an unclean shutdown loses at most one interval of time.
func (l *Ledger) PeriodicUpdate(ctx context.Context, now time.Time) error {
	return l.Flush(ctx, now)
}

// TrackedDomain reports the current session's domain and whether tracking is
// live right now.
func (l *Ledger) TrackedDomain() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session.Domain, l.tracking
}

// ClearSession drops the session entirely, e.g. when the active tab turned
// out not to be trackable.
func (l *Ledger) ClearSession() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracking = false
	l.session = domain.Session{}
}

func (l *Ledger) commit(ctx context.Context, domainKey, day string, seconds int64) error {
	var committedBucket int64
	err := l.store.Update(ctx, func(records map[string]*domain.WebsiteRecord) error {
		record, ok := records[domainKey]
		if !ok {
			record = domain.NewWebsiteRecord(domainKey, l.clk.Now())
			records[domainKey] = record
		}
		record.AddUsage(day, seconds)
		committedBucket = record.UsageOn(day)
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit %ds for %s: %w", seconds, domainKey, err)
	}
	if err := l.projector.UpsertUsage(ctx, domainKey, day, committedBucket); err != nil {
		l.logger.Warn("usage projection failed", "domain", domainKey, "day", day, "error", err)
	}
	l.logger.Debug("usage committed", "domain", domainKey, "day", day, "seconds", seconds)
	return nil
}

// SetLimit sets or clears (minutes == 0) the daily limit for a domain,
// creating the record if the domain has never been visited.
func (l *Ledger) SetLimit(ctx context.Context, domainKey string, minutes int) error {
	if domainKey == "" || minutes < 0 {
		return apperrors.ErrInvalidInput
	}
	return l.store.Update(ctx, func(records map[string]*domain.WebsiteRecord) error {
		record, ok := records[domainKey]
		if !ok {
			record = domain.NewWebsiteRecord(domainKey, l.clk.Now())
			records[domainKey] = record
		}
		record.TimeLimitMinutes = minutes
		return nil
	})
}

// ResetToday zeroes today's bucket for every domain. Historical buckets are
// their own dates and are never touched by a reset.
func (l *Ledger) ResetToday(ctx context.Context, now time.Time) error {
	day := domain.DayKey(now)
	var domains []string
	err := l.store.Update(ctx, func(records map[string]*domain.WebsiteRecord) error {
		for key, record := range records {
			if record.DailyUsage == nil {
				record.DailyUsage = map[string]int64{}
			}
			record.DailyUsage[day] = 0
			domains = append(domains, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset today: %w", err)
	}
	for _, key := range domains {
		if err := l.projector.UpsertUsage(ctx, key, day, 0); err != nil {
			l.logger.Warn("usage projection failed", "domain", key, "day", day, "error", err)
		}
	}
	return nil
}

// CleanupRetention prunes day buckets older than the retention window.
func (l *Ledger) CleanupRetention(ctx context.Context, now time.Time) error {
	cutoff := domain.DayKey(now.AddDate(0, 0, -l.cfg.RetentionDays))
	pruned := 0
	err := l.store.Update(ctx, func(records map[string]*domain.WebsiteRecord) error {
		for _, record := range records {
			if record.PruneBefore(cutoff) {
				pruned++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("retention cleanup: %w", err)
	}
	if err := l.projector.PruneBefore(ctx, cutoff); err != nil {
		l.logger.Warn("projection prune failed", "cutoff", cutoff, "error", err)
	}
	if pruned > 0 {
		l.logger.Info("pruned old day buckets", "domains", pruned, "cutoff", cutoff)
	}
	return nil
}
