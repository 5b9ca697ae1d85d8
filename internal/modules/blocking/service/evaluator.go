package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"prostop/internal/modules/blocking/domain"
	blockingout "prostop/internal/modules/blocking/port/out"
	"prostop/internal/platform/clock"
	"prostop/internal/platform/domainkey"
)

// redirectGrace bounds how long a tab counts as "redirect in flight". Within
// the grace window repeated polls of the same tab must not issue a second
// navigation.
const redirectGrace = 10 * time.Second

// Evaluator decides whether a domain is over its daily limit. Blocking is
// enforcement-on-read: nothing is stored about being blocked, every check
// re-derives the decision from today's usage.
type Evaluator struct {
	clk     clock.Clock
	usage   blockingout.UsageSource
	enabled func(ctx context.Context) bool
	logger  *slog.Logger

	mu        sync.Mutex
	overrides map[string]time.Time
	inFlight  map[int]time.Time
}

// NewEvaluator wires the evaluator. enabled gates the whole feature; it is
// read on every evaluation so a settings change applies immediately.
func NewEvaluator(clk clock.Clock, usage blockingout.UsageSource, enabled func(ctx context.Context) bool, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		clk:       clk,
		usage:     usage,
		enabled:   enabled,
		logger:    logger,
		overrides: make(map[string]time.Time),
		inFlight:  make(map[int]time.Time),
	}
}

// Evaluate returns the blocking decision for one domain key. Internal
// browser pages are never blocked, and an active override wins over the
// limit.
func (e *Evaluator) Evaluate(ctx context.Context, key string) (domain.Decision, error) {
	if domainkey.IsInternal(key) {
		return domain.Decision{}, nil
	}
	now := e.clk.Now()
	seconds, limitMinutes, err := e.usage.TodayUsage(ctx, key, now)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("read today usage: %w", err)
	}
	decision := domain.Decision{TodaySeconds: seconds, LimitMinutes: limitMinutes}
	if limitMinutes <= 0 {
		return decision, nil
	}
	if seconds < int64(limitMinutes)*60 {
		return decision, nil
	}
	if e.enabled != nil && !e.enabled(ctx) {
		return decision, nil
	}
	e.mu.Lock()
	expiry, overridden := e.overrides[key]
	e.mu.Unlock()
	if overridden && now.Before(expiry) {
		e.logger.Debug("limit reached but overridden", "domain", key, "until", expiry)
		return decision, nil
	}
	decision.Blocked = true
	return decision, nil
}

// GrantOverride lets a domain through its limit for the given duration.
// Granting again replaces the previous expiry.
func (e *Evaluator) GrantOverride(key string, duration time.Duration) domain.OverrideGrant {
	expiry := e.clk.Now().Add(duration)
	e.mu.Lock()
	e.overrides[key] = expiry
	e.mu.Unlock()
	e.logger.Info("override granted", "domain", key, "until", expiry)
	return domain.OverrideGrant{Domain: key, ExpiresAt: expiry}
}

// RevokeOverride drops an override before it expires.
func (e *Evaluator) RevokeOverride(key string) {
	e.mu.Lock()
	delete(e.overrides, key)
	e.mu.Unlock()
}

// Overrides lists the currently active grants, sorted by domain.
func (e *Evaluator) Overrides() []domain.OverrideGrant {
	now := e.clk.Now()
	e.mu.Lock()
	out := make([]domain.OverrideGrant, 0, len(e.overrides))
	for key, expiry := range e.overrides {
		if now.Before(expiry) {
			out = append(out, domain.OverrideGrant{Domain: key, ExpiresAt: expiry})
		}
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

// Reap removes expired overrides and stale in-flight redirect marks.
func (e *Evaluator) Reap() {
	now := e.clk.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, expiry := range e.overrides {
		if !now.Before(expiry) {
			delete(e.overrides, key)
		}
	}
	for tabID, started := range e.inFlight {
		if now.Sub(started) > redirectGrace {
			delete(e.inFlight, tabID)
		}
	}
}

// BeginRedirect marks a tab as having a block redirect in flight. It returns
// false when a redirect for the tab was already started within the grace
// window, so the caller skips issuing a duplicate navigation.
func (e *Evaluator) BeginRedirect(tabID int) bool {
	now := e.clk.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if started, ok := e.inFlight[tabID]; ok && now.Sub(started) <= redirectGrace {
		return false
	}
	e.inFlight[tabID] = now
	return true
}

// EndRedirect clears the in-flight mark, typically once the tab reports a
// new URL.
func (e *Evaluator) EndRedirect(tabID int) {
	e.mu.Lock()
	delete(e.inFlight, tabID)
	e.mu.Unlock()
}
