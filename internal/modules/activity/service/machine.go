package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"prostop/internal/modules/activity/domain"
	activityout "prostop/internal/modules/activity/port/out"
	notifyin "prostop/internal/modules/notify/port/in"
	"prostop/internal/platform/clock"
)

// Machine owns the activity state and its transitions. Every inbound signal
// and the periodic tick funnel through transitionTo, which suppresses
// same-state re-entry and applies entry side effects through ports.
type Machine struct {
	clk      clock.Clock
	cfg      domain.Config
	session  activityout.SessionControl
	notifier notifyin.Notifier
	logger   *slog.Logger

	mu   sync.Mutex
	snap domain.Snapshot
}

func NewMachine(clk clock.Clock, cfg domain.Config, session activityout.SessionControl, notifier notifyin.Notifier, logger *slog.Logger) *Machine {
	return &Machine{
		clk:      clk,
		cfg:      cfg,
		session:  session,
		notifier: notifier,
		logger:   logger,
		snap:     domain.NewSnapshot(clk.Now()),
	}
}

// Restore replaces the snapshot with one persisted by a previous process.
func (m *Machine) Restore(snap domain.Snapshot) {
	if !snap.State.Valid() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
}

func (m *Machine) Snapshot() domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// HandleFocusChanged applies a window focus signal. Focus loss forces
// INACTIVE immediately rather than waiting for the next tick; focus gain
// counts as activity and forces ACTIVE.
func (m *Machine) HandleFocusChanged(ctx context.Context, focused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clk.Now()
	m.snap.WindowFocused = focused
	if !focused {
		m.transitionTo(ctx, domain.StateInactive, now)
		return
	}
	m.snap.LastActivityAt = now
	m.transitionTo(ctx, domain.StateActive, now)
}

// HandleActivity applies a user-activity signal (pointer, key, scroll,
// navigation). With the window focused it refreshes the activity clock and
// forces ACTIVE; without focus the signal came from a background tab and is
// logged and ignored, because focus loss always wins.
func (m *Machine) HandleActivity(ctx context.Context, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clk.Now()
	if !m.snap.WindowFocused {
		m.logger.Debug("activity signal ignored while unfocused", "kind", kind)
		return
	}
	m.snap.LastActivityAt = now
	m.transitionTo(ctx, domain.StateActive, now)
}

// Tick evaluates timeout transitions. It is the only mechanism that can
// notice passive and idle timeouts, and it re-checks focus so a missed
// focus-change signal costs at most one tick interval.
func (m *Machine) Tick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clk.Now()
	next, changed := domain.NextOnTick(m.snap, now, m.cfg)
	if changed {
		m.transitionTo(ctx, next, now)
	}
}

// transitionTo mutates the snapshot and runs entry side effects. Callers
// hold m.mu.
func (m *Machine) transitionTo(ctx context.Context, next domain.State, now time.Time) {
	current := m.snap.State
	if next == current {
		return
	}
	m.snap.PreviousState = current
	m.snap.State = next
	m.snap.LastStateChangeAt = now

	switch next {
	case domain.StateInactive, domain.StateIdle:
		if err := m.session.CloseOut(ctx, now, string(next)); err != nil {
			m.logger.Warn("session close-out failed", "state", next, "error", err)
		}
	case domain.StateActive:
		if current == domain.StateInactive || current == domain.StateIdle {
			if err := m.session.Resume(ctx, now); err != nil {
				m.logger.Warn("session resume failed", "error", err)
			}
		}
	}

	m.logger.Debug("activity transition", "from", current, "to", next)
	m.notifier.StateChanged(ctx, string(current), string(next))
}
