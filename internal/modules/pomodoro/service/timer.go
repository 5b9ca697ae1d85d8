package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	notifyin "prostop/internal/modules/notify/port/in"
	"prostop/internal/modules/pomodoro/domain"
	"prostop/internal/modules/pomodoro/dto"
	settingsdomain "prostop/internal/modules/settings/domain"
	settingsout "prostop/internal/modules/settings/port/out"
	"prostop/internal/platform/clock"
	apperrors "prostop/internal/platform/errors"
)

// Timer runs the pomodoro cycle. Durations come from settings at start time,
// so a settings change applies to the next session, never the running one.
type Timer struct {
	clk      clock.Clock
	settings settingsout.Store
	notifier notifyin.Notifier
	logger   *slog.Logger

	mu             sync.Mutex
	phase          domain.Phase
	typ            domain.TimerType
	endsAt         time.Time
	remaining      time.Duration
	completedFocus int
}

func NewTimer(clk clock.Clock, settings settingsout.Store, notifier notifyin.Notifier, logger *slog.Logger) *Timer {
	return &Timer{
		clk:      clk,
		settings: settings,
		notifier: notifier,
		logger:   logger,
		phase:    domain.PhaseIdle,
	}
}

// RestoreCompleted seeds the focus counter from persisted state.
func (t *Timer) RestoreCompleted(n int) {
	if n < 0 {
		return
	}
	t.mu.Lock()
	t.completedFocus = n
	t.mu.Unlock()
}

func (t *Timer) CompletedFocus() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedFocus
}

// Start begins a session, replacing whatever was running. An empty type
// defaults to focus and announces the start; explicit and auto-chained
// starts stay quiet so the only notification the user sees is the
// completion.
func (t *Timer) Start(ctx context.Context, typ string) error {
	defaulted := typ == ""
	if defaulted {
		typ = string(domain.TypeFocus)
	}
	timerType := domain.TimerType(typ)
	if !timerType.Valid() {
		return apperrors.ErrInvalidInput
	}
	cfg := t.loadSettings(ctx)

	t.mu.Lock()
	t.begin(timerType, cfg)
	t.mu.Unlock()

	if defaulted {
		t.notifier.TimerStarted(ctx, string(timerType))
	}
	return nil
}

// begin arms the timer. Callers hold t.mu.
func (t *Timer) begin(typ domain.TimerType, cfg settingsdomain.Settings) {
	t.typ = typ
	t.phase = domain.PhaseRunning
	t.endsAt = t.clk.Now().Add(t.duration(typ, cfg))
	t.remaining = 0
	t.logger.Info("timer started", "type", typ, "endsAt", t.endsAt)
}

func (t *Timer) duration(typ domain.TimerType, cfg settingsdomain.Settings) time.Duration {
	switch typ {
	case domain.TypeShortBreak:
		return time.Duration(cfg.ShortBreakMinutes) * time.Minute
	case domain.TypeLongBreak:
		return time.Duration(cfg.LongBreakMinutes) * time.Minute
	default:
		return time.Duration(cfg.FocusMinutes) * time.Minute
	}
}

// Pause freezes the remaining time.
func (t *Timer) Pause(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != domain.PhaseRunning {
		return apperrors.ErrTimerNotRunning
	}
	t.remaining = t.endsAt.Sub(t.clk.Now())
	if t.remaining < 0 {
		t.remaining = 0
	}
	t.phase = domain.PhasePaused
	return nil
}

// Resume continues a paused session with the time it had left.
func (t *Timer) Resume(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != domain.PhasePaused {
		return apperrors.ErrTimerNotPaused
	}
	t.endsAt = t.clk.Now().Add(t.remaining)
	t.remaining = 0
	t.phase = domain.PhaseRunning
	return nil
}

// Reset stops the timer without touching the focus counter, so the long
// break cadence survives an abandoned session.
func (t *Timer) Reset(context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = domain.PhaseIdle
	t.typ = ""
	t.remaining = 0
}

// Tick checks for completion. On completion it counts finished focus
// sessions, announces what comes next, and auto-chains into it when the
// settings say so.
func (t *Timer) Tick(ctx context.Context) {
	t.mu.Lock()
	if t.phase != domain.PhaseRunning || t.clk.Now().Before(t.endsAt) {
		t.mu.Unlock()
		return
	}
	completed := t.typ
	if completed == domain.TypeFocus {
		t.completedFocus++
	}
	cfg := t.loadSettings(ctx)
	next := domain.NextType(completed, t.completedFocus, cfg.LongBreakInterval)
	autoStart := (next.IsBreak() && cfg.AutoStartBreaks) || (next == domain.TypeFocus && cfg.AutoStartPomodoros)
	if autoStart {
		t.begin(next, cfg)
	} else {
		t.phase = domain.PhaseIdle
		t.typ = ""
	}
	t.mu.Unlock()

	t.logger.Info("timer completed", "type", completed, "next", next, "autoStart", autoStart)
	t.notifier.TimerCompleted(ctx, string(completed), string(next), autoStart)
}

// Status reports the current phase with live remaining time.
func (t *Timer) Status(_ context.Context) dto.TimerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := dto.TimerStatus{
		Phase:          string(t.phase),
		Type:           string(t.typ),
		CompletedFocus: t.completedFocus,
	}
	switch t.phase {
	case domain.PhaseRunning:
		if left := t.endsAt.Sub(t.clk.Now()); left > 0 {
			out.RemainingSeconds = int64(left / time.Second)
		}
	case domain.PhasePaused:
		out.RemainingSeconds = int64(t.remaining / time.Second)
	}
	return out
}

func (t *Timer) loadSettings(ctx context.Context) settingsdomain.Settings {
	cfg, err := t.settings.Load(ctx)
	if err != nil {
		t.logger.Warn("settings unavailable, using defaults", "error", err)
		return settingsdomain.Default()
	}
	return cfg
}
