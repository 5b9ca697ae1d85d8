package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"prostop/internal/modules/notify/domain"
	notifyin "prostop/internal/modules/notify/port/in"
	notifyout "prostop/internal/modules/notify/port/out"
	settingsout "prostop/internal/modules/settings/port/out"
	"prostop/internal/platform/clock"
	apperrors "prostop/internal/platform/errors"
)

// Dispatcher fans events out to registered sinks. Alert-only sinks (desktop
// notifiers) receive just the user-facing events and are gated by the
// notifications setting; regular sinks get everything.
type Dispatcher struct {
	clk      clock.Clock
	settings settingsout.Store
	logger   *slog.Logger

	mu    sync.RWMutex
	sinks []registration
}

type registration struct {
	sink      notifyout.Sink
	alertOnly bool
}

func NewDispatcher(clk clock.Clock, settings settingsout.Store, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{clk: clk, settings: settings, logger: logger}
}

var _ notifyin.Notifier = (*Dispatcher)(nil)

func (d *Dispatcher) Register(sink notifyout.Sink, alertOnly bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, registration{sink: sink, alertOnly: alertOnly})
}

func (d *Dispatcher) StateChanged(ctx context.Context, oldState, newState string) {
	d.deliver(ctx, domain.Event{
		Kind:     domain.KindStateChanged,
		OldState: oldState,
		NewState: newState,
	})
}

func (d *Dispatcher) TimerStarted(ctx context.Context, timerType string) {
	d.deliver(ctx, domain.Event{
		Kind:      domain.KindTimerStarted,
		TimerType: timerType,
	})
}

func (d *Dispatcher) TimerCompleted(ctx context.Context, timerType, nextType string, autoStarting bool) {
	d.deliver(ctx, domain.Event{
		Kind:          domain.KindTimerCompleted,
		TimerType:     timerType,
		NextTimerType: nextType,
		AutoStarting:  autoStarting,
	})
}

func (d *Dispatcher) Blocked(ctx context.Context, domainKey string, todaySeconds int64, limitMinutes int) {
	d.deliver(ctx, domain.Event{
		Kind:         domain.KindBlocked,
		Domain:       domainKey,
		TodaySeconds: todaySeconds,
		LimitMinutes: limitMinutes,
	})
}

func (d *Dispatcher) deliver(ctx context.Context, event domain.Event) {
	event.At = d.clk.Now()

	alertsEnabled := true
	if event.Alert() && d.settings != nil {
		settings, err := d.settings.Load(ctx)
		if err != nil {
			d.logger.Warn("load settings for notification", "error", err)
		} else {
			alertsEnabled = settings.NotificationsEnabled
		}
	}

	d.mu.RLock()
	sinks := make([]registration, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.RUnlock()

	for _, reg := range sinks {
		if reg.alertOnly && (!event.Alert() || !alertsEnabled) {
			continue
		}
		if err := reg.sink.Deliver(ctx, event); err != nil {
			if errors.Is(err, apperrors.ErrNoListener) {
				continue
			}
			d.logger.Warn("notification delivery failed", "sink", reg.sink.Name(), "kind", event.Kind, "error", err)
		}
	}
}
