package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	activitydomain "prostop/internal/modules/activity/domain"
	blockingdomain "prostop/internal/modules/blocking/domain"
	ledgerdomain "prostop/internal/modules/ledger/domain"
	notifyin "prostop/internal/modules/notify/port/in"
	pomodorodto "prostop/internal/modules/pomodoro/dto"
	"prostop/internal/modules/tracker/domain"
	"prostop/internal/modules/tracker/dto"
	trackerout "prostop/internal/modules/tracker/port/out"
	"prostop/internal/platform/clock"
	"prostop/internal/platform/domainkey"
	apperrors "prostop/internal/platform/errors"
)

// The interactor depends on the services it coordinates through these
// consumer-side interfaces so tests can stand in fakes.

type timeLedger interface {
	StartTracking(ctx context.Context, domainKey string, at time.Time) error
	Flush(ctx context.Context, now time.Time) error
	Pause(reason string)
	Resume(at time.Time)
	TrackedDomain() (string, bool)
	ClearSession()
	TodayUsage(ctx context.Context, domainKey string, now time.Time) (int64, int, error)
}

type activityMachine interface {
	HandleFocusChanged(ctx context.Context, focused bool)
	HandleActivity(ctx context.Context, kind string)
	Tick(ctx context.Context)
	Snapshot() activitydomain.Snapshot
	Restore(snap activitydomain.Snapshot)
}

type limitEvaluator interface {
	Evaluate(ctx context.Context, key string) (blockingdomain.Decision, error)
	BeginRedirect(tabID int) bool
	EndRedirect(tabID int)
}

type focusTimer interface {
	Status(ctx context.Context) pomodorodto.TimerStatus
	CompletedFocus() int
	RestoreCompleted(n int)
}

// Interactor coordinates the tab signals from the browser with the activity
// machine, the time ledger, and the blocking evaluator. It is the single
// place that knows which tab is being tracked.
type Interactor struct {
	clk      clock.Clock
	ledger   timeLedger
	machine  activityMachine
	blocker  limitEvaluator
	timer    focusTimer
	tabs     trackerout.TabPort
	state    trackerout.StateStore
	notifier notifyin.Notifier
	logger   *slog.Logger

	mu            sync.Mutex
	activeTab     domain.Tab
	lastResetDate string
}

func NewInteractor(
	clk clock.Clock,
	ledger timeLedger,
	machine activityMachine,
	blocker limitEvaluator,
	timer focusTimer,
	tabs trackerout.TabPort,
	state trackerout.StateStore,
	notifier notifyin.Notifier,
	logger *slog.Logger,
) *Interactor {
	return &Interactor{
		clk:      clk,
		ledger:   ledger,
		machine:  machine,
		blocker:  blocker,
		timer:    timer,
		tabs:     tabs,
		state:    state,
		notifier: notifier,
		logger:   logger,
	}
}

// OnTabActivated handles the active tab switching to a new tab.
func (i *Interactor) OnTabActivated(ctx context.Context, tabID int, rawURL string) error {
	return i.switchTo(ctx, tabID, rawURL, "tab.activated")
}

// OnTabUpdated handles the active tab navigating to a new URL.
func (i *Interactor) OnTabUpdated(ctx context.Context, tabID int, rawURL string) error {
	i.blocker.EndRedirect(tabID)
	return i.switchTo(ctx, tabID, rawURL, "tab.updated")
}

func (i *Interactor) switchTo(ctx context.Context, tabID int, rawURL, signal string) error {
	now := i.clk.Now()
	i.machine.HandleActivity(ctx, signal)

	key, err := domainkey.Extract(rawURL)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotTrackable) {
			return fmt.Errorf("extract domain: %w", err)
		}
		// The interval on the previous site still counts.
		if flushErr := i.ledger.Flush(ctx, now); flushErr != nil {
			i.logger.Warn("flush before untrackable tab failed", "error", flushErr)
		}
		i.ledger.ClearSession()
		i.setActiveTab(domain.Tab{ID: tabID, URL: rawURL})
		return nil
	}

	if domainkey.IsInternal(key) {
		if flushErr := i.ledger.Flush(ctx, now); flushErr != nil {
			i.logger.Warn("flush before internal page failed", "error", flushErr)
		}
		i.ledger.ClearSession()
		i.setActiveTab(domain.Tab{ID: tabID, URL: rawURL})
		return nil
	}

	if err := i.ledger.StartTracking(ctx, key, now); err != nil {
		return fmt.Errorf("start tracking %s: %w", key, err)
	}
	// A background tab can change while the window is unfocused. The machine
	// ignored the signal above, so remember the domain but keep the meter
	// stopped; re-entering ACTIVE on focus regain resumes it.
	if !i.machine.Snapshot().WindowFocused {
		i.ledger.Pause("window unfocused")
	}
	i.setActiveTab(domain.Tab{ID: tabID, URL: rawURL})
	return i.enforceLimit(ctx, domain.Tab{ID: tabID, URL: rawURL}, key)
}

func (i *Interactor) setActiveTab(tab domain.Tab) {
	i.mu.Lock()
	i.activeTab = tab
	i.mu.Unlock()
}

// OnFocusChanged forwards a window focus signal.
func (i *Interactor) OnFocusChanged(ctx context.Context, focused bool) {
	i.machine.HandleFocusChanged(ctx, focused)
}

// OnUserActivity forwards a user activity signal.
func (i *Interactor) OnUserActivity(ctx context.Context, kind string) {
	i.machine.HandleActivity(ctx, kind)
}

// OnTick drives the periodic work that hangs off the activity check
// interval: timeout transitions, the day boundary, and a self-check that
// re-queries the active tab in case a signal was missed.
func (i *Interactor) OnTick(ctx context.Context) {
	i.machine.Tick(ctx)
	i.watchDayBoundary(ctx)
	i.reconcileActiveTab(ctx)
}

func (i *Interactor) watchDayBoundary(ctx context.Context) {
	today := ledgerdomain.DayKey(i.clk.Now())
	i.mu.Lock()
	last := i.lastResetDate
	if last == today {
		i.mu.Unlock()
		return
	}
	i.lastResetDate = today
	i.mu.Unlock()

	if last != "" {
		i.logger.Info("day rolled over", "from", last, "to", today)
	}
	if err := i.PersistState(ctx); err != nil {
		i.logger.Warn("persisting day boundary failed", "error", err)
	}
}

func (i *Interactor) reconcileActiveTab(ctx context.Context) {
	tab, err := i.tabs.QueryActiveTab(ctx)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNoListener) {
			i.logger.Debug("active tab query failed", "error", err)
		}
		return
	}
	i.mu.Lock()
	known := i.activeTab
	i.mu.Unlock()
	if tab.ID == known.ID && tab.URL == known.URL {
		return
	}
	i.logger.Debug("active tab drifted, resyncing", "tab", tab.ID)
	if err := i.switchTo(ctx, tab.ID, tab.URL, "self-check"); err != nil {
		i.logger.Warn("active tab resync failed", "error", err)
	}
}

// CheckActiveTab re-evaluates the tracked domain against its limit and
// redirects the tab when it crossed over mid-session.
func (i *Interactor) CheckActiveTab(ctx context.Context) {
	key, tracking := i.ledger.TrackedDomain()
	if !tracking || key == "" {
		return
	}
	i.mu.Lock()
	tab := i.activeTab
	i.mu.Unlock()
	if err := i.enforceLimit(ctx, tab, key); err != nil {
		i.logger.Warn("limit enforcement failed", "domain", key, "error", err)
	}
}

func (i *Interactor) enforceLimit(ctx context.Context, tab domain.Tab, key string) error {
	decision, err := i.blocker.Evaluate(ctx, key)
	if err != nil {
		return err
	}
	if !decision.Blocked {
		return nil
	}
	if !i.blocker.BeginRedirect(tab.ID) {
		return nil
	}
	// Commit what ran up to the block, then stop the meter.
	now := i.clk.Now()
	if err := i.ledger.Flush(ctx, now); err != nil {
		i.logger.Warn("flush at block failed", "domain", key, "error", err)
	}
	i.ledger.ClearSession()

	i.notifier.Blocked(ctx, key, decision.TodaySeconds, decision.LimitMinutes)
	target := blockingdomain.BlockedPageURL(key, decision.TodaySeconds, decision.LimitMinutes, tab.URL)
	if err := i.tabs.Navigate(ctx, tab.ID, target); err != nil {
		if errors.Is(err, apperrors.ErrNoListener) {
			return nil
		}
		return fmt.Errorf("navigate blocked tab: %w", err)
	}
	i.logger.Info("tab blocked", "domain", key, "tab", tab.ID)
	return nil
}

// Status assembles the combined daemon status.
func (i *Interactor) Status(ctx context.Context) dto.StatusOutput {
	snap := i.machine.Snapshot()
	key, tracking := i.ledger.TrackedDomain()
	out := dto.StatusOutput{
		State:         string(snap.State),
		WindowFocused: snap.WindowFocused,
		Tracking:      tracking,
		Timer:         i.timer.Status(ctx),
	}
	if key != "" {
		out.TrackedDomain = key
		seconds, limit, err := i.ledger.TodayUsage(ctx, key, i.clk.Now())
		if err != nil {
			i.logger.Warn("today usage lookup failed", "domain", key, "error", err)
		} else {
			out.TodaySeconds = seconds
			out.LimitMinutes = limit
		}
	}
	return out
}

// RestoreState loads the persisted snapshot into the machine and the timer.
func (i *Interactor) RestoreState(ctx context.Context) error {
	state, err := i.state.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	if state.Activity.State.Valid() {
		i.machine.Restore(state.Activity)
	}
	i.timer.RestoreCompleted(state.CompletedFocus)
	i.mu.Lock()
	i.lastResetDate = state.LastResetDate
	i.mu.Unlock()
	return nil
}

// PersistState writes the restart-surviving state.
func (i *Interactor) PersistState(ctx context.Context) error {
	i.mu.Lock()
	lastReset := i.lastResetDate
	i.mu.Unlock()
	state := domain.PersistedState{
		Activity:       i.machine.Snapshot(),
		LastResetDate:  lastReset,
		CompletedFocus: i.timer.CompletedFocus(),
	}
	if err := i.state.Save(ctx, state); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}
