package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"prostop/internal/gateway"
	activitydomain "prostop/internal/modules/activity/domain"
	activityservice "prostop/internal/modules/activity/service"
	blockingservice "prostop/internal/modules/blocking/service"
	ledgeroutadapter "prostop/internal/modules/ledger/adapter/out"
	ledgerdomain "prostop/internal/modules/ledger/domain"
	ledgerservice "prostop/internal/modules/ledger/service"
	notifyoutadapter "prostop/internal/modules/notify/adapter/out"
	notifyservice "prostop/internal/modules/notify/service"
	pomodoroservice "prostop/internal/modules/pomodoro/service"
	settingsoutadapter "prostop/internal/modules/settings/adapter/out"
	settingsout "prostop/internal/modules/settings/port/out"
	trackeroutadapter "prostop/internal/modules/tracker/adapter/out"
	trackerusecase "prostop/internal/modules/tracker/usecase"
	"prostop/internal/platform/clock"
	"prostop/internal/platform/config"
	"prostop/internal/platform/id"
)

const (
	flushInterval     = 30 * time.Second
	pomodoroInterval  = time.Second
	blockingInterval  = 5 * time.Second
	reapInterval      = time.Minute
	retentionInterval = 24 * time.Hour
	persistInterval   = 30 * time.Second

	shutdownTimeout = 5 * time.Second
)

// App holds the wired services. The CLI reaches the domain through these;
// the browser reaches it through the gateway.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Ledger    *ledgerservice.Ledger
	Evaluator *blockingservice.Evaluator
	Timer     *pomodoroservice.Timer
	Tracker   *trackerusecase.Interactor
	Gateway   *gateway.Server
	Settings  settingsout.Store

	clk         clock.Clock
	activityCfg activitydomain.Config
	closers     []io.Closer
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	clk := clock.SystemClock{}

	settingsStore := settingsoutadapter.NewYAMLSettingsStore(cfg.SettingsPath)
	dispatcher := notifyservice.NewDispatcher(clk, settingsStore, logger)
	dispatcher.Register(notifyoutadapter.NewSlogSink(logger), false)
	if cfg.NotifyPluginPath != "" {
		dispatcher.Register(notifyoutadapter.NewPluginSink(cfg.NotifyPluginPath), true)
	}

	websiteStore := ledgeroutadapter.NewFileWebsiteStore(cfg.WebsitesPath)
	projector, err := ledgeroutadapter.NewSQLiteUsageProjector(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("new usage projector: %w", err)
	}
	ledger := ledgerservice.NewLedger(clk, ledgerdomain.DefaultConfig(), websiteStore, projector, logger)

	activityCfg := activitydomain.DefaultConfig()
	machine := activityservice.NewMachine(clk, activityCfg, trackerusecase.NewSessionBridge(ledger), dispatcher, logger)

	blockingEnabled := func(ctx context.Context) bool {
		settings, err := settingsStore.Load(ctx)
		if err != nil {
			return true
		}
		return settings.BlockingEnabled
	}
	evaluator := blockingservice.NewEvaluator(clk, ledger, blockingEnabled, logger)

	timer := pomodoroservice.NewTimer(clk, settingsStore, dispatcher, logger)

	// The gateway is both the tab port the tracker drives and the dispatch
	// target for inbound frames, so it is wired in two steps.
	gw := gateway.NewDetachedServer(clk, id.UUID{}, logger)
	stateStore := trackeroutadapter.NewFileStateStore(cfg.StatePath)
	tracker := trackerusecase.NewInteractor(clk, ledger, machine, evaluator, timer, gw, stateStore, dispatcher, logger)
	gw.Attach(tracker, timer, evaluator)
	gw.SetHealth(func(ctx context.Context) (int, error) {
		sites, err := ledger.Sites(ctx)
		if err != nil {
			return 0, err
		}
		return len(sites), nil
	})
	dispatcher.Register(gw, false)

	app := &App{
		Config:      cfg,
		Logger:      logger,
		Ledger:      ledger,
		Evaluator:   evaluator,
		Timer:       timer,
		Tracker:     tracker,
		Gateway:     gw,
		Settings:    settingsStore,
		clk:         clk,
		activityCfg: activityCfg,
	}
	if closer, ok := projector.(io.Closer); ok {
		app.closers = append(app.closers, closer)
	}
	return app, nil
}

// Run serves the gateway and drives every periodic loop until ctx is done,
// then flushes and persists so nothing tracked is lost on shutdown.
func (a *App) Run(ctx context.Context) error {
	if err := a.Tracker.RestoreState(ctx); err != nil {
		a.Logger.Warn("state restore failed, starting fresh", "error", err)
	}
	if err := a.Ledger.CleanupRetention(ctx, a.clk.Now()); err != nil {
		a.Logger.Warn("startup retention cleanup failed", "error", err)
	}

	loopCtx, cancelLoops := context.WithCancel(ctx)
	defer cancelLoops()

	go a.loop(loopCtx, a.activityCfg.CheckInterval, func(ctx context.Context) {
		a.Tracker.OnTick(ctx)
	})
	go a.loop(loopCtx, flushInterval, func(ctx context.Context) {
		if err := a.Ledger.PeriodicUpdate(ctx, a.clk.Now()); err != nil {
			a.Logger.Warn("periodic flush failed", "error", err)
		}
	})
	go a.loop(loopCtx, pomodoroInterval, a.Timer.Tick)
	go a.loop(loopCtx, blockingInterval, a.Tracker.CheckActiveTab)
	go a.loop(loopCtx, reapInterval, func(context.Context) {
		a.Evaluator.Reap()
	})
	go a.loop(loopCtx, retentionInterval, func(ctx context.Context) {
		if err := a.Ledger.CleanupRetention(ctx, a.clk.Now()); err != nil {
			a.Logger.Warn("retention cleanup failed", "error", err)
		}
	})
	go a.loop(loopCtx, persistInterval, func(ctx context.Context) {
		if err := a.Tracker.PersistState(ctx); err != nil {
			a.Logger.Warn("state persist failed", "error", err)
		}
	})

	server := &http.Server{Addr: a.Config.ListenAddr, Handler: a.Gateway.Handler()}
	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info("gateway listening", "addr", a.Config.ListenAddr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	cancelLoops()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("gateway shutdown failed", "error", err)
	}

	if err := a.Ledger.Flush(shutdownCtx, a.clk.Now()); err != nil {
		a.Logger.Warn("final flush failed", "error", err)
	}
	if err := a.Tracker.PersistState(shutdownCtx); err != nil {
		a.Logger.Warn("final state persist failed", "error", err)
	}
	a.Logger.Info("daemon stopped")
	return nil
}

func (a *App) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// Close releases the persistent resources.
func (a *App) Close() error {
	var firstErr error
	for _, closer := range a.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
