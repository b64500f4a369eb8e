// Package app wires the bot together: config, logging, storage, the
// engagement core, the Telegram transport and the timed jobs.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"promobot/internal/broadcast"
	"promobot/internal/config"
	"promobot/internal/engage"
	"promobot/internal/scheduler"
	"promobot/internal/storage"
	"promobot/internal/transport/telegram"
	logx "promobot/pkg/logx"
)

type App struct {
	cfgm   *config.Manager
	logsvc *logx.Service
	log    logx.Logger

	store   storage.Store
	limiter *engage.Limiter
	sched   *scheduler.Service
	adapter *telegram.Adapter
	bridge  *telegram.Bridge

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New loads the config and builds every component. Any failure here is
// fatal: the process must not serve events against a store or transport it
// could not initialize.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logsvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	busyTimeout, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logsvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	window, _ := config.ParseDurationOrDefault("limits.window", cfg.Limits.Window, engage.DefaultWindow)
	limiter := engage.NewLimiter(store, engage.LimiterConfig{
		Ceiling: cfg.Limits.Ceiling,
		Window:  window,
	}, log.With(logx.String("comp", "limiter")))

	selector := engage.NewSelector(cfg.Telegram.ContactHandle, rand.New(rand.NewSource(time.Now().UnixNano())))
	dispatcher := engage.NewDispatcher(store, limiter, selector, cfg.Telegram.AdminID,
		log.With(logx.String("comp", "dispatch")))

	pollTimeout, _ := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		_ = logsvc.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}
	bridge := telegram.NewBridge(adapter, dispatcher, log.With(logx.String("comp", "bridge")))

	sched, err := scheduler.New(scheduler.Config{Timezone: cfg.Broadcast.Timezone},
		log.With(logx.String("comp", "scheduler")))
	if err != nil {
		_ = store.Close()
		_ = logsvc.Close()
		return nil, err
	}

	resetEvery, _ := config.ParseDurationOrDefault("limits.reset_every", cfg.Limits.ResetEvery, time.Minute)
	if err := sched.AddInterval("ratelimit.reset", resetEvery, limiter.ResetAll); err != nil {
		_ = store.Close()
		_ = logsvc.Close()
		return nil, err
	}

	promo := broadcast.New(store, adapter, selector, broadcast.Config{
		Name:       cfg.Broadcast.Name,
		RatePerSec: cfg.Broadcast.RatePerSec,
	}, log.With(logx.String("comp", "broadcast")))
	dailyAt := cfg.Broadcast.DailyAt
	if dailyAt == "" {
		dailyAt = "12:00"
	}
	if err := sched.AddDaily("broadcast.daily", dailyAt, promo.Run); err != nil {
		_ = store.Close()
		_ = logsvc.Close()
		return nil, err
	}

	return &App{
		cfgm:    cfgm,
		logsvc:  logsvc,
		log:     log,
		store:   store,
		limiter: limiter,
		sched:   sched,
		adapter: adapter,
		bridge:  bridge,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.sched.Start(runCtx); err != nil {
		cancel()
		a.cancel = nil
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.bridge.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("update loop exited", logx.Err(err))
		}
	}()

	// Config hot reload: logging and limiter knobs apply without restart.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	sub := a.cfgm.Subscribe(2)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok || cfg == nil {
					return
				}
				a.applyReload(cfg)
			}
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("bot started")
	return nil
}

func (a *App) applyReload(cfg *config.Config) {
	a.logsvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	window, _ := config.ParseDurationOrDefault("limits.window", cfg.Limits.Window, engage.DefaultWindow)
	a.limiter.Apply(engage.LimiterConfig{Ceiling: cfg.Limits.Ceiling, Window: window})
	a.log.Info("runtime config applied")
}

func (a *App) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.runMu.Unlock()
	if cancel == nil {
		return nil
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()

	a.sched.Stop(ctx)
	_ = a.adapter.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	err := a.store.Close()
	a.log.Info("bot stopped")
	_ = a.logsvc.Close()
	return err
}
