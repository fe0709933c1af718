// Package app wires the scheduler engine, its reporters and the operational
// surfaces (config reload, debug server, systemd) into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"vmsched/internal/cloud"
	"vmsched/internal/config"
	"vmsched/internal/metrics"
	"vmsched/internal/notify"
	"vmsched/internal/observability/debug"
	"vmsched/internal/region"
	"vmsched/internal/registry"
	rtsup "vmsched/internal/runtime/supervisor"
	"vmsched/internal/scheduler"
	"vmsched/internal/session"
	"vmsched/internal/storage"
	logx "vmsched/pkg/logx"
)

const bootstrapTimeout = 2 * time.Minute

// Options replaces the control-plane clients (tests). Zero values build the
// real IBM Cloud clients from config.
type Options struct {
	Resolver  cloud.EnvironmentResolver
	Inventory cloud.InventoryClient
	// Registry receives the collectors; nil creates one with the Go and
	// process collectors.
	Registry *prometheus.Registry
}

type App struct {
	cfgm     *config.ConfigManager
	cfg      *config.Config // as started; engine settings never change at runtime
	settings config.Settings
	loc      *time.Location

	log  logx.Logger
	logs *logx.Service

	sessions  *session.Store
	reg       *registry.Registry
	refresher *scheduler.Refresher
	sched     *scheduler.Scheduler

	prom  *prometheus.Registry
	store storage.Store
	tg    *notify.Telegram
	debug *debug.Service

	sup       *rtsup.Supervisor
	sd        *systemd
	startedAt time.Time
}

// New loads the config and builds every component. It performs no network I/O.
func New(cfgm *config.ConfigManager, opts Options) (*App, error) {
	cfg := cfgm.Get()
	if cfg == nil {
		var err error
		if cfg, err = cfgm.Load(); err != nil {
			return nil, err
		}
	}
	settings, err := config.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	loc, err := region.Location(cfg.IBMCloud.Region)
	if err != nil {
		return nil, err
	}

	var tg *notify.Telegram
	if tc := cfg.Telegram; tc != nil {
		tg, err = notify.New(notify.Config{
			Token:      tc.Token,
			ChatID:     tc.ChatID,
			ThreadID:   tc.ThreadID,
			Outcomes:   tc.Notify,
			RatePerSec: tc.RatePerSec,
			Timeout:    settings.TelegramTimeout,
		}, logx.Nop())
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
	}

	var sender logx.Sender
	if tg != nil {
		sender = tg
	}
	logs, root := logx.New(mapLogging(cfg.Logging), sender)
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	a := &App{
		cfgm:     cfgm,
		cfg:      cfg,
		settings: settings,
		loc:      loc,
		log:      log,
		logs:     logs,
		reg:      registry.New(),
		prom:     opts.Registry,
		tg:       tg,
		sd:       newSystemd(log),
	}
	if tg != nil {
		// The chat sink uses tg, so tg can only log once root exists.
		tg.SetLogger(root)
	}

	resolver, inventory := opts.Resolver, opts.Inventory
	if resolver == nil || inventory == nil {
		r, inv, err := buildCloud(cfg, settings, root)
		if err != nil {
			_ = logs.Close()
			return nil, err
		}
		if resolver == nil {
			resolver = r
		}
		if inventory == nil {
			inventory = inv
		}
	}
	a.sessions = session.New(resolver, root.With(logx.String("comp", "session")))

	if a.prom == nil {
		a.prom = prometheus.NewRegistry()
		a.prom.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	collector, err := metrics.New(a.prom)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	reporters := scheduler.Reporters{collector}

	if sc := cfg.Storage; sc != nil {
		st, err := storage.Open(storage.Config{Driver: sc.Driver, Path: sc.Path, BusyTimeout: settings.BusyTimeout}, root.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logs.Close()
			return nil, fmt.Errorf("storage: %w", err)
		}
		if st != nil {
			a.store = st
			reporters = append(reporters, storage.NewAuditor(st, root))
			log.Info("action audit enabled", logx.String("driver", sc.Driver))
		}
	}
	if a.tg != nil {
		reporters = append(reporters, a.tg)
	}

	a.refresher = scheduler.NewRefresher(scheduler.RefresherOptions{
		Inventory:        inventory,
		Sessions:         a.sessions,
		Registry:         a.reg,
		Interval:         settings.RefreshInterval,
		RehydrateBackoff: settings.RehydrateBackoff,
		Reporter:         reporters,
		Log:              root,
	})
	a.sched, err = scheduler.New(scheduler.Options{
		Inventory:  inventory,
		Sessions:   a.sessions,
		Registry:   a.reg,
		Location:   loc,
		Resolution: settings.Resolution,
		Reporter:   reporters,
		Log:        root,
	})
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.debug = debug.New(mapDebug(cfg.Debug, settings), debug.Probes{
		Ready:    a.Ready,
		Status:   func(ctx context.Context) any { return a.Status(ctx) },
		Gatherer: a.prom,
	}, root)
	return a, nil
}

// Start bootstraps the first session and launches the workers. A bootstrap
// failure is returned; the process should exit.
func (a *App) Start(ctx context.Context) error {
	a.startedAt = time.Now()
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log.With(logx.String("comp", "supervisor"))))

	a.log.Info("starting",
		logx.String("region", a.cfg.IBMCloud.Region),
		logx.String("site", a.cfg.IBMCloud.Site),
		logx.String("tz", a.loc.String()),
		logx.Int("resolution", a.settings.Resolution),
		logx.Duration("refresh_interval", a.settings.RefreshInterval),
		logx.Secret("api_key"),
	)

	bctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	_, err := a.sessions.Refresh(bctx)
	cancel()
	if err != nil {
		a.sup.Cancel()
		return fmt.Errorf("initial bootstrap: %w", err)
	}

	a.cfgm.SetValidator(func(_ context.Context, next *config.Config) error {
		return config.CheckReload(a.cfg, next)
	})

	a.sup.GoRestart("refresher", a.refresher.Run)
	a.sup.GoRestart("scheduler", a.sched.Run)
	if a.tg != nil {
		a.sup.GoRestart("notify.telegram", a.tg.Run)
	}
	a.sup.GoRestart("config.watch", a.cfgm.Watch)
	a.sup.Go("config.apply", a.applyLoop)
	if a.sd.watchdogInterval() > 0 {
		a.sup.Go("systemd.watchdog", a.sd.watchdog)
	}
	a.debug.Reconfigure(a.sup.Context(), mapDebug(a.cfg.Debug, a.settings))

	a.sd.ready()
	a.log.Info("started")
	return nil
}

// Done is closed when the workers' context ends.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal worker error, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Stop cancels both workers and waits for them, then releases resources.
func (a *App) Stop(ctx context.Context) error {
	start := time.Now()
	a.sd.stopping()
	a.log.Info("stop requested")

	var errs []error
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	a.debug.Stop(ctx)
	a.log.Info("stopped", logx.Duration("took", time.Since(start)))
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.logs.Close())
	return errors.Join(errs...)
}

// Ready reports whether a session exists and the registry has been
// published at least once.
func (a *App) Ready() error {
	if a.sessions.Info().Generation == 0 {
		return errors.New("no session")
	}
	if a.reg.Info().Version == 0 {
		return errors.New("registry not yet published")
	}
	return nil
}

// applyLoop applies hot-reloaded logging and debug settings.
func (a *App) applyLoop(ctx context.Context) error {
	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfg
	for {
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-sub:
			if !ok {
				return nil
			}
			sections, attrs := config.SummarizeConfigChange(last, next)
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}
			a.log.Info("applying config change", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
			a.logs.Apply(mapLogging(next.Logging))
			if s, err := config.Resolve(next); err == nil {
				a.debug.Reconfigure(ctx, mapDebug(next.Debug, s))
			}
			last = next
		}
	}
}
