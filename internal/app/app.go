package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hwbot/internal/config"
	"hwbot/internal/homework"
	"hwbot/internal/metrics"
	"hwbot/internal/notifier"
	"hwbot/internal/poller"
	"hwbot/internal/runtime/supervisor"
	"hwbot/internal/storage"
	telegram "hwbot/internal/transport/telegram/adapter"
	logx "hwbot/pkg/logx"
	"hwbot/pkg/systemd"
)

// Options tune how the app is assembled. The zero value is production.
type Options struct {
	ConfigPath string
	// LookupEnv replaces os.LookupEnv for credentials.
	LookupEnv func(string) (string, bool)
	// MaxIterations stops the poll loop after that many iterations (0 = forever).
	MaxIterations int
}

type App struct {
	cfgm  *config.Manager
	creds config.Credentials

	log  logx.Logger
	logs *logx.Service
	sd   *systemd.Notifier

	store      storage.Store
	metrics    *metrics.Metrics
	metricsSrv *metrics.Server
	notif      *notifier.Service
	loop       *poller.Loop

	sup *supervisor.Supervisor
}

// New loads configuration and credentials and wires every component.
// Any failure here is a ConfigurationError: the poll loop never starts.
func New(ctx context.Context, opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath)
	cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := poller.ParseSchedule(cfg.Poll.Interval); err != nil {
			return fmt.Errorf("poll.interval: %w", err)
		}
		return nil
	})
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, homework.ConfigurationError("load config", err)
	}

	creds, err := config.CredentialsFromEnv(opts.LookupEnv)
	if err != nil {
		return nil, err
	}

	logs, root := logx.New(cfg.Logging.LogConfig())
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	ad, err := telegram.New(mapTelegramConfig(cfg, creds), root.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = logs.Close()
		return nil, homework.ConfigurationError("telegram client", err)
	}

	var store storage.Store
	if sc, ok := mapStorageConfig(cfg); ok {
		store, err = storage.Open(sc, root.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logs.Close()
			return nil, homework.ConfigurationError("open storage", err)
		}
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	a := &App{
		cfgm:  cfgm,
		creds: creds,
		log:   log,
		logs:  logs,
		sd:    systemd.New(root.With(logx.String("comp", "systemd"))),
		store: store,
	}

	var notifOpts []notifier.Option
	var loopOpts []poller.Option
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
		a.metricsSrv = metrics.NewServer(metrics.ServerConfig{
			Addr:   cfg.Metrics.Addr,
			Health: a.health,
			Pprof:  cfg.Metrics.Pprof,
		}, a.metrics, root.With(logx.String("comp", "metrics")))
		notifOpts = append(notifOpts, notifier.WithRecorder(a.metrics))
		loopOpts = append(loopOpts, poller.WithRecorder(a.metrics))
	}
	if store != nil {
		loopOpts = append(loopOpts, poller.WithStore(store))
	}
	loopOpts = append(loopOpts, poller.WithHeartbeat(a.sd.Watchdog))

	a.notif = notifier.New(mapNotifierConfig(cfg, creds), ad, root.With(logx.String("comp", "notifier")), notifOpts...)

	sched, err := poller.ParseSchedule(cfg.Poll.Interval)
	if err != nil {
		// already checked by the config validator
		_ = a.close()
		return nil, homework.ConfigurationError("poll.interval", err)
	}
	a.checkWatchdog(sched, time.Now())
	a.loop = poller.New(poller.Config{
		Schedule:         sched,
		InitialTimestamp: cfg.Poll.InitialTimestamp,
		MaxIterations:    opts.MaxIterations,
	}, homework.NewFetcher(mapFetcherConfig(cfg, creds)), a.notif, root.With(logx.String("comp", "poller")), loopOpts...)

	return a, nil
}

// checkWatchdog warns when systemd would kill the unit between two polls,
// since the watchdog is only petted after each iteration.
func (a *App) checkWatchdog(s poller.Schedule, now time.Time) {
	wd, ok := a.sd.WatchdogInterval()
	if !ok {
		return
	}
	if gap := pollGap(s, now); gap >= wd {
		a.log.Warn("poll interval exceeds systemd WatchdogSec",
			logx.Duration("interval", gap),
			logx.Duration("watchdog", wd),
		)
	}
}

// pollGap returns the longest wait between polls. Cron schedules are
// sampled over their next few ticks.
func pollGap(s poller.Schedule, from time.Time) time.Duration {
	if d, ok := s.Interval(); ok {
		return d
	}
	var gap time.Duration
	t := s.Next(from)
	for i := 0; i < 8; i++ {
		n := s.Next(t)
		if d := n.Sub(t); d > gap {
			gap = d
		}
		t = n
	}
	return gap
}

func (a *App) Logger() logx.Logger { return a.log }

// Loop exposes the poll loop (state inspection in tests and health checks).
func (a *App) Loop() *poller.Loop { return a.loop }

func (a *App) health() error {
	if p := a.loop.Phase(); p != poller.PhaseRunning {
		return fmt.Errorf("poll loop is %s", p)
	}
	return nil
}

// Run starts every component and blocks until ctx is canceled or the poll
// loop finishes its iteration budget. Resources are released before it returns.
func (a *App) Run(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	sup := a.sup

	if a.metrics != nil {
		a.metrics.GaugeFunc("goroutines_supervised", "Goroutines running under the app supervisor.",
			func() float64 { return float64(sup.Active()) })
		a.metrics.GaugeFunc("poll_since_timestamp_seconds", "from_date used by the next poll.",
			func() float64 { return float64(a.loop.State().LastTimestamp) })
		sup.GoRestart("metrics.serve", a.metricsSrv.Run,
			supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	}

	sub := a.cfgm.Subscribe(4)
	sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	sup.Go("config.watch", a.cfgm.Watch)

	sup.Go("poller", func(c context.Context) error {
		defer sup.Cancel()
		return a.loop.Run(c)
	})

	a.sd.Ready()
	a.sd.Status("polling homework statuses")
	a.log.Info("app started",
		logx.String("chat", a.creds.Chat()),
		logx.String("config", a.cfgm.Path()),
	)

	err := sup.Wait(context.Background())
	a.sd.Stopping()
	a.log.Info("stopping")
	if cerr := a.close(); cerr != nil {
		a.log.Warn("close failed", logx.Err(cerr))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// reloadLoop applies the logging section of reloaded configs. Other sections
// take effect on the next start.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			changed, restart, attrs := config.SummarizeChange(last, cfg)
			last = cfg
			if len(changed) == 0 {
				continue
			}
			if a.logs.Config() != cfg.Logging.LogConfig() {
				a.logs.Apply(cfg.Logging.LogConfig())
			}
			fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
			a.log.Info("config change applied", fields...)
			if len(restart) > 0 {
				a.log.Warn("config change needs restart", logx.String("sections", strings.Join(restart, ",")))
			}
		}
	}
}

func (a *App) close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if a.logs != nil {
		if err := a.logs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("logs: %w", err))
		}
	}
	return errors.Join(errs...)
}
