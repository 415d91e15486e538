// Package app wires configuration, logging, storage, the event bus, and the
// planner into one runnable daemon.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"studysched/internal/config"
	"studysched/internal/eventbus"
	"studysched/internal/plans"
	"studysched/internal/services/planner"
	"studysched/internal/storage"
	"studysched/internal/validate"
	logx "studysched/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.ConfigManager

	logs *logx.Service
	log  logx.Logger

	store   storage.Store
	bus     eventbus.Bus
	planner *planner.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
	cfgSub chan *config.Config
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logxConfig(cfg.Logging))
	log = log.With(logx.String("comp", "app"))

	store, err := openStorage(cfg, logSvc.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	pcfg, err := plannerConfig(cfg.Planner)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		logSvc.Close()
		return nil, err
	}

	bus := eventbus.New()
	pl := planner.New(pcfg, store, bus, logSvc.Logger().With(logx.String("comp", "planner")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		logs:    logSvc,
		log:     log,
		store:   store,
		bus:     bus,
		planner: pl,
	}, nil
}

// Planner exposes the timeline engine for embedding callers.
func (a *App) Planner() *planner.Service { return a.planner }

// Bus exposes the in-process event bus.
func (a *App) Bus() eventbus.Bus { return a.bus }

// SavePlan validates the plan against the study's declared data groups from
// config and persists it.
func (a *App) SavePlan(ctx context.Context, p *plans.SchedulePlan) ([]validate.FieldError, error) {
	var groups []string
	if cfg := a.cfgm.Get(); cfg != nil {
		if st, ok := cfg.Study(p.StudyID); ok {
			groups = st.DataGroups
		}
	}
	return a.planner.SavePlan(ctx, p, groups)
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	if a.planner.Enabled() {
		a.planner.Start(runCtx)
	}

	a.cfgSub = a.cfgm.Subscribe(4)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.reloadLoop(runCtx)
	}()
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch exited", logx.Err(err))
		}
	}()

	a.log.Info("started",
		logx.String("config", a.cfgPath),
		logx.Bool("storage", a.store != nil),
		logx.Bool("planner", a.planner.Enabled()))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.planner.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	a.cfgm.Unsubscribe(a.cfgSub)
	a.cfgSub = nil

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	a.log.Info("stopped")
	a.logs.Close()
	return nil
}

func (a *App) reloadLoop(ctx context.Context) {
	var last *config.Config
	if a.cfgm != nil {
		last = a.cfgm.Get()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-a.cfgSub:
			if !ok || cfg == nil {
				return
			}
			a.applyConfig(last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	changed, attrs, changedStudies := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(changed) == 0 {
		return
	}
	a.log.Info("config reloaded",
		append([]logx.Field{logx.Any("sections", changed)}, attrs...)...)

	for _, section := range changed {
		switch section {
		case "logging":
			a.logs.Apply(logxConfig(newCfg.Logging))
		case "planner":
			pcfg, err := plannerConfig(newCfg.Planner)
			if err != nil {
				// validator should have rejected this; keep running on the old settings
				a.log.Warn("planner config not applied", logx.Err(err))
				continue
			}
			a.planner.Apply(pcfg)
		case "storage":
			a.log.Warn("storage config changed; restart required to take effect")
		case "studies":
			a.log.Info("study data groups changed",
				logx.Any("studies", changedStudies))
		}
	}
}

func validateConfig(cfg *config.Config) error {
	if cfg.Planner.Workers < 0 {
		return fmt.Errorf("planner.workers must be >= 0")
	}
	if cfg.Planner.PersistPerSec < 0 {
		return fmt.Errorf("planner.persist_per_sec must be >= 0")
	}
	if cfg.Planner.MinimumPerSchedule < 0 {
		return fmt.Errorf("planner.minimum_per_schedule must be >= 0")
	}
	if _, err := validate.Duration("planner.horizon", cfg.Planner.Horizon); err != nil {
		return err
	}
	if tz := strings.TrimSpace(cfg.Planner.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("planner.timezone: invalid %q: %w", tz, err)
		}
	}
	if cfg.Storage != nil {
		if _, err := validate.Duration("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	for i, st := range cfg.Studies {
		if strings.TrimSpace(st.ID) == "" {
			return fmt.Errorf("studies[%d].id is required", i)
		}
	}
	return nil
}

func logxConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
	}
}

func plannerConfig(c config.PlannerConfig) (planner.Config, error) {
	horizon, err := validate.DurationOrDefault("planner.horizon", c.Horizon, 96*time.Hour)
	if err != nil {
		return planner.Config{}, err
	}
	return planner.Config{
		Enabled:            c.Enabled,
		Workers:            c.Workers,
		QueueSize:          c.QueueSize,
		HistorySize:        c.HistorySize,
		PersistPerSec:      c.PersistPerSec,
		Horizon:            horizon,
		MinimumPerSchedule: c.MinimumPerSchedule,
		Timezone:           c.Timezone,
	}, nil
}

func openStorage(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	if cfg.Storage == nil {
		return nil, nil
	}
	busy, err := validate.Duration("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	return storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log)
}
