package planner

import (
	"context"
	"runtime/debug"
	"time"

	"golang.org/x/time/rate"

	"studysched/internal/eventbus"
	"studysched/internal/storage"
	logx "studysched/pkg/logx"
)

func New(cfg Config, store storage.Store, bus eventbus.Bus, log logx.Logger) *Service {
	s := &Service{
		cfg:   cfg,
		store: store,
		bus:   bus,
		log:   log,
	}
	s.applyLimiterLocked(cfg)
	return s
}

// Enabled reports the current config flag. (Thread-safe; Apply may run concurrently.)
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply swaps runtime-tunable settings. Worker count changes take effect on
// the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.applyLimiterLocked(cfg)
}

func (s *Service) applyLimiterLocked(cfg Config) {
	if cfg.PersistPerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.PersistPerSec), cfg.PersistPerSec)
	} else {
		s.limiter = nil
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	queueSize := s.cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	// Fresh queue per run so a stop/start toggle doesn't execute stale jobs.
	s.queue = make(chan job, queueSize)

	stopCh := s.stopCh
	queue := s.queue

	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in planner worker",
						logx.Int("worker", idx),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			s.worker(ctx, stopCh, queue, idx)
		}()
	}
	s.log.Info("planner started", logx.Int("workers", workers), logx.Int("queue_cap", queueSize))
}

func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	s.stopCh = nil
	s.queue = nil
	s.mu.Unlock()

	close(stopCh)

	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("planner stopped", logx.Duration("took", time.Since(start)))
	case <-ctx.Done():
		// workers finish in background
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{Enabled: s.cfg.Enabled, Workers: s.cfg.Workers}
	if s.queue != nil {
		snap.QueueLen = len(s.queue)
	}
	s.mu.Unlock()

	s.hmu.Lock()
	snap.History = append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return snap
}

func (s *Service) publish(typ string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

func (s *Service) limiterWait(ctx context.Context) error {
	s.mu.Lock()
	lim := s.limiter
	s.mu.Unlock()
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}

func (s *Service) recordHistory(item HistoryItem) {
	// cfg is guarded by mu, not hmu; Apply may swap it mid-rebuild.
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()
	if size <= 0 {
		size = 200
	}

	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, item)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
}
