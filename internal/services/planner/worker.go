package planner

import (
	"context"
	"time"

	logx "studysched/pkg/logx"
)

func (s *Service) enqueue(j job) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		s.log.Debug("planner not running; dropping rebuild",
			logx.String("health_code", j.req.HealthCode))
		return
	}
	select {
	case q <- j:
	default:
		s.log.Warn("planner queue full; dropping rebuild",
			logx.String("health_code", j.req.HealthCode),
			logx.Int("queue_len", len(q)), logx.Int("queue_cap", cap(q)))
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan job, idx int) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case j := <-queue:
			s.execOne(ctx, j)
		}
	}
}

func (s *Service) execOne(ctx context.Context, j job) {
	start := time.Now()
	acts, err := s.Rebuild(ctx, j.req)

	item := HistoryItem{
		StudyID:    j.req.StudyID,
		HealthCode: j.req.HealthCode,
		Started:    start,
		Duration:   time.Since(start),
		Activities: len(acts),
	}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("timeline rebuild failed",
			logx.String("study", j.req.StudyID),
			logx.String("health_code", j.req.HealthCode),
			logx.Err(err))
	} else {
		s.log.Debug("timeline rebuilt",
			logx.String("study", j.req.StudyID),
			logx.String("health_code", j.req.HealthCode),
			logx.Int("activities", len(acts)),
			logx.Duration("dur", item.Duration))
	}
	s.recordHistory(item)
}
