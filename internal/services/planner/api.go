package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studysched/internal/eventbus"
	"studysched/internal/plans"
	"studysched/internal/schedules"
	"studysched/internal/storage"
	"studysched/internal/validate"
)

// Timeline builds (without persisting) the participant's scheduled
// activities: stored events + stored plans -> context -> strategy
// resolution -> expansion. An unresolvable input (no events, no matching
// schedule) produces an empty result, not an error.
func (s *Service) Timeline(ctx context.Context, req Request) ([]*schedules.ScheduledActivity, error) {
	if s.store == nil {
		return nil, storage.ErrDisabled
	}
	events, err := s.store.Events(ctx, req.HealthCode)
	if err != nil {
		return nil, fmt.Errorf("planner: loading events: %w", err)
	}
	planList, err := s.store.Plans(ctx, req.StudyID)
	if err != nil {
		return nil, fmt.Errorf("planner: loading plans: %w", err)
	}

	sctx := s.buildContext(req, events)

	var out []*schedules.ScheduledActivity
	for _, p := range planList {
		if p.Strategy == nil {
			continue
		}
		sch, crit := p.Strategy.Resolve(p, sctx)
		if sch == nil {
			continue
		}
		acts, err := schedules.SchedulerFor(sch).Expand(p.GUID, sctx)
		if err != nil {
			// A malformed trigger survived authoring validation; this is a
			// fatal plan misconfiguration, not a per-participant condition.
			return nil, fmt.Errorf("planner: plan %s: %w", p.GUID, err)
		}
		if crit != nil {
			// Matched rule bounds travel with the instance so clients can
			// re-check admission without the plan.
			for _, a := range acts {
				a.MinAppVersion = crit.MinAppVersion
				a.MaxAppVersion = crit.MaxAppVersion
			}
		}
		out = append(out, acts...)
	}
	return out, nil
}

// Rebuild builds the timeline and persists it, rate-limited.
func (s *Service) Rebuild(ctx context.Context, req Request) ([]*schedules.ScheduledActivity, error) {
	acts, err := s.Timeline(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(acts) > 0 {
		if err := s.limiterWait(ctx); err != nil {
			return nil, err
		}
		if err := s.store.SaveActivities(ctx, acts); err != nil {
			return nil, fmt.Errorf("planner: saving activities: %w", err)
		}
	}
	s.publish(eventbus.TypeTimelineBuilt, map[string]any{
		"studyId":    req.StudyID,
		"healthCode": req.HealthCode,
		"activities": len(acts),
	})
	return acts, nil
}

// Enqueue schedules an asynchronous rebuild on the worker pool.
func (s *Service) Enqueue(req Request) {
	s.enqueue(job{req: req, enqueued: time.Now()})
}

// RecordEvent persists a participant event, announces it, and queues a
// rebuild. Recording an "activity:<guid>:finished" event is what drives the
// persistent-schedule rescheduling loop.
func (s *Service) RecordEvent(ctx context.Context, req Request, eventID string, ts time.Time) error {
	if s.store == nil {
		return storage.ErrDisabled
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	if err := s.store.RecordEvent(ctx, req.HealthCode, eventID, ts); err != nil {
		return fmt.Errorf("planner: recording event %q: %w", eventID, err)
	}
	s.publish(eventbus.TypeParticipantEvent, map[string]any{
		"healthCode": req.HealthCode,
		"eventId":    eventID,
		"timestamp":  ts.UnixMilli(),
	})
	s.Enqueue(req)
	return nil
}

// Enroll records the enrollment event, the anchor every schedule defaults to.
func (s *Service) Enroll(ctx context.Context, req Request, at time.Time) error {
	return s.RecordEvent(ctx, req, schedules.EventEnrollment, at)
}

// MarkStarted stamps startedOn on a stored activity.
func (s *Service) MarkStarted(ctx context.Context, healthCode, guid string, at time.Time) error {
	if s.store == nil {
		return storage.ErrDisabled
	}
	if at.IsZero() {
		at = time.Now()
	}
	return s.store.UpdateActivity(ctx, healthCode, guid, at.UnixMilli(), 0)
}

// MarkFinished stamps finishedOn and records the activity's finished event,
// which re-triggers persistent schedules for that activity.
func (s *Service) MarkFinished(ctx context.Context, req Request, guid string, at time.Time) error {
	if s.store == nil {
		return storage.ErrDisabled
	}
	if at.IsZero() {
		at = time.Now()
	}
	if err := s.store.UpdateActivity(ctx, req.HealthCode, guid, 0, at.UnixMilli()); err != nil {
		return err
	}
	activityGUID := guid
	if i := strings.IndexByte(guid, ':'); i >= 0 {
		activityGUID = guid[:i]
	}
	return s.RecordEvent(ctx, req, schedules.ActivityFinishedEvent(activityGUID), at)
}

// Activities returns the participant's stored timeline.
func (s *Service) Activities(ctx context.Context, healthCode string) ([]*schedules.ScheduledActivity, error) {
	if s.store == nil {
		return nil, storage.ErrDisabled
	}
	return s.store.Activities(ctx, healthCode)
}

// SavePlan validates the plan against the study's declared data groups and
// persists it. Validation problems come back as a field-path-scoped list.
func (s *Service) SavePlan(ctx context.Context, p *plans.SchedulePlan, availableGroups []string) ([]validate.FieldError, error) {
	if s.store == nil {
		return nil, storage.ErrDisabled
	}
	errs := p.Validate(availableGroups)
	if !errs.Empty() {
		return errs.List(), nil
	}
	if err := s.store.SavePlan(ctx, p); err != nil {
		return nil, fmt.Errorf("planner: saving plan %s: %w", p.GUID, err)
	}
	s.publish(eventbus.TypePlanSaved, map[string]any{
		"studyId": p.StudyID,
		"guid":    p.GUID,
	})
	return nil, nil
}

func (s *Service) buildContext(req Request, events map[string]time.Time) *schedules.ScheduleContext {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	zone := req.Zone
	if zone == nil {
		zone = s.defaultZone(cfg)
	}
	now := time.Now().In(zone)

	endsOn := req.EndsOn
	if endsOn.IsZero() {
		horizon := cfg.Horizon
		if horizon <= 0 {
			horizon = 4 * 24 * time.Hour
		}
		endsOn = now.Add(horizon)
	}
	minimum := req.Minimum
	if minimum == 0 {
		minimum = cfg.MinimumPerSchedule
	}

	return schedules.NewContextBuilder(req.StudyID).
		WithHealthCode(req.HealthCode).
		WithClient(req.Client).
		WithZone(zone).
		WithNow(now).
		WithEndsOn(endsOn).
		WithEvents(events).
		WithDataGroups(req.DataGroups).
		WithMinimumPerSchedule(minimum).
		Build()
}

func (s *Service) defaultZone(cfg Config) *time.Location {
	tz := cfg.Timezone
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid planner timezone, falling back to UTC")
		return time.UTC
	}
	return loc
}
