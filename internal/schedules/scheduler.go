package schedules

import (
	"time"
)

// Scheduler expands one schedule into concrete activities for a context.
// Implementations are pure: no I/O, deterministic for a fixed now/event map.
type Scheduler interface {
	Expand(planGUID string, ctx *ScheduleContext) ([]*ScheduledActivity, error)
}

// SchedulerFor picks the expansion variant for a schedule: persistent type
// first, then cron when a trigger is present, otherwise interval.
func SchedulerFor(s *Schedule) Scheduler {
	switch {
	case s.IsPersistent():
		return persistentScheduler{sch: s}
	case s.CronTrigger != "":
		return cronScheduler{sch: s}
	default:
		return intervalScheduler{sch: s}
	}
}

// maxExpansions bounds a single expansion loop against misconfigured
// recurrences (e.g. a tiny interval with a distant horizon).
const maxExpansions = 10000

// expander carries the state shared by every scheduler variant: anchor
// resolution, wave emission, the window/expiration filter, the ONCE trim and
// the continuation test.
type expander struct {
	sch      *Schedule
	planGUID string
	ctx      *ScheduleContext
	out      []*ScheduledActivity
}

// anchor resolves the event the schedule hangs off, converted into the
// context zone with the schedule's delay applied. ok is false when the
// participant has no events at all or none of the candidates fired.
func (e *expander) anchor() (time.Time, bool) {
	if !e.ctx.HasEvents() {
		return time.Time{}, false
	}
	for _, id := range e.sch.EventIDs() {
		if ts, ok := e.ctx.Event(id); ok {
			ts = ts.In(e.ctx.Zone())
			if e.sch.Delay > 0 {
				ts = ts.Add(e.sch.Delay)
			}
			return ts, true
		}
	}
	return time.Time{}, false
}

// emitWave emits one scheduling wave at t: one instance per configured
// time-of-day, or a single instance at the anchor's own time when no times
// are listed. A ONCE schedule with no times is normalized via eventToMidnight
// so the lone activity is immediately visible at any zone offset.
func (e *expander) emitWave(t time.Time) {
	if len(e.sch.Times) == 0 {
		if e.sch.ScheduleType == ScheduleOnce {
			e.emitAt(eventToMidnight(t))
			return
		}
		e.emitAt(t)
		return
	}
	y, m, d := t.Date()
	for _, tod := range e.sch.Times {
		e.emitAt(time.Date(y, m, d, tod.Hour, tod.Minute, 0, 0, t.Location()))
	}
}

// emitAt instantiates every schedule activity at t, subject to the window
// and expiration filter.
func (e *expander) emitAt(t time.Time) {
	expiresOn, ok := e.admit(t)
	if !ok {
		return
	}
	for _, act := range e.sch.Activities {
		e.append(act, t, expiresOn)
	}
}

// emitOne is emitAt for a single activity (persistent schedules emit
// per-activity, not per-schedule).
func (e *expander) emitOne(act Activity, t time.Time) {
	expiresOn, ok := e.admit(t)
	if !ok {
		return
	}
	e.append(act, t, expiresOn)
}

// admit applies the [startsOn, endsOn] window (inclusive both ends) and
// refuses instances that would already be expired at generation time.
func (e *expander) admit(t time.Time) (expiresOn time.Time, ok bool) {
	if !e.sch.StartsOn.IsZero() && t.Before(e.sch.StartsOn) {
		return time.Time{}, false
	}
	if !e.sch.EndsOn.IsZero() && t.After(e.sch.EndsOn) {
		return time.Time{}, false
	}
	if e.sch.Expires > 0 {
		expiresOn = t.Add(e.sch.Expires)
		if expiresOn.Before(e.ctx.Now()) {
			return time.Time{}, false
		}
	}
	return expiresOn, true
}

func (e *expander) append(act Activity, t time.Time, expiresOn time.Time) {
	e.out = append(e.out, &ScheduledActivity{
		GUID:             act.GUID + ":" + t.Format(localStampLayout),
		HealthCode:       e.ctx.HealthCode(),
		SchedulePlanGUID: e.planGUID,
		Activity:         act,
		ScheduledOn:      t,
		ExpiresOn:        expiresOn,
		Persistent:       e.sch.IsPersistent(),
		schedule:         e.sch,
	})
}

// shouldContinue is the loop continuation test. Generation keeps advancing
// while the candidate time is inside the requested horizon, or while a
// recurring schedule still owes the guaranteed minimum backlog. The
// schedule's own endsOn window is a hard stop either way.
func (e *expander) shouldContinue(t time.Time) bool {
	if !e.beforeWindowEnd(t) {
		return false
	}
	if !e.ctx.EndsOn().IsZero() && t.Before(e.ctx.EndsOn()) {
		return true
	}
	return e.sch.IsRecurring() && len(e.out) < e.ctx.MinimumPerSchedule()
}

func (e *expander) beforeWindowEnd(t time.Time) bool {
	return e.sch.EndsOn.IsZero() || !t.After(e.sch.EndsOn)
}

// trimmed caps a ONCE schedule to exactly one wave; recurring growth is
// already bounded by shouldContinue.
func (e *expander) trimmed() []*ScheduledActivity {
	if e.sch.ScheduleType == ScheduleOnce && len(e.out) > len(e.sch.Activities) {
		return e.out[:len(e.sch.Activities)]
	}
	return e.out
}

// eventToMidnight maps an event instant to midnight of its UTC calendar day
// minus one day, rendered back in the event's zone. Any real-world offset is
// within a day of UTC, so the resulting instant is guaranteed to already
// have passed for the participant, making the activity immediately visible.
func eventToMidnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d-1, 0, 0, 0, 0, time.UTC).In(t.Location())
}

// startOfDay is local midnight of t's calendar day, in t's zone.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
