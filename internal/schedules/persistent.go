package schedules

import "time"

// persistentScheduler implements "reschedule immediately whenever this
// specific activity is completed". Per activity, it anchors on whichever of
// the activity's own finished event or the schedule's base events fired most
// recently, normalized to local midnight, and emits exactly one instance per
// expansion. External event recording drives the loop; there is no timer.
type persistentScheduler struct {
	sch *Schedule
}

func (s persistentScheduler) Expand(planGUID string, ctx *ScheduleContext) ([]*ScheduledActivity, error) {
	if !ctx.HasEvents() {
		return nil, nil
	}
	e := &expander{sch: s.sch, planGUID: planGUID, ctx: ctx}
	zone := ctx.Zone()
	for _, act := range s.sch.Activities {
		candidates := append([]string{ActivityFinishedEvent(act.GUID)}, s.sch.EventIDs()...)
		var latest time.Time
		for _, id := range candidates {
			if ts, ok := ctx.Event(id); ok && ts.After(latest) {
				latest = ts
			}
		}
		if latest.IsZero() {
			continue
		}
		e.emitOne(act, startOfDay(latest.In(zone)))
	}
	return e.out, nil
}
