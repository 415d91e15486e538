package schedules

import (
	"fmt"
	"strings"
)

// cronScheduler advances via the schedule's cron expression: each successive
// fire time is computed from the previous one, in the anchor's zone. The
// fire time itself is the scheduled time; the Times list does not apply.
type cronScheduler struct {
	sch *Schedule
}

func (s cronScheduler) Expand(planGUID string, ctx *ScheduleContext) ([]*ScheduledActivity, error) {
	e := &expander{sch: s.sch, planGUID: planGUID, ctx: ctx}
	t, ok := e.anchor()
	if !ok {
		return nil, nil
	}

	// A malformed trigger reaching this point is a fatal misconfiguration;
	// plan validation is supposed to have rejected it.
	spec, err := cronParser.Parse(strings.TrimSpace(s.sch.CronTrigger))
	if err != nil {
		return nil, fmt.Errorf("schedules: cron trigger %q: %w", s.sch.CronTrigger, err)
	}

	// Next is strictly-after, so the anchor day fires only when its cron
	// time-of-day falls after the anchor instant.
	for i := 0; i < maxExpansions; i++ {
		t = spec.Next(t)
		if t.IsZero() || !e.shouldContinue(t) {
			break
		}
		e.emitAt(t)
	}
	return e.trimmed(), nil
}
