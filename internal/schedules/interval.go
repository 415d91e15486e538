package schedules

// intervalScheduler advances by a fixed interval from the anchoring event.
// A schedule with no interval is a one-shot: it emits a single wave and
// returns, which is how pure event-triggered one-time activities work.
type intervalScheduler struct {
	sch *Schedule
}

func (s intervalScheduler) Expand(planGUID string, ctx *ScheduleContext) ([]*ScheduledActivity, error) {
	e := &expander{sch: s.sch, planGUID: planGUID, ctx: ctx}
	t, ok := e.anchor()
	if !ok {
		return nil, nil
	}
	for i := 0; i < maxExpansions && e.shouldContinue(t); i++ {
		e.emitWave(t)
		if s.sch.Interval <= 0 {
			break
		}
		t = t.Add(s.sch.Interval)
	}
	return e.trimmed(), nil
}
