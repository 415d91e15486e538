package schedules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCronDailyNineAM(t *testing.T) {
	enrolled := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sch := &Schedule{
		ScheduleType: ScheduleRecurring,
		CronTrigger:  "0 0 9 * * ?",
		Activities:   []Activity{taskActivity("act-1")},
	}
	ctx := testCtx(t, enrolled, enrolled.Add(72*time.Hour))

	acts, err := SchedulerFor(sch).Expand("plan-1", ctx)
	require.NoError(t, err)

	// Fire times are strictly after the anchor, so the enrollment day's
	// 09:00 never fires; three mornings fit in the 3-day horizon.
	require.Len(t, acts, 3)
	require.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), acts[0].ScheduledOn)
	require.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), acts[1].ScheduledOn)
	require.Equal(t, time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), acts[2].ScheduledOn)
}

func TestCronFiveFieldExpression(t *testing.T) {
	enrolled := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sch := &Schedule{
		ScheduleType: ScheduleRecurring,
		CronTrigger:  "0 12 * * *",
		Activities:   []Activity{taskActivity("act-1")},
	}
	ctx := testCtx(t, enrolled, enrolled.Add(48*time.Hour))

	acts, err := SchedulerFor(sch).Expand("plan-1", ctx)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	require.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), acts[0].ScheduledOn)
	require.Equal(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), acts[1].ScheduledOn)
}

func TestCronFiresInParticipantZone(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	enrolled := time.Date(2026, 3, 1, 10, 0, 0, 0, la)
	sch := &Schedule{
		ScheduleType: ScheduleRecurring,
		CronTrigger:  "@daily",
		Activities:   []Activity{taskActivity("act-1")},
	}
	ctx := testCtx(t, enrolled, enrolled.Add(48*time.Hour))

	acts, err := SchedulerFor(sch).Expand("plan-1", ctx)
	require.NoError(t, err)
	require.NotEmpty(t, acts)
	for _, a := range acts {
		require.Equal(t, 0, a.ScheduledOn.Hour())
		require.Equal(t, la.String(), a.TimeZone().String())
	}
}

func TestCronInvalidTriggerFailsExpansion(t *testing.T) {
	enrolled := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sch := &Schedule{
		ScheduleType: ScheduleRecurring,
		CronTrigger:  "not a cron",
		Activities:   []Activity{taskActivity("act-1")},
	}
	ctx := testCtx(t, enrolled, enrolled.Add(72*time.Hour))

	_, err := SchedulerFor(sch).Expand("plan-1", ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cron trigger")
}

func TestCronHonorsScheduleWindow(t *testing.T) {
	enrolled := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sch := &Schedule{
		ScheduleType: ScheduleRecurring,
		CronTrigger:  "0 0 9 * * ?",
		EndsOn:       time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
		Activities:   []Activity{taskActivity("act-1")},
	}
	ctx := testCtx(t, enrolled, enrolled.Add(10*24*time.Hour))

	acts, err := SchedulerFor(sch).Expand("plan-1", ctx)
	require.NoError(t, err)
	// The Mar 3 fire lands exactly on the window edge and is kept.
	require.Len(t, acts, 2)
	require.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), acts[1].ScheduledOn)
}
