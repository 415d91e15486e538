package schedules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPersistentAnchorsOnEnrollment(t *testing.T) {
	enrolled := time.Date(2026, 3, 1, 14, 45, 0, 0, time.UTC)
	sch := &Schedule{
		ScheduleType: SchedulePersistent,
		Activities:   []Activity{taskActivity("act-1")},
	}
	ctx := testCtx(t, enrolled, enrolled.Add(96*time.Hour))

	acts, err := SchedulerFor(sch).Expand("plan-1", ctx)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), acts[0].ScheduledOn)
	require.True(t, acts[0].Persistent)
}

func TestPersistentReanchorsOnFinish(t *testing.T) {
	enrolled := time.Date(2026, 3, 1, 14, 45, 0, 0, time.UTC)
	finished := time.Date(2026, 3, 5, 9, 10, 0, 0, time.UTC)
	sch := &Schedule{
		ScheduleType: SchedulePersistent,
		Activities:   []Activity{taskActivity("act-1")},
	}
	ctx := NewContextBuilder("study-1").
		WithHealthCode("HC-123").
		WithNow(finished).
		WithEndsOn(finished.Add(96*time.Hour)).
		WithEvents(map[string]time.Time{
			EventEnrollment:                enrolled,
			ActivityFinishedEvent("act-1"): finished,
		}).
		Build()

	acts, err := SchedulerFor(sch).Expand("plan-1", ctx)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	// Most recent event wins; regenerating after a finish moves the single
	// instance to the finish day's local midnight.
	require.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), acts[0].ScheduledOn)
}

func TestPersistentIgnoresStaleFinishEvent(t *testing.T) {
	finished := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	enrolled := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	sch := &Schedule{
		ScheduleType: SchedulePersistent,
		Activities:   []Activity{taskActivity("act-1")},
	}
	ctx := NewContextBuilder("study-1").
		WithHealthCode("HC-123").
		WithNow(enrolled).
		WithEndsOn(enrolled.Add(96*time.Hour)).
		WithEvents(map[string]time.Time{
			EventEnrollment:                enrolled,
			ActivityFinishedEvent("act-1"): finished,
		}).
		Build()

	acts, err := SchedulerFor(sch).Expand("plan-1", ctx)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), acts[0].ScheduledOn)
}

func TestPersistentOneInstancePerActivity(t *testing.T) {
	enrolled := time.Date(2026, 3, 1, 14, 45, 0, 0, time.UTC)
	finished := time.Date(2026, 3, 6, 8, 0, 0, 0, time.UTC)
	sch := &Schedule{
		ScheduleType: SchedulePersistent,
		Activities: []Activity{
			taskActivity("act-1"),
			taskActivity("act-2"),
		},
	}
	ctx := NewContextBuilder("study-1").
		WithHealthCode("HC-123").
		WithNow(finished).
		WithEndsOn(finished.Add(96*time.Hour)).
		WithEvents(map[string]time.Time{
			EventEnrollment:                enrolled,
			ActivityFinishedEvent("act-1"): finished,
		}).
		Build()

	acts, err := SchedulerFor(sch).Expand("plan-1", ctx)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	// act-1 follows its own finish event; act-2 still hangs off enrollment.
	require.Equal(t, time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC), acts[0].ScheduledOn)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), acts[1].ScheduledOn)
}

func TestPersistentNoEventsYieldsNothing(t *testing.T) {
	sch := &Schedule{
		ScheduleType: SchedulePersistent,
		Activities:   []Activity{taskActivity("act-1")},
	}
	ctx := NewContextBuilder("study-1").WithHealthCode("HC-123").Build()

	acts, err := SchedulerFor(sch).Expand("plan-1", ctx)
	require.NoError(t, err)
	require.Empty(t, acts)
}

func TestPersistentUsesParticipantZoneMidnight(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// Recorded in UTC; the participant lives in Tokyo.
	finished := time.Date(2026, 3, 5, 20, 0, 0, 0, time.UTC) // Mar 6, 05:00 JST
	sch := &Schedule{
		ScheduleType: SchedulePersistent,
		Activities:   []Activity{taskActivity("act-1")},
	}
	ctx := NewContextBuilder("study-1").
		WithHealthCode("HC-123").
		WithZone(tokyo).
		WithNow(finished.In(tokyo)).
		WithEndsOn(finished.Add(96 * time.Hour)).
		WithEvents(map[string]time.Time{
			ActivityFinishedEvent("act-1"): finished,
		}).
		Build()

	acts, err := SchedulerFor(sch).Expand("plan-1", ctx)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.Equal(t, time.Date(2026, 3, 6, 0, 0, 0, 0, tokyo).Format(time.RFC3339), acts[0].ScheduledOn.Format(time.RFC3339))
}
