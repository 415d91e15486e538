package schedules

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studysched/internal/validate"
)

func TestEventIDs(t *testing.T) {
	cases := []struct {
		name string
		sch  Schedule
		want []string
	}{
		{
			name: "empty defaults to enrollment",
			sch:  Schedule{ScheduleType: ScheduleRecurring},
			want: []string{"enrollment"},
		},
		{
			name: "comma list keeps order",
			sch:  Schedule{ScheduleType: ScheduleRecurring, EventID: "clinic_visit, enrollment"},
			want: []string{"clinic_visit", "enrollment"},
		},
		{
			name: "whitespace-only falls back",
			sch:  Schedule{ScheduleType: ScheduleRecurring, EventID: " , "},
			want: []string{"enrollment"},
		},
		{
			name: "on_enrollment ignores configured event",
			sch:  Schedule{ScheduleType: ScheduleRecurringOnEnrollment, EventID: "clinic_visit"},
			want: []string{"enrollment"},
		},
		{
			name: "after_enrollment ignores configured event",
			sch:  Schedule{ScheduleType: ScheduleRecurringAfterEnrollment, EventID: "clinic_visit"},
			want: []string{"enrollment"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.sch.EventIDs())
		})
	}
}

func TestScheduleValidate(t *testing.T) {
	cases := []struct {
		name      string
		sch       Schedule
		wantField string
	}{
		{
			name:      "no activities",
			sch:       Schedule{ScheduleType: ScheduleOnce},
			wantField: "activities",
		},
		{
			name: "bad schedule type",
			sch: Schedule{
				ScheduleType: "weekly",
				Activities:   []Activity{taskActivity("a")},
			},
			wantField: "scheduleType",
		},
		{
			name: "recurring without trigger",
			sch: Schedule{
				ScheduleType: ScheduleRecurring,
				Activities:   []Activity{taskActivity("a")},
			},
			wantField: "interval",
		},
		{
			name: "interval and cron together",
			sch: Schedule{
				ScheduleType: ScheduleRecurring,
				Interval:     24 * time.Hour,
				CronTrigger:  "0 0 9 * * ?",
				Activities:   []Activity{taskActivity("a")},
			},
			wantField: "interval",
		},
		{
			name: "invalid cron expression",
			sch: Schedule{
				ScheduleType: ScheduleRecurring,
				CronTrigger:  "nope",
				Activities:   []Activity{taskActivity("a")},
			},
			wantField: "cronTrigger",
		},
		{
			name: "after_enrollment without delay",
			sch: Schedule{
				ScheduleType: ScheduleRecurringAfterEnrollment,
				Interval:     24 * time.Hour,
				Activities:   []Activity{taskActivity("a")},
			},
			wantField: "delay",
		},
		{
			name: "persistent with interval",
			sch: Schedule{
				ScheduleType: SchedulePersistent,
				Interval:     24 * time.Hour,
				Activities:   []Activity{taskActivity("a")},
			},
			wantField: "scheduleType",
		},
		{
			name: "endsOn precedes startsOn",
			sch: Schedule{
				ScheduleType: ScheduleOnce,
				StartsOn:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
				EndsOn:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
				Activities:   []Activity{taskActivity("a")},
			},
			wantField: "endsOn",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := validate.New()
			tc.sch.Validate(errs)
			require.False(t, errs.Empty())
			found := false
			for _, fe := range errs.List() {
				if fe.Field == tc.wantField {
					found = true
				}
			}
			require.True(t, found, "no error on field %q: %v", tc.wantField, errs.List())
		})
	}
}

func TestScheduleValidateOK(t *testing.T) {
	sch := Schedule{
		Label:        "Morning tapping",
		ScheduleType: ScheduleRecurring,
		CronTrigger:  "0 0 9 * * ?",
		Expires:      24 * time.Hour,
		Activities:   []Activity{taskActivity("a")},
	}
	errs := validate.New()
	sch.Validate(errs)
	require.True(t, errs.Empty(), "unexpected: %v", errs.List())
}

func TestScheduleValidateScopesActivityErrors(t *testing.T) {
	sch := Schedule{
		ScheduleType: ScheduleOnce,
		Activities: []Activity{
			taskActivity("ok"),
			{Label: "broken", GUID: "b"}, // no reference
		},
	}
	errs := validate.New()
	sch.Validate(errs)
	require.False(t, errs.Empty())
	require.Contains(t, errs.List()[0].Field, "activities[1]")
}

func TestScheduleJSONRoundTrip(t *testing.T) {
	sch := Schedule{
		Label:        "Weekly survey",
		ScheduleType: ScheduleRecurring,
		EventID:      "clinic_visit,enrollment",
		Delay:        time.Hour,
		Interval:     7 * 24 * time.Hour,
		Times:        []TimeOfDay{{Hour: 8, Minute: 30}},
		StartsOn:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndsOn:       time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Expires:      48 * time.Hour,
		Activities:   []Activity{taskActivity("act-1")},
	}

	b, err := json.Marshal(sch)
	require.NoError(t, err)
	require.Contains(t, string(b), `"interval":"168h0m0s"`)
	require.Contains(t, string(b), `"times":["08:30"]`)

	var got Schedule
	require.NoError(t, json.Unmarshal(b, &got))
	require.Equal(t, sch.Label, got.Label)
	require.Equal(t, sch.ScheduleType, got.ScheduleType)
	require.Equal(t, sch.EventID, got.EventID)
	require.Equal(t, sch.Delay, got.Delay)
	require.Equal(t, sch.Interval, got.Interval)
	require.Equal(t, sch.Expires, got.Expires)
	require.Equal(t, sch.Times, got.Times)
	require.True(t, sch.StartsOn.Equal(got.StartsOn))
	require.True(t, sch.EndsOn.Equal(got.EndsOn))
	require.True(t, sch.Activities[0].Equal(got.Activities[0]))
}

func TestScheduleJSONRejectsBadDuration(t *testing.T) {
	var sch Schedule
	err := json.Unmarshal([]byte(`{"scheduleType":"once","interval":"soon","activities":[]}`), &sch)
	require.Error(t, err)
	require.Contains(t, err.Error(), "schedule.interval")
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("08:30")
	require.NoError(t, err)
	require.Equal(t, TimeOfDay{Hour: 8, Minute: 30}, tod)
	require.Equal(t, "08:30", tod.String())

	for _, bad := range []string{"8", "24:00", "12:60", "ab:cd", ""} {
		_, err := ParseTimeOfDay(bad)
		require.Error(t, err, "expected error for %q", bad)
	}
}

func TestActivityFinishedEventRoundTrip(t *testing.T) {
	id := ActivityFinishedEvent("act-1")
	require.Equal(t, "activity:act-1:finished", id)

	guid, ok := ActivityGUIDFromFinishedEvent(id)
	require.True(t, ok)
	require.Equal(t, "act-1", guid)

	_, ok = ActivityGUIDFromFinishedEvent("enrollment")
	require.False(t, ok)
	_, ok = ActivityGUIDFromFinishedEvent("activity::finished")
	require.False(t, ok)
}
