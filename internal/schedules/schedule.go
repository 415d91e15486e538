package schedules

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"studysched/internal/validate"
)

// ScheduleType selects how a schedule recurs.
type ScheduleType string

const (
	// ScheduleOnce emits a single wave of activities.
	ScheduleOnce ScheduleType = "once"
	// ScheduleRecurring repeats on an interval or cron trigger.
	ScheduleRecurring ScheduleType = "recurring"
	// ScheduleRecurringOnEnrollment is recurring with the anchoring event
	// pinned to enrollment, ignoring any configured event id.
	ScheduleRecurringOnEnrollment ScheduleType = "recurring_on_enrollment"
	// ScheduleRecurringAfterEnrollment is recurring, anchored on enrollment
	// plus the schedule's delay.
	ScheduleRecurringAfterEnrollment ScheduleType = "recurring_after_enrollment"
	// SchedulePersistent re-emits an activity whenever its own "finished"
	// event fires, rather than on a timer.
	SchedulePersistent ScheduleType = "persistent"
)

func (t ScheduleType) valid() bool {
	switch t {
	case ScheduleOnce, ScheduleRecurring, ScheduleRecurringOnEnrollment,
		ScheduleRecurringAfterEnrollment, SchedulePersistent:
		return true
	}
	return false
}

// cronParser accepts both 5-field and 6-field (with seconds) expressions,
// plus descriptors like "@daily". Shared by validation and expansion.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule is a declarative recurrence descriptor. Treat values as immutable
// after construction; expansion never writes to them.
type Schedule struct {
	Label        string
	ScheduleType ScheduleType

	// EventID names the anchoring event; it may be a comma-separated list of
	// candidates tried in order. Empty means "enrollment". Defaulting happens
	// at read time via EventIDs, never by mutating the schedule.
	EventID string

	Delay       time.Duration
	Interval    time.Duration
	CronTrigger string
	Times       []TimeOfDay

	// StartsOn/EndsOn bound emitted activities, inclusive on both ends.
	StartsOn time.Time
	EndsOn   time.Time

	// Expires, when set, gives each activity expiresOn = scheduledOn + Expires.
	Expires time.Duration

	// Activities are instantiated identically at every scheduled time point.
	Activities []Activity
}

// EventIDs resolves the candidate anchoring events in try-order.
func (s *Schedule) EventIDs() []string {
	switch s.ScheduleType {
	case ScheduleRecurringOnEnrollment, ScheduleRecurringAfterEnrollment:
		return []string{EventEnrollment}
	}
	raw := strings.TrimSpace(s.EventID)
	if raw == "" {
		return []string{EventEnrollment}
	}
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			ids = append(ids, p)
		}
	}
	if len(ids) == 0 {
		return []string{EventEnrollment}
	}
	return ids
}

func (s *Schedule) IsRecurring() bool {
	switch s.ScheduleType {
	case ScheduleRecurring, ScheduleRecurringOnEnrollment, ScheduleRecurringAfterEnrollment:
		return true
	}
	return false
}

func (s *Schedule) IsPersistent() bool { return s.ScheduleType == SchedulePersistent }

// Validate records authoring-time problems. Cron syntax is checked here so a
// malformed trigger is rejected before it can reach generation.
func (s *Schedule) Validate(errs *validate.Errors) {
	if !s.ScheduleType.valid() {
		errs.Add("scheduleType", "%q is not a schedule type", string(s.ScheduleType))
	}
	if len(s.Activities) == 0 {
		errs.Add("activities", "must have at least one activity")
	}
	for i, a := range s.Activities {
		a.validateInto(errs.Indexed("activities", i))
	}
	if s.Delay < 0 {
		errs.Add("delay", "cannot be negative")
	}
	if s.Interval < 0 {
		errs.Add("interval", "cannot be negative")
	}
	if s.Expires < 0 {
		errs.Add("expires", "cannot be negative")
	}
	if s.CronTrigger != "" {
		if _, err := cronParser.Parse(strings.TrimSpace(s.CronTrigger)); err != nil {
			errs.Add("cronTrigger", "invalid cron expression: %v", err)
		}
		if s.Interval > 0 {
			errs.Add("interval", "interval and cronTrigger are mutually exclusive")
		}
	}
	if s.IsRecurring() && s.Interval == 0 && s.CronTrigger == "" {
		errs.Add("interval", "a recurring schedule needs an interval or a cronTrigger")
	}
	if s.ScheduleType == ScheduleRecurringAfterEnrollment && s.Delay == 0 {
		errs.Add("delay", "required for recurring_after_enrollment")
	}
	if s.IsPersistent() && (s.Interval > 0 || s.CronTrigger != "") {
		errs.Add("scheduleType", "a persistent schedule cannot carry an interval or cronTrigger")
	}
	if !s.StartsOn.IsZero() && !s.EndsOn.IsZero() && s.EndsOn.Before(s.StartsOn) {
		errs.Add("endsOn", "cannot precede startsOn")
	}
}

// ---- wire format ----
//
// Durations travel as Go duration strings, absolute bounds as RFC 3339.

type scheduleJSON struct {
	Label        string       `json:"label,omitempty"`
	ScheduleType ScheduleType `json:"scheduleType"`
	EventID      string       `json:"eventId,omitempty"`
	Delay        string       `json:"delay,omitempty"`
	Interval     string       `json:"interval,omitempty"`
	CronTrigger  string       `json:"cronTrigger,omitempty"`
	Times        []TimeOfDay  `json:"times,omitempty"`
	StartsOn     string       `json:"startsOn,omitempty"`
	EndsOn       string       `json:"endsOn,omitempty"`
	Expires      string       `json:"expires,omitempty"`
	Activities   []Activity   `json:"activities"`
}

func (s Schedule) MarshalJSON() ([]byte, error) {
	out := scheduleJSON{
		Label:        s.Label,
		ScheduleType: s.ScheduleType,
		EventID:      s.EventID,
		CronTrigger:  s.CronTrigger,
		Times:        s.Times,
		Activities:   s.Activities,
	}
	if s.Delay > 0 {
		out.Delay = s.Delay.String()
	}
	if s.Interval > 0 {
		out.Interval = s.Interval.String()
	}
	if s.Expires > 0 {
		out.Expires = s.Expires.String()
	}
	if !s.StartsOn.IsZero() {
		out.StartsOn = s.StartsOn.Format(time.RFC3339)
	}
	if !s.EndsOn.IsZero() {
		out.EndsOn = s.EndsOn.Format(time.RFC3339)
	}
	return json.Marshal(out)
}

func (s *Schedule) UnmarshalJSON(b []byte) error {
	var in scheduleJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	sch := Schedule{
		Label:        in.Label,
		ScheduleType: in.ScheduleType,
		EventID:      in.EventID,
		CronTrigger:  in.CronTrigger,
		Times:        in.Times,
		Activities:   in.Activities,
	}
	var err error
	if sch.Delay, err = validate.Duration("schedule.delay", in.Delay); err != nil {
		return err
	}
	if sch.Interval, err = validate.Duration("schedule.interval", in.Interval); err != nil {
		return err
	}
	if sch.Expires, err = validate.Duration("schedule.expires", in.Expires); err != nil {
		return err
	}
	if sch.StartsOn, err = validate.Timestamp("schedule.startsOn", in.StartsOn); err != nil {
		return err
	}
	if sch.EndsOn, err = validate.Timestamp("schedule.endsOn", in.EndsOn); err != nil {
		return err
	}
	*s = sch
	return nil
}
