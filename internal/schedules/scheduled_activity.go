package schedules

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is derived from an activity's timestamps on every read; it is never
// stored.
type Status string

const (
	// StatusScheduled: scheduledOn is still in the future.
	StatusScheduled Status = "scheduled"
	// StatusAvailable: the participant can start it now.
	StatusAvailable Status = "available"
	StatusStarted   Status = "started"
	StatusFinished  Status = "finished"
	// StatusExpired: expiresOn passed before the participant started it.
	StatusExpired Status = "expired"
	// StatusDeleted: finished without ever being started. Terminal anomaly,
	// interpreted as a deletion rather than a completion.
	StatusDeleted Status = "deleted"
)

// localStampLayout renders the zone-less local timestamp that forms the
// second half of a ScheduledActivity guid.
const localStampLayout = "2006-01-02T15:04:05.000"

// ScheduledActivity is one concrete, time-stamped occurrence of an Activity
// for a participant. The expansion engine creates it; participant actions
// (start/finish/hide) mutate it externally.
type ScheduledActivity struct {
	// GUID is activityGuid + ":" + the local scheduled timestamp, so
	// regeneration over the same inputs reproduces the same guid.
	GUID             string
	HealthCode       string
	SchedulePlanGUID string
	Activity         Activity

	// ScheduledOn carries the participant's zone; all status comparisons
	// happen in that zone.
	ScheduledOn time.Time
	ExpiresOn   time.Time // zero means never expires

	// Participant-action timestamps, epoch millis. Zero means unset.
	StartedOn  int64
	FinishedOn int64
	HidesOn    int64

	Persistent bool

	// App-version bounds copied from the criteria rule that selected the
	// schedule, so clients can re-check admission without the plan.
	MinAppVersion *int
	MaxAppVersion *int

	// schedule back-reference for derivation rules; not persisted.
	schedule *Schedule
}

// Schedule returns the originating schedule, when known.
func (a *ScheduledActivity) Schedule() *Schedule { return a.schedule }

// TimeZone is the zone the activity was generated in.
func (a *ScheduledActivity) TimeZone() *time.Location { return a.ScheduledOn.Location() }

// ActivityGUID returns the bare activity guid (the part before the timestamp).
func (a *ScheduledActivity) ActivityGUID() string {
	if i := strings.IndexByte(a.GUID, ':'); i >= 0 {
		return a.GUID[:i]
	}
	return a.GUID
}

// Status derives the lifecycle state from the recorded timestamps.
//
// Order matters: participant actions win over clock-derived states, and a
// finish without a start is a deletion.
func (a *ScheduledActivity) Status(now time.Time) Status {
	switch {
	case a.FinishedOn != 0 && a.StartedOn == 0:
		return StatusDeleted
	case a.FinishedOn != 0:
		return StatusFinished
	case a.StartedOn != 0:
		return StatusStarted
	}
	n := now.In(a.TimeZone())
	if !a.ExpiresOn.IsZero() && n.After(a.ExpiresOn) {
		return StatusExpired
	}
	if !a.ScheduledOn.IsZero() && n.Before(a.ScheduledOn) {
		return StatusScheduled
	}
	return StatusAvailable
}

// ---- wire format ----

type scheduledActivityJSON struct {
	GUID             string   `json:"guid"`
	HealthCode       string   `json:"healthCode,omitempty"`
	SchedulePlanGUID string   `json:"schedulePlanGuid,omitempty"`
	Activity         Activity `json:"activity"`
	ScheduledOn      string   `json:"scheduledOn"`
	ExpiresOn        string   `json:"expiresOn,omitempty"`
	StartedOn        int64    `json:"startedOn,omitempty"`
	FinishedOn       int64    `json:"finishedOn,omitempty"`
	HidesOn          int64    `json:"hidesOn,omitempty"`
	Persistent       bool     `json:"persistent,omitempty"`
	MinAppVersion    *int     `json:"minAppVersion,omitempty"`
	MaxAppVersion    *int     `json:"maxAppVersion,omitempty"`
}

func (a ScheduledActivity) MarshalJSON() ([]byte, error) {
	out := scheduledActivityJSON{
		GUID:             a.GUID,
		HealthCode:       a.HealthCode,
		SchedulePlanGUID: a.SchedulePlanGUID,
		Activity:         a.Activity,
		ScheduledOn:      a.ScheduledOn.Format(time.RFC3339Nano),
		StartedOn:        a.StartedOn,
		FinishedOn:       a.FinishedOn,
		HidesOn:          a.HidesOn,
		Persistent:       a.Persistent,
		MinAppVersion:    a.MinAppVersion,
		MaxAppVersion:    a.MaxAppVersion,
	}
	if !a.ExpiresOn.IsZero() {
		out.ExpiresOn = a.ExpiresOn.Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

func (a *ScheduledActivity) UnmarshalJSON(b []byte) error {
	var in scheduledActivityJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	scheduledOn, err := time.Parse(time.RFC3339Nano, in.ScheduledOn)
	if err != nil {
		return err
	}
	var expiresOn time.Time
	if in.ExpiresOn != "" {
		expiresOn, err = time.Parse(time.RFC3339Nano, in.ExpiresOn)
		if err != nil {
			return err
		}
	}
	*a = ScheduledActivity{
		GUID:             in.GUID,
		HealthCode:       in.HealthCode,
		SchedulePlanGUID: in.SchedulePlanGUID,
		Activity:         in.Activity,
		ScheduledOn:      scheduledOn,
		ExpiresOn:        expiresOn,
		StartedOn:        in.StartedOn,
		FinishedOn:       in.FinishedOn,
		HidesOn:          in.HidesOn,
		Persistent:       in.Persistent,
		MinAppVersion:    in.MinAppVersion,
		MaxAppVersion:    in.MaxAppVersion,
	}
	return nil
}
