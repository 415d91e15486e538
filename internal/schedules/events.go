package schedules

import "strings"

// EventEnrollment is the default anchoring event. Every participant is
// expected to carry one; its absence means "no activities yet", not an error.
const EventEnrollment = "enrollment"

// ActivityFinishedEvent returns the synthetic event id recorded when the
// activity with the given guid is completed. Persistent schedules re-anchor
// on it.
func ActivityFinishedEvent(activityGUID string) string {
	return "activity:" + activityGUID + ":finished"
}

// ActivityGUIDFromFinishedEvent extracts the activity guid from an
// "activity:<guid>:finished" event id; ok is false for any other id.
func ActivityGUIDFromFinishedEvent(eventID string) (guid string, ok bool) {
	if !strings.HasPrefix(eventID, "activity:") || !strings.HasSuffix(eventID, ":finished") {
		return "", false
	}
	guid = strings.TrimSuffix(strings.TrimPrefix(eventID, "activity:"), ":finished")
	if guid == "" {
		return "", false
	}
	return guid, true
}
