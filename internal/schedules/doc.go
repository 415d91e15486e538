// Package schedules holds the activity scheduling core: declarative Schedule
// descriptors, the immutable ScheduleContext snapshot, and the expansion
// engine that turns a schedule plus a participant's event history into
// concrete, time-zoned ScheduledActivity instances.
//
// # Expansion
//
// Expansion is a pure function of (schedule, plan guid, context). It performs
// no I/O and mutates nothing shared, so concurrent regeneration for the same
// participant is safe: guids are derived deterministically from the activity
// guid and the local timestamp, and repeated runs over the same inputs
// produce identical records.
//
// # Schedule variants
//
//   - interval: anchor on an event, then advance by a fixed interval
//   - cron: anchor on an event, then advance via a cron expression
//   - persistent: re-anchor on the activity's own "finished" event, one
//     instance per activity per expansion
//
// SchedulerFor picks the variant: persistent schedule type wins, then a
// non-empty cron trigger, otherwise interval.
package schedules
