// Package planner orchestrates timeline generation: it builds a
// ScheduleContext from stored participant state, resolves each plan's
// strategy, expands the resulting schedules, and persists the activities.
//
// The expansion core is pure; every impure edge (store reads/writes, the
// event bus, the worker pool) lives here. Regeneration requests run through
// a bounded queue and a small worker pool, with persistence writes
// rate-limited so a burst of event recording cannot saturate the store.
package planner
