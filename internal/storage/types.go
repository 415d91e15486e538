package storage

import (
	"context"
	"errors"
	"time"

	"studysched/internal/plans"
	"studysched/internal/schedules"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("not found")
)

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (json snapshots + event journal)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API the planner runs against.
//
// SaveActivities is an upsert keyed on (healthCode, guid): regeneration
// produces identical guids for identical inputs, so replaying a batch
// reconciles rather than duplicates. Participant-action timestamps
// (startedOn/finishedOn) on an existing row survive the upsert.
type Store interface {
	SavePlan(ctx context.Context, p *plans.SchedulePlan) error
	Plans(ctx context.Context, studyID string) ([]*plans.SchedulePlan, error)
	DeletePlan(ctx context.Context, studyID, guid string) error

	RecordEvent(ctx context.Context, healthCode, eventID string, ts time.Time) error
	Events(ctx context.Context, healthCode string) (map[string]time.Time, error)

	SaveActivities(ctx context.Context, acts []*schedules.ScheduledActivity) error
	Activities(ctx context.Context, healthCode string) ([]*schedules.ScheduledActivity, error)
	// UpdateActivity stamps participant actions; zero values leave the
	// corresponding field untouched. Returns ErrNotFound for unknown guids.
	UpdateActivity(ctx context.Context, healthCode, guid string, startedOn, finishedOn int64) error

	Close() error
}
