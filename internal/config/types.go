package config

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage is optional; without it the daemon runs in dry-run mode and
	// the planner only answers ad-hoc timeline builds.
	Storage *StorageConfig `json:"storage,omitempty"`

	Planner PlannerConfig `json:"planner"`

	// Studies declares the data-group universe plans are validated against.
	Studies []StudyConfig `json:"studies,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./studysched_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// PlannerConfig controls the timeline-rebuild engine.
//
// All durations are Go duration strings (e.g. "10s", "96h").
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 256
//   - history_size: 200
//   - horizon: "96h"
//   - timezone: "UTC"
type PlannerConfig struct {
	Enabled   bool `json:"enabled"`
	Workers   int  `json:"workers,omitempty"`
	QueueSize int  `json:"queue_size,omitempty"`

	HistorySize int `json:"history_size,omitempty"`

	// PersistPerSec rate-limits timeline persistence; 0 disables limiting.
	PersistPerSec int `json:"persist_per_sec,omitempty"`

	// Horizon is how far ahead timelines are generated when a request
	// carries no explicit end.
	Horizon string `json:"horizon,omitempty"`

	// MinimumPerSchedule guarantees a backlog of upcoming activities for
	// recurring schedules even under a short horizon.
	MinimumPerSchedule int `json:"minimum_per_schedule,omitempty"`

	// Timezone is the fallback IANA zone for requests without one.
	Timezone string `json:"timezone,omitempty"`
}

type StudyConfig struct {
	ID string `json:"id"`

	// DataGroups is the allowed universe for criteria in this study's plans.
	DataGroups []string `json:"data_groups,omitempty"`
}

// Study returns the declared study with the given id, if any.
func (c *Config) Study(id string) (StudyConfig, bool) {
	for _, st := range c.Studies {
		if st.ID == id {
			return st, true
		}
	}
	return StudyConfig{}, false
}
