package planner

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"studysched/internal/criteria"
	"studysched/internal/eventbus"
	"studysched/internal/storage"
	logx "studysched/pkg/logx"
)

// Config controls the planner service.
type Config struct {
	Enabled   bool
	Workers   int
	QueueSize int

	// HistorySize caps the in-memory rebuild history (default 200).
	HistorySize int

	// PersistPerSec rate-limits activity persistence; 0 disables limiting.
	PersistPerSec int

	// Horizon is the default generation window when a request carries no
	// endsOn (default 4 days).
	Horizon time.Duration

	// MinimumPerSchedule guarantees a backlog of upcoming activities for
	// recurring schedules even under a short horizon.
	MinimumPerSchedule int

	// Timezone is the fallback IANA zone for requests without one.
	Timezone string
}

// Request identifies one participant timeline to (re)build.
type Request struct {
	StudyID    string
	HealthCode string
	Client     criteria.ClientInfo
	DataGroups []string
	Zone       *time.Location
	EndsOn     time.Time // zero: now + Config.Horizon
	Minimum    int       // zero: Config.MinimumPerSchedule
}

type job struct {
	req      Request
	enqueued time.Time
}

// HistoryItem records one executed rebuild.
type HistoryItem struct {
	StudyID    string
	HealthCode string
	Started    time.Time
	Duration   time.Duration
	Activities int
	Error      string
}

// Snapshot is a point-in-time operational view of the service.
type Snapshot struct {
	Enabled  bool
	Workers  int
	QueueLen int
	History  []HistoryItem
}

type Service struct {
	mu sync.Mutex

	log   logx.Logger
	cfg   Config
	store storage.Store
	bus   eventbus.Bus

	limiter *rate.Limiter

	queue  chan job
	stopCh chan struct{}

	workerWG sync.WaitGroup

	hmu     sync.Mutex
	history []HistoryItem
}
