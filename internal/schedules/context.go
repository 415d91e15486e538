package schedules

import (
	"time"

	"studysched/internal/criteria"
)

// ScheduleContext is the immutable, request-scoped snapshot a scheduler
// expands against: who the participant is, what time zone and horizon the
// request carries, and which events have fired. Build one via ContextBuilder.
type ScheduleContext struct {
	studyID    string
	healthCode string
	client     criteria.ClientInfo
	zone       *time.Location
	endsOn     time.Time
	events     map[string]time.Time
	dataGroups []string
	now        time.Time
	minimum    int
}

type ContextBuilder struct {
	ctx ScheduleContext
}

func NewContextBuilder(studyID string) *ContextBuilder {
	b := &ContextBuilder{}
	b.ctx.studyID = studyID
	return b
}

func (b *ContextBuilder) WithHealthCode(hc string) *ContextBuilder {
	b.ctx.healthCode = hc
	return b
}

func (b *ContextBuilder) WithClient(c criteria.ClientInfo) *ContextBuilder {
	b.ctx.client = c
	return b
}

func (b *ContextBuilder) WithZone(loc *time.Location) *ContextBuilder {
	b.ctx.zone = loc
	return b
}

func (b *ContextBuilder) WithEndsOn(t time.Time) *ContextBuilder {
	b.ctx.endsOn = t
	return b
}

// WithEvents copies the map; later changes to the argument are not observed.
func (b *ContextBuilder) WithEvents(events map[string]time.Time) *ContextBuilder {
	cp := make(map[string]time.Time, len(events))
	for k, v := range events {
		cp[k] = v
	}
	b.ctx.events = cp
	return b
}

func (b *ContextBuilder) WithDataGroups(groups []string) *ContextBuilder {
	b.ctx.dataGroups = append([]string(nil), groups...)
	return b
}

func (b *ContextBuilder) WithNow(now time.Time) *ContextBuilder {
	b.ctx.now = now
	return b
}

// WithMinimumPerSchedule sets the floor of upcoming activities a recurring
// schedule keeps generating even past the endsOn horizon.
func (b *ContextBuilder) WithMinimumPerSchedule(n int) *ContextBuilder {
	b.ctx.minimum = n
	return b
}

// Build finalizes the context. A missing study id is a programmer error.
func (b *ContextBuilder) Build() *ScheduleContext {
	if b.ctx.studyID == "" {
		panic("schedules: study id is required")
	}
	ctx := b.ctx
	if ctx.client == (criteria.ClientInfo{}) {
		ctx.client = criteria.UnknownClient
	}
	if ctx.zone == nil {
		ctx.zone = time.UTC
	}
	if ctx.events == nil {
		ctx.events = map[string]time.Time{}
	}
	if ctx.dataGroups == nil {
		ctx.dataGroups = []string{}
	}
	if ctx.now.IsZero() {
		ctx.now = time.Now().In(ctx.zone)
	}
	return &ctx
}

func (c *ScheduleContext) StudyID() string             { return c.studyID }
func (c *ScheduleContext) HealthCode() string          { return c.healthCode }
func (c *ScheduleContext) Client() criteria.ClientInfo { return c.client }
func (c *ScheduleContext) Zone() *time.Location        { return c.zone }
func (c *ScheduleContext) EndsOn() time.Time           { return c.endsOn }
func (c *ScheduleContext) Now() time.Time              { return c.now }
func (c *ScheduleContext) MinimumPerSchedule() int     { return c.minimum }

// HasEvents reports whether any event at all is recorded. An empty event map
// yields an empty timeline; enrollment recording is the event collaborator's
// job, not enforced here.
func (c *ScheduleContext) HasEvents() bool { return len(c.events) > 0 }

func (c *ScheduleContext) Event(id string) (time.Time, bool) {
	t, ok := c.events[id]
	return t, ok
}

func (c *ScheduleContext) DataGroups() []string {
	return append([]string(nil), c.dataGroups...)
}

// Equal covers every field; used by callers that cache expansion results.
func (c *ScheduleContext) Equal(o *ScheduleContext) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.studyID != o.studyID || c.healthCode != o.healthCode || c.client != o.client ||
		c.zone.String() != o.zone.String() || !c.endsOn.Equal(o.endsOn) ||
		!c.now.Equal(o.now) || c.minimum != o.minimum {
		return false
	}
	if len(c.events) != len(o.events) || len(c.dataGroups) != len(o.dataGroups) {
		return false
	}
	for k, v := range c.events {
		ov, ok := o.events[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	for i := range c.dataGroups {
		if c.dataGroups[i] != o.dataGroups[i] {
			return false
		}
	}
	return true
}
