package plans

import (
	"encoding/json"
	"fmt"

	"studysched/internal/criteria"
	"studysched/internal/schedules"
	"studysched/internal/validate"
)

// StrategyType discriminates the closed set of strategy variants. The tag is
// also the wire-format "type" value.
type StrategyType string

const (
	// StrategySimple hands every participant the same schedule.
	StrategySimple StrategyType = "simple"
	// StrategyABTest buckets participants deterministically into weighted
	// groups summing to 100 percent.
	StrategyABTest StrategyType = "abtest"
	// StrategyCriteria walks an ordered rule list; first match wins.
	StrategyCriteria StrategyType = "criteria"
)

// ABTestGroup is one weighted bucket of an A/B test.
type ABTestGroup struct {
	Percentage int                 `json:"percentage"`
	Schedule   *schedules.Schedule `json:"schedule"`
}

// CriteriaGroup is one entry of an ordered first-match rule list.
type CriteriaGroup struct {
	Label    string              `json:"label,omitempty"`
	Criteria criteria.Criteria   `json:"criteria"`
	Schedule *schedules.Schedule `json:"schedule"`
}

// Strategy is a closed tagged union over {simple, abtest, criteria}: only the
// variant field named by Type is populated, and dispatch happens in
// ScheduleFor rather than through subclassing. The "type" tag exists only in
// the wire format (MarshalJSON/UnmarshalJSON below).
type Strategy struct {
	Type StrategyType

	Single *schedules.Schedule // simple
	Groups []ABTestGroup       // abtest; order fixed, percentages sum to 100
	Rules  []CriteriaGroup     // criteria; order is caller-significant
}

func Simple(s *schedules.Schedule) *Strategy {
	return &Strategy{Type: StrategySimple, Single: s}
}

func ABTest(groups ...ABTestGroup) *Strategy {
	return &Strategy{Type: StrategyABTest, Groups: groups}
}

func FirstMatch(rules ...CriteriaGroup) *Strategy {
	return &Strategy{Type: StrategyCriteria, Rules: rules}
}

// ScheduleFor resolves the schedule that applies to the participant in ctx,
// or nil when none does (a normal outcome, not an error).
func (st *Strategy) ScheduleFor(plan *SchedulePlan, ctx *schedules.ScheduleContext) *schedules.Schedule {
	sch, _ := st.Resolve(plan, ctx)
	return sch
}

// Resolve is ScheduleFor plus the rule criteria the schedule was matched
// under. The criteria is non-nil only for criteria strategies; the planner
// stamps its app-version bounds onto the expanded activities.
func (st *Strategy) Resolve(plan *SchedulePlan, ctx *schedules.ScheduleContext) (*schedules.Schedule, *criteria.Criteria) {
	switch st.Type {
	case StrategySimple:
		return st.Single, nil

	case StrategyABTest:
		// Stable assignment: the bucket depends only on (plan guid, health
		// code), so a participant lands in the same group on every call.
		bucket := Bucket(plan.GUID, ctx.HealthCode())
		for _, g := range st.Groups {
			bucket -= g.Percentage
			if bucket <= 0 {
				return g.Schedule, nil
			}
		}
		return nil, nil

	case StrategyCriteria:
		client := ctx.Client()
		groups := ctx.DataGroups()
		for i := range st.Rules {
			if criteria.Match(client, groups, st.Rules[i].Criteria) {
				return st.Rules[i].Schedule, &st.Rules[i].Criteria
			}
		}
		return nil, nil
	}
	return nil, nil
}

// AllSchedules enumerates every schedule the strategy could hand out, for
// validation and plan inspection.
func (st *Strategy) AllSchedules() []*schedules.Schedule {
	switch st.Type {
	case StrategySimple:
		if st.Single == nil {
			return nil
		}
		return []*schedules.Schedule{st.Single}
	case StrategyABTest:
		out := make([]*schedules.Schedule, 0, len(st.Groups))
		for _, g := range st.Groups {
			if g.Schedule != nil {
				out = append(out, g.Schedule)
			}
		}
		return out
	case StrategyCriteria:
		out := make([]*schedules.Schedule, 0, len(st.Rules))
		for _, r := range st.Rules {
			if r.Schedule != nil {
				out = append(out, r.Schedule)
			}
		}
		return out
	}
	return nil
}

// Validate collects variant-specific authoring problems.
func (st *Strategy) Validate(availableGroups []string, errs *validate.Errors) {
	switch st.Type {
	case StrategySimple:
		if st.Single == nil {
			errs.Add("schedule", "is required")
			return
		}
		st.Single.Validate(errs.Scoped("schedule"))

	case StrategyABTest:
		if len(st.Groups) == 0 {
			errs.Add("scheduleGroups", "must have at least one group")
			return
		}
		sum := 0
		for i, g := range st.Groups {
			ge := errs.Indexed("scheduleGroups", i)
			if g.Percentage <= 0 {
				ge.Add("percentage", "must be positive")
			}
			sum += g.Percentage
			if g.Schedule == nil {
				ge.Add("schedule", "is required")
				continue
			}
			g.Schedule.Validate(ge.Scoped("schedule"))
		}
		if sum != 100 {
			errs.Add("scheduleGroups", "group percentages must add up to 100%% (have %d%%)", sum)
		}

	case StrategyCriteria:
		if len(st.Rules) == 0 {
			errs.Add("scheduleCriteria", "must have at least one entry")
			return
		}
		for i, r := range st.Rules {
			re := errs.Indexed("scheduleCriteria", i)
			criteria.Validate(r.Criteria, availableGroups, re.Scoped("criteria"))
			if r.Schedule == nil {
				re.Add("schedule", "is required")
				continue
			}
			r.Schedule.Validate(re.Scoped("schedule"))
		}

	default:
		errs.Add("type", "%q is not a strategy type", string(st.Type))
	}
}

// ---- wire format ----
//
// The union travels with a "type" tag next to the variant payload; the tag
// exists only at this boundary.

type strategyJSON struct {
	Type     StrategyType        `json:"type"`
	Schedule *schedules.Schedule `json:"schedule,omitempty"`
	Groups   []ABTestGroup       `json:"scheduleGroups,omitempty"`
	Rules    []CriteriaGroup     `json:"scheduleCriteria,omitempty"`
}

func (st Strategy) MarshalJSON() ([]byte, error) {
	out := strategyJSON{Type: st.Type}
	switch st.Type {
	case StrategySimple:
		out.Schedule = st.Single
	case StrategyABTest:
		out.Groups = st.Groups
	case StrategyCriteria:
		out.Rules = st.Rules
	default:
		return nil, fmt.Errorf("plans: cannot marshal strategy type %q", string(st.Type))
	}
	return json.Marshal(out)
}

func (st *Strategy) UnmarshalJSON(b []byte) error {
	var in strategyJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	s := Strategy{Type: in.Type}
	switch in.Type {
	case StrategySimple:
		s.Single = in.Schedule
	case StrategyABTest:
		s.Groups = in.Groups
	case StrategyCriteria:
		s.Rules = in.Rules
		for i := range s.Rules {
			criteria.Normalize(&s.Rules[i].Criteria)
		}
	default:
		return fmt.Errorf("plans: unknown strategy type %q", string(in.Type))
	}
	*st = s
	return nil
}
