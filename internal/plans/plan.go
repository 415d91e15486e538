// Package plans pairs schedules with the strategy that decides which
// participant gets which schedule.
package plans

import (
	"encoding/json"

	"github.com/google/uuid"

	"studysched/internal/validate"
)

// SchedulePlan names a strategy within a study. The planner expands every
// plan of a study for each participant.
type SchedulePlan struct {
	GUID     string    `json:"guid"`
	Label    string    `json:"label,omitempty"`
	StudyID  string    `json:"studyId"`
	Strategy *Strategy `json:"strategy"`
}

// NewPlan mints a plan with a fresh guid.
func NewPlan(studyID, label string, strategy *Strategy) *SchedulePlan {
	return &SchedulePlan{
		GUID:     uuid.NewString(),
		Label:    label,
		StudyID:  studyID,
		Strategy: strategy,
	}
}

// Validate collects authoring-time problems for the whole plan, scoped under
// field paths. availableGroups is the study's declared data-group universe.
func (p *SchedulePlan) Validate(availableGroups []string) *validate.Errors {
	errs := validate.New()
	if p.StudyID == "" {
		errs.Add("studyId", "is required")
	}
	if p.GUID == "" {
		errs.Add("guid", "is required")
	}
	if p.Strategy == nil {
		errs.Add("strategy", "is required")
	} else {
		p.Strategy.Validate(availableGroups, errs.Scoped("strategy"))
	}
	return errs
}

// Encode renders the plan for storage; Decode is its inverse.
func (p *SchedulePlan) Encode() ([]byte, error) { return json.Marshal(p) }

func Decode(b []byte) (*SchedulePlan, error) {
	var p SchedulePlan
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
