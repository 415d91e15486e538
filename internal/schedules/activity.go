package schedules

import (
	"studysched/internal/validate"
)

// ActivityType is derived from which reference an Activity carries.
type ActivityType string

const (
	ActivityTask     ActivityType = "task"
	ActivitySurvey   ActivityType = "survey"
	ActivityCompound ActivityType = "compound"
)

// TaskReference points at a task definition by identifier.
type TaskReference struct {
	Identifier string `json:"identifier"`
}

// SurveyReference points at a survey, optionally pinned to a published revision.
type SurveyReference struct {
	GUID       string `json:"guid"`
	Identifier string `json:"identifier,omitempty"`
	CreatedOn  int64  `json:"createdOn,omitempty"` // epoch millis of the pinned revision
}

// CompoundActivity bundles several measures under one task identifier.
type CompoundActivity struct {
	TaskIdentifier string `json:"taskIdentifier"`
}

// Activity is an immutable value describing what the participant is asked to
// do. Exactly one of Task, Survey or Compound is set.
type Activity struct {
	Label       string            `json:"label"`
	LabelDetail string            `json:"labelDetail,omitempty"`
	GUID        string            `json:"guid"`
	Task        *TaskReference    `json:"task,omitempty"`
	Survey      *SurveyReference  `json:"survey,omitempty"`
	Compound    *CompoundActivity `json:"compoundActivity,omitempty"`
}

// Type reports the activity's kind; empty when no reference is set.
func (a Activity) Type() ActivityType {
	switch {
	case a.Task != nil:
		return ActivityTask
	case a.Survey != nil:
		return ActivitySurvey
	case a.Compound != nil:
		return ActivityCompound
	}
	return ""
}

// Equal reports full value equality.
func (a Activity) Equal(b Activity) bool {
	if a.Label != b.Label || a.LabelDetail != b.LabelDetail || a.GUID != b.GUID {
		return false
	}
	if (a.Task == nil) != (b.Task == nil) || (a.Survey == nil) != (b.Survey == nil) || (a.Compound == nil) != (b.Compound == nil) {
		return false
	}
	if a.Task != nil && *a.Task != *b.Task {
		return false
	}
	if a.Survey != nil && *a.Survey != *b.Survey {
		return false
	}
	if a.Compound != nil && *a.Compound != *b.Compound {
		return false
	}
	return true
}

func (a Activity) validateInto(errs *validate.Errors) {
	if a.GUID == "" {
		errs.Add("guid", "is required")
	}
	refs := 0
	if a.Task != nil {
		refs++
		if a.Task.Identifier == "" {
			errs.Add("task.identifier", "is required")
		}
	}
	if a.Survey != nil {
		refs++
		if a.Survey.GUID == "" {
			errs.Add("survey.guid", "is required")
		}
	}
	if a.Compound != nil {
		refs++
		if a.Compound.TaskIdentifier == "" {
			errs.Add("compoundActivity.taskIdentifier", "is required")
		}
	}
	if refs != 1 {
		errs.Add("", "must reference exactly one of task, survey or compoundActivity")
	}
}
