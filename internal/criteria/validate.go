package criteria

import (
	"studysched/internal/validate"
)

// Validate checks authoring-time sanity of a criteria rule set against the
// study's declared data-group universe. Problems are collected into errs;
// nothing here panics. These are plan-authoring checks, not matching checks.
func Validate(crit Criteria, availableGroups []string, errs *validate.Errors) {
	if crit.MinAppVersion != nil && *crit.MinAppVersion < 0 {
		errs.Add("minAppVersion", "cannot be negative")
	}
	if crit.MaxAppVersion != nil && *crit.MaxAppVersion < 0 {
		errs.Add("maxAppVersion", "cannot be negative")
	}
	if crit.MinAppVersion != nil && crit.MaxAppVersion != nil && *crit.MaxAppVersion < *crit.MinAppVersion {
		errs.Add("maxAppVersion", "cannot be less than minAppVersion")
	}

	declared := make(map[string]struct{}, len(availableGroups))
	for _, g := range availableGroups {
		declared[g] = struct{}{}
	}
	checkGroups := func(field string, groups []string) {
		for _, g := range groups {
			if _, ok := declared[g]; !ok {
				errs.Add(field, "%q is not a declared data group", g)
			}
		}
	}
	checkGroups("allOfGroups", crit.AllOfGroups)
	checkGroups("noneOfGroups", crit.NoneOfGroups)

	// A group required and forbidden at the same time can never match.
	all := make(map[string]struct{}, len(crit.AllOfGroups))
	for _, g := range crit.AllOfGroups {
		all[g] = struct{}{}
	}
	for _, g := range crit.NoneOfGroups {
		if _, ok := all[g]; ok {
			errs.Add("noneOfGroups", "%q appears in both allOfGroups and noneOfGroups", g)
		}
	}
}
