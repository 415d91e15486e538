package config

import (
	"reflect"
	"sort"
	"strings"

	logx "studysched/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) structured attrs for logging, and (3) the ids of studies whose
// declared data groups changed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 12)

	// Logging
	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Storage. Driver/path changes need a restart; surface them loudly.
	oldStore := StorageConfig{}
	if oldCfg.Storage != nil {
		oldStore = *oldCfg.Storage
	}
	newStore := StorageConfig{}
	if newCfg.Storage != nil {
		newStore = *newCfg.Storage
	}
	if oldStore != newStore {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newStore.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newStore.Path) != ""),
		)
	}

	// Planner
	if oldCfg.Planner != newCfg.Planner {
		changed = append(changed, "planner")
		attrs = append(attrs,
			logx.Bool("planner.enabled", newCfg.Planner.Enabled),
			logx.Int("planner.workers", newCfg.Planner.Workers),
			logx.String("planner.horizon", strings.TrimSpace(newCfg.Planner.Horizon)),
			logx.String("planner.timezone", strings.TrimSpace(newCfg.Planner.Timezone)),
		)
	}

	// Studies: report which data-group universes changed so plan validation
	// surfaces can warn about now-undeclared groups.
	changedStudies := diffStudies(oldCfg.Studies, newCfg.Studies)
	if len(changedStudies) > 0 {
		changed = append(changed, "studies")
		attrs = append(attrs, logx.Int("studies.changed", len(changedStudies)))
	}

	return changed, attrs, changedStudies
}

func diffStudies(oldS, newS []StudyConfig) []string {
	oldM := make(map[string][]string, len(oldS))
	for _, st := range oldS {
		oldM[st.ID] = st.DataGroups
	}
	newM := make(map[string][]string, len(newS))
	for _, st := range newS {
		newM[st.ID] = st.DataGroups
	}

	var out []string
	for id, groups := range newM {
		old, ok := oldM[id]
		if !ok || !reflect.DeepEqual(sortedCopy(old), sortedCopy(groups)) {
			out = append(out, id)
		}
	}
	for id := range oldM {
		if _, ok := newM[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
