// Package criteria implements the participant-matching predicate used for
// schedule selection: app-version gating plus data-group inclusion/exclusion.
package criteria

import (
	"fmt"
	"strings"
)

// ClientInfo describes the participant's reporting client.
//
// AppVersion <= 0 means the client did not declare a version. Declared
// versions are trusted as self-reported; absence is treated as
// "unknown/unfiltered" and passes every version gate.
type ClientInfo struct {
	AppName    string `json:"appName,omitempty"`
	AppVersion int    `json:"appVersion,omitempty"`
	OSName     string `json:"osName,omitempty"`
	OSVersion  string `json:"osVersion,omitempty"`
}

// UnknownClient is the sentinel for requests that carried no client header.
var UnknownClient = ClientInfo{AppName: "unknown client"}

func (c ClientInfo) DeclaresVersion() bool { return c.AppVersion > 0 }

func (c ClientInfo) String() string {
	if c.AppName == "" {
		return UnknownClient.AppName
	}
	if c.DeclaresVersion() {
		return fmt.Sprintf("%s/%d", c.AppName, c.AppVersion)
	}
	return c.AppName
}

// Criteria is an inclusion/exclusion rule set. AllOfGroups and NoneOfGroups
// must be non-nil; New() initializes them empty.
type Criteria struct {
	MinAppVersion *int     `json:"minAppVersion,omitempty"`
	MaxAppVersion *int     `json:"maxAppVersion,omitempty"`
	AllOfGroups   []string `json:"allOfGroups"`
	NoneOfGroups  []string `json:"noneOfGroups"`
}

// New returns empty criteria that match every participant.
func New() Criteria {
	return Criteria{AllOfGroups: []string{}, NoneOfGroups: []string{}}
}

// Match reports whether a participant (client + data groups) satisfies the
// criteria.
//
// Nil group sets are programmer errors and panic at the violation point;
// callers construct Criteria via New() or decode them through a path that
// guarantees non-nil slices.
func Match(client ClientInfo, dataGroups []string, crit Criteria) bool {
	if dataGroups == nil {
		panic("criteria: data groups must not be nil")
	}
	if crit.AllOfGroups == nil || crit.NoneOfGroups == nil {
		panic("criteria: criteria group sets must not be nil")
	}

	// Version gate only applies when the client declared a version.
	if client.DeclaresVersion() {
		v := client.AppVersion
		if crit.MinAppVersion != nil && v < *crit.MinAppVersion {
			return false
		}
		if crit.MaxAppVersion != nil && v > *crit.MaxAppVersion {
			return false
		}
	}

	have := make(map[string]struct{}, len(dataGroups))
	for _, g := range dataGroups {
		have[g] = struct{}{}
	}
	for _, g := range crit.AllOfGroups {
		if _, ok := have[g]; !ok {
			return false
		}
	}
	for _, g := range crit.NoneOfGroups {
		if _, ok := have[g]; ok {
			return false
		}
	}
	return true
}

// Normalize trims group names and replaces nil sets with empty ones.
// Decoded wire values pass through here before use.
func Normalize(crit *Criteria) {
	crit.AllOfGroups = normalizeGroups(crit.AllOfGroups)
	crit.NoneOfGroups = normalizeGroups(crit.NoneOfGroups)
}

func normalizeGroups(in []string) []string {
	out := make([]string, 0, len(in))
	for _, g := range in {
		g = strings.TrimSpace(g)
		if g != "" {
			out = append(out, g)
		}
	}
	return out
}
