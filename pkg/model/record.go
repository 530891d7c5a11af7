// Package model defines the record shapes consumed by the analytics engine.
//
// Raw data arrives as flat string-keyed rows (parsed CSV). The normalized types
// in this package (Epic, Team, BacklogItem, Sprint) are built from those rows
// with tolerant parsing: absent or malformed values degrade to zero/defaults
// instead of failing, so an incomplete export still renders a dashboard.
package model

import (
	"sort"
	"strings"
)

// Record is one raw row keyed by column header.
type Record map[string]string

// Canonical field aliases. Lookups try each alias exactly, then fall back to a
// normalized comparison (case, spaces, underscores and dashes ignored).
var (
	FieldID                = []string{"ID", "Id", "Key", "Epic ID", "Item ID"}
	FieldTitle             = []string{"Title", "Name", "Summary"}
	FieldDescription       = []string{"Description", "Details"}
	FieldStatus            = []string{"Status", "State"}
	FieldTeam              = []string{"Team", "Team Name", "Owner Team"}
	FieldPriority          = []string{"Priority"}
	FieldProgress          = []string{"Progress", "Progress %", "Completion"}
	FieldStoryPoints       = []string{"Story Points", "StoryPoints", "Points", "Velocity"}
	FieldCurrentSprint     = []string{"Current Sprint", "Sprint"}
	FieldStartDate         = []string{"Start Date", "StartDate", "Start", "Created", "Created Date"}
	FieldEndDate           = []string{"End Date", "EndDate", "End", "Due Date", "Completed Date"}
	FieldDeployments       = []string{"Deployments", "Deployment Count", "Deploys"}
	FieldFailedDeployments = []string{"Failed Deployments", "Failed Deploys", "Deployment Failures"}
	FieldIncidentHours     = []string{"Incident Hours", "MTTR Hours", "Resolution Hours", "MTTR"}
	FieldMemberCount       = []string{"Members", "Member Count", "Team Size", "Headcount"}
	FieldType              = []string{"Type", "Item Type", "Issue Type"}
	FieldGoals             = []string{"Goals", "Sprint Goal", "Goal"}
)

// Get returns the value of the first alias present in the record, trimmed.
// Missing fields yield "".
func (r Record) Get(aliases ...string) string {
	v, _ := r.Lookup(aliases...)
	return v
}

// Lookup is like Get but also reports whether any alias was present with a
// non-blank value.
func (r Record) Lookup(aliases ...string) (string, bool) {
	if len(r) == 0 {
		return "", false
	}
	for _, a := range aliases {
		if v, ok := r[a]; ok {
			v = strings.TrimSpace(v)
			if v != "" {
				return v, true
			}
		}
	}
	// Fallback pass: compare normalized keys, alias order first, then key
	// order, so duplicate spellings resolve the same way on every call.
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, a := range aliases {
		na := normalizeKey(a)
		for _, k := range keys {
			if normalizeKey(k) != na {
				continue
			}
			if v := strings.TrimSpace(r[k]); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

func normalizeKey(k string) string {
	var sb strings.Builder
	sb.Grow(len(k))
	for _, r := range strings.ToLower(strings.TrimSpace(k)) {
		switch r {
		case ' ', '_', '-', '\t', '\ufeff':
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
