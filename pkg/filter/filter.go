// Package filter applies dashboard filter criteria to record collections.
//
// Constraints within a dimension are OR-combined (inclusion in a set),
// dimensions are AND-combined, and an empty set never restricts anything, so
// clearing a selection in the UI shows all data again.
package filter

import (
	"strings"

	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// Dimension identifies a filterable field.
type Dimension uint8

const (
	DimStatus Dimension = 1 << iota
	DimPriority
	DimTeam
)

// Fields is the filter-relevant projection of a record.
type Fields struct {
	// Dims lists the dimensions this record kind carries. Constraints on
	// dimensions a record does not carry are ignored for that record.
	Dims        Dimension
	Status      string
	Priority    string
	Team        string
	ID          string
	Title       string
	Description string
}

// Filterable is implemented by every record kind the engine filters.
type Filterable interface {
	FilterFields() Fields
}

// Criteria is the shared filter state for one render.
type Criteria struct {
	Statuses   []string `json:"statuses,omitempty" yaml:"statuses,omitempty"`
	Priorities []string `json:"priorities,omitempty" yaml:"priorities,omitempty"`
	Teams      []string `json:"teams,omitempty" yaml:"teams,omitempty"`
	SearchText string   `json:"search_text,omitempty" yaml:"search_text,omitempty"`
}

// IsEmpty reports whether the criteria match everything.
func (c Criteria) IsEmpty() bool {
	return len(c.Statuses) == 0 && len(c.Priorities) == 0 && len(c.Teams) == 0 &&
		strings.TrimSpace(c.SearchText) == ""
}

// Normalize trims values, drops blanks and removes duplicates while keeping
// first-seen order.
func (c Criteria) Normalize() Criteria {
	return Criteria{
		Statuses:   cleanList(c.Statuses),
		Priorities: cleanList(c.Priorities),
		Teams:      cleanList(c.Teams),
		SearchText: strings.TrimSpace(c.SearchText),
	}
}

// ParseList splits comma separated values, as used by query strings and
// CLI flags.
func ParseList(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			out = append(out, part)
		}
	}
	return cleanList(out)
}

func cleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Apply returns the items matching every constraint in c, preserving input
// order. The result never aliases items.
func Apply[T Filterable](items []T, c Criteria) []T {
	return ApplyFunc(items, c, func(v T) Fields { return v.FilterFields() })
}

// ApplyFunc is Apply for types that do not implement Filterable themselves.
func ApplyFunc[T any](items []T, c Criteria, fields func(T) Fields) []T {
	m := newMatcher(c)
	out := make([]T, 0, len(items))
	for _, item := range items {
		if m.match(fields(item)) {
			out = append(out, item)
		}
	}
	return out
}

// Matches reports whether a single item satisfies c.
func Matches(item Filterable, c Criteria) bool {
	return newMatcher(c).match(item.FilterFields())
}

type matcher struct {
	statuses   map[string]struct{}
	priorities map[string]struct{}
	teams      map[string]struct{}
	query      string
}

func newMatcher(c Criteria) matcher {
	return matcher{
		statuses:   toSet(c.Statuses),
		priorities: toSet(c.Priorities),
		teams:      toSet(c.Teams),
		query:      strings.ToLower(strings.TrimSpace(c.SearchText)),
	}
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func (m matcher) match(f Fields) bool {
	if f.Dims&DimStatus != 0 && !inSet(m.statuses, f.Status) {
		return false
	}
	if f.Dims&DimPriority != 0 && !inSet(m.priorities, f.Priority) {
		return false
	}
	if f.Dims&DimTeam != 0 && !inSet(m.teams, f.Team) {
		return false
	}
	if m.query == "" {
		return true
	}
	haystack := strings.ToLower(f.Title + " " + f.Description + " " + f.ID + " " + f.Team)
	return strings.Contains(haystack, m.query)
}

// inSet treats an empty (nil) set as "match all".
func inSet(set map[string]struct{}, v string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[v]
	return ok
}

// Epics filters epics.
func Epics(items []model.Epic, c Criteria) []model.Epic {
	return ApplyFunc(items, c, EpicFields)
}

// Teams filters teams by the team dimension (their title) and search text.
func Teams(items []model.Team, c Criteria) []model.Team {
	return ApplyFunc(items, c, TeamFields)
}

// Backlog filters backlog items.
func Backlog(items []model.BacklogItem, c Criteria) []model.BacklogItem {
	return ApplyFunc(items, c, BacklogFields)
}

// Sprints filters sprints by status, team and search text.
func Sprints(items []model.Sprint, c Criteria) []model.Sprint {
	return ApplyFunc(items, c, SprintFields)
}

// Snapshot filters every collection of snap.
func Snapshot(snap model.Snapshot, c Criteria) model.Snapshot {
	return model.Snapshot{
		Epics:    Epics(snap.Epics, c),
		Teams:    Teams(snap.Teams, c),
		Backlog:  Backlog(snap.Backlog, c),
		Sprints:  Sprints(snap.Sprints, c),
		LoadedAt: snap.LoadedAt,
		Source:   snap.Source,
	}
}

// EpicFields projects an epic onto status, priority and team.
func EpicFields(e model.Epic) Fields {
	return Fields{
		Dims:        DimStatus | DimPriority | DimTeam,
		Status:      string(e.Status),
		Priority:    string(e.Priority),
		Team:        e.Team,
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
	}
}

// TeamFields projects a team; its title doubles as the team dimension.
func TeamFields(t model.Team) Fields {
	return Fields{Dims: DimTeam, Team: t.Title, Title: t.Title}
}

// BacklogFields projects a backlog item onto status, priority and team.
func BacklogFields(b model.BacklogItem) Fields {
	return Fields{
		Dims:        DimStatus | DimPriority | DimTeam,
		Status:      string(b.Status),
		Priority:    string(b.Priority),
		Team:        b.Team,
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
	}
}

// SprintFields projects a sprint onto status and team. Sprints carry no
// priority, and their goals are searched as the description.
func SprintFields(s model.Sprint) Fields {
	return Fields{
		Dims:        DimStatus | DimTeam,
		Status:      string(s.Status),
		Team:        s.Team,
		Title:       s.Title,
		Description: s.Goals,
	}
}
