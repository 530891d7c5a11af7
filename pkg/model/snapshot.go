package model

import (
	"time"
)

// Collection names used by loaders, exports and the API.
const (
	CollectionEpics   = "epics"
	CollectionTeams   = "teams"
	CollectionBacklog = "backlog"
	CollectionSprints = "sprints"
)

// Collections lists every collection name in load order.
var Collections = []string{CollectionEpics, CollectionTeams, CollectionBacklog, CollectionSprints}

// RawSnapshot holds one refresh cycle worth of unparsed rows.
type RawSnapshot struct {
	Epics    []Record
	Teams    []Record
	Backlog  []Record
	Sprints  []Record
	LoadedAt time.Time
	Source   string
}

// Set stores rows under the named collection. Unknown names are ignored.
func (r *RawSnapshot) Set(collection string, rows []Record) {
	switch collection {
	case CollectionEpics:
		r.Epics = rows
	case CollectionTeams:
		r.Teams = rows
	case CollectionBacklog:
		r.Backlog = rows
	case CollectionSprints:
		r.Sprints = rows
	}
}

// Snapshot is the normalized, immutable record set for one refresh cycle.
// A refresh replaces the whole snapshot; nothing is merged incrementally.
type Snapshot struct {
	Epics    []Epic        `json:"epics"`
	Teams    []Team        `json:"teams"`
	Backlog  []BacklogItem `json:"backlog"`
	Sprints  []Sprint      `json:"sprints"`
	LoadedAt time.Time     `json:"loaded_at,omitzero"`
	Source   string        `json:"source,omitempty"`
}

// Normalize converts every raw row into its typed record.
func Normalize(raw RawSnapshot) Snapshot {
	snap := Snapshot{
		Epics:    make([]Epic, 0, len(raw.Epics)),
		Teams:    make([]Team, 0, len(raw.Teams)),
		Backlog:  make([]BacklogItem, 0, len(raw.Backlog)),
		Sprints:  make([]Sprint, 0, len(raw.Sprints)),
		LoadedAt: raw.LoadedAt,
		Source:   raw.Source,
	}
	for _, r := range raw.Epics {
		snap.Epics = append(snap.Epics, EpicFromRecord(r))
	}
	for _, r := range raw.Teams {
		snap.Teams = append(snap.Teams, TeamFromRecord(r))
	}
	for _, r := range raw.Backlog {
		snap.Backlog = append(snap.Backlog, BacklogItemFromRecord(r))
	}
	for _, r := range raw.Sprints {
		snap.Sprints = append(snap.Sprints, SprintFromRecord(r))
	}
	return snap
}

// Len returns the total number of records across all collections.
func (s Snapshot) Len() int {
	return len(s.Epics) + len(s.Teams) + len(s.Backlog) + len(s.Sprints)
}

// Clone returns a deep copy whose slices do not alias s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Epics:    append([]Epic(nil), s.Epics...),
		Teams:    append([]Team(nil), s.Teams...),
		Backlog:  append([]BacklogItem(nil), s.Backlog...),
		Sprints:  append([]Sprint(nil), s.Sprints...),
		LoadedAt: s.LoadedAt,
		Source:   s.Source,
	}
}
