package model

import (
	"time"
)

// Status is a free-form workflow state. Values are compared case-sensitively
// against the vocabularies below; anything else is "unknown".
type Status string

const (
	StatusActive     Status = "Active"
	StatusPlanning   Status = "Planning"
	StatusCompleted  Status = "Completed"
	StatusBlocked    Status = "Blocked"
	StatusReady      Status = "Ready"
	StatusInProgress Status = "In Progress"
)

// Priority is a free-form urgency label.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// ItemType is a backlog item kind.
type ItemType string

const (
	TypeStory         ItemType = "Story"
	TypeEpic          ItemType = "Epic"
	TypeTechnicalDebt ItemType = "Technical Debt"
	TypeBug           ItemType = "Bug"
	TypeTask          ItemType = "Task"
)

// UnknownKey labels missing or out-of-vocabulary values in distributions.
const UnknownKey = "Unknown"

// Vocabularies, in display order.
var (
	EpicStatuses    = []Status{StatusActive, StatusPlanning, StatusCompleted, StatusBlocked}
	BacklogStatuses = []Status{StatusReady, StatusInProgress, StatusCompleted, StatusBlocked}
	SprintStatuses  = []Status{StatusActive, StatusPlanning, StatusCompleted}
	Priorities      = []Priority{PriorityHigh, PriorityMedium, PriorityLow}
)

// IsEpicStatus reports whether s is in the epic status vocabulary.
func (s Status) IsEpicStatus() bool { return containsStatus(EpicStatuses, s) }

// IsBacklogStatus reports whether s is in the backlog status vocabulary.
func (s Status) IsBacklogStatus() bool { return containsStatus(BacklogStatuses, s) }

// IsSprintStatus reports whether s is in the sprint status vocabulary.
func (s Status) IsSprintStatus() bool { return containsStatus(SprintStatuses, s) }

// Known reports whether p is High, Medium or Low.
func (p Priority) Known() bool {
	for _, v := range Priorities {
		if v == p {
			return true
		}
	}
	return false
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// StatusStrings converts a status vocabulary to plain strings.
func StatusStrings(list []Status) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = string(s)
	}
	return out
}

// PriorityStrings returns the priority vocabulary as plain strings.
func PriorityStrings() []string {
	out := make([]string, len(Priorities))
	for i, p := range Priorities {
		out[i] = string(p)
	}
	return out
}

// Epic is a large strategic unit of work.
type Epic struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Status        Status    `json:"status"`
	Team          string    `json:"team"`
	Priority      Priority  `json:"priority"`
	Progress      int       `json:"progress"`
	StoryPoints   int       `json:"story_points"`
	CurrentSprint string    `json:"current_sprint,omitempty"`
	StartDate     time.Time `json:"start_date,omitzero"`
	EndDate       time.Time `json:"end_date,omitzero"`

	// Delivery counters, only meaningful when the matching Has* flag is set.
	Deployments          float64 `json:"deployments,omitempty"`
	FailedDeployments    float64 `json:"failed_deployments,omitempty"`
	IncidentHours        float64 `json:"incident_hours,omitempty"`
	HasDeployments       bool    `json:"has_deployments,omitempty"`
	HasFailedDeployments bool    `json:"has_failed_deployments,omitempty"`
	HasIncidentHours     bool    `json:"has_incident_hours,omitempty"`
}

// ClampedProgress returns Progress clamped to [0,100].
func (e Epic) ClampedProgress() int { return ClampProgress(e.Progress) }

// HasDates reports whether both start and end dates are known.
func (e Epic) HasDates() bool { return !e.StartDate.IsZero() && !e.EndDate.IsZero() }

// EpicFromRecord normalizes a raw row into an Epic.
func EpicFromRecord(r Record) Epic {
	e := Epic{
		ID:            r.Get(FieldID...),
		Title:         r.Get(FieldTitle...),
		Description:   r.Get(FieldDescription...),
		Status:        Status(r.Get(FieldStatus...)),
		Team:          r.Get(FieldTeam...),
		Priority:      Priority(r.Get(FieldPriority...)),
		Progress:      ParseProgress(r.Get(FieldProgress...)),
		StoryPoints:   ParsePoints(r.Get(FieldStoryPoints...)),
		CurrentSprint: r.Get(FieldCurrentSprint...),
	}
	if t, ok := ParseDate(r.Get(FieldStartDate...)); ok {
		e.StartDate = t
	}
	if t, ok := ParseDate(r.Get(FieldEndDate...)); ok {
		e.EndDate = t
	}
	if v, ok := ParseNumber(r.Get(FieldDeployments...)); ok {
		e.Deployments = max(0, v)
		e.HasDeployments = true
	}
	if v, ok := ParseNumber(r.Get(FieldFailedDeployments...)); ok {
		e.FailedDeployments = max(0, v)
		e.HasFailedDeployments = true
	}
	if v, ok := ParseNumber(r.Get(FieldIncidentHours...)); ok {
		e.IncidentHours = max(0, v)
		e.HasIncidentHours = true
	}
	return e
}

// Team is a delivery team.
type Team struct {
	Title       string `json:"title"`
	StoryPoints int    `json:"story_points"`
	MemberCount int    `json:"member_count"`
}

var teamTitleFields = append(append([]string{}, FieldTitle...), FieldTeam...)

// TeamFromRecord normalizes a raw row into a Team.
func TeamFromRecord(r Record) Team {
	return Team{
		Title:       r.Get(teamTitleFields...),
		StoryPoints: ParsePoints(r.Get(FieldStoryPoints...)),
		MemberCount: ParseMemberCount(r.Get(FieldMemberCount...)),
	}
}

// BacklogItem is a story or task awaiting or in delivery.
type BacklogItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Type        ItemType `json:"type"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	Team        string   `json:"team"`
	StoryPoints int      `json:"story_points"`
	Description string   `json:"description,omitempty"`
}

// IsTechnicalDebt reports whether the item is typed as technical debt or
// describes a refactor.
func (b BacklogItem) IsTechnicalDebt() bool {
	return b.Type == TypeTechnicalDebt || ContainsAny(b.Description, "refactor")
}

// BacklogItemFromRecord normalizes a raw row into a BacklogItem.
func BacklogItemFromRecord(r Record) BacklogItem {
	return BacklogItem{
		ID:          r.Get(FieldID...),
		Title:       r.Get(FieldTitle...),
		Type:        ItemType(r.Get(FieldType...)),
		Status:      Status(r.Get(FieldStatus...)),
		Priority:    Priority(r.Get(FieldPriority...)),
		Team:        r.Get(FieldTeam...),
		StoryPoints: ParsePoints(r.Get(FieldStoryPoints...)),
		Description: r.Get(FieldDescription...),
	}
}

// Sprint is a fixed-length delivery iteration.
type Sprint struct {
	Title       string    `json:"title"`
	Status      Status    `json:"status"`
	StartDate   time.Time `json:"start_date,omitzero"`
	EndDate     time.Time `json:"end_date,omitzero"`
	StoryPoints int       `json:"story_points"`
	Progress    int       `json:"progress"`
	Team        string    `json:"team"`
	Goals       string    `json:"goals,omitempty"`
}

// ClampedProgress returns Progress clamped to [0,100].
func (s Sprint) ClampedProgress() int { return ClampProgress(s.Progress) }

var sprintTitleFields = append(append([]string{}, FieldTitle...), "Sprint", "Sprint Name")

// SprintFromRecord normalizes a raw row into a Sprint.
func SprintFromRecord(r Record) Sprint {
	s := Sprint{
		Title:       r.Get(sprintTitleFields...),
		Status:      Status(r.Get(FieldStatus...)),
		StoryPoints: ParsePoints(r.Get(FieldStoryPoints...)),
		Progress:    ParseProgress(r.Get(FieldProgress...)),
		Team:        r.Get(FieldTeam...),
		Goals:       r.Get(FieldGoals...),
	}
	if t, ok := ParseDate(r.Get(FieldStartDate...)); ok {
		s.StartDate = t
	}
	if t, ok := ParseDate(r.Get(FieldEndDate...)); ok {
		s.EndDate = t
	}
	return s
}
