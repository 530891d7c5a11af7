package analysis

import (
	"math"
	"strings"

	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// CollaborationLevel bands a collaboration index.
type CollaborationLevel string

const (
	CollabExcellent        CollaborationLevel = "Excellent"
	CollabGood             CollaborationLevel = "Good"
	CollabFair             CollaborationLevel = "Fair"
	CollabNeedsImprovement CollaborationLevel = "Needs Improvement"
)

// CollaborationScore rates how much a team interacts with others.
type CollaborationScore struct {
	Team               string             `json:"team"`
	EpicCount          int                `json:"epic_count"`
	BacklogCount       int                `json:"backlog_count"`
	CrossTeamEpics     int                `json:"cross_team_epics"`
	DependencyCount    int                `json:"dependency_count"`
	CommunicationScore int                `json:"communication_score"`
	CollaborationIndex int                `json:"collaboration_index"`
	Level              CollaborationLevel `json:"level"`
}

var (
	crossTeamKeywords  = []string{"collaboration", "integration"}
	dependencyKeywords = []string{"dependency", "integration"}
)

// ComputeCollaboration scores every team. A team's epics are those whose team
// field contains the team title, which lets joint epics ("Backend, Frontend")
// count for each participant.
func ComputeCollaboration(teams []model.Team, epics []model.Epic, backlog []model.BacklogItem, th Thresholds) []CollaborationScore {
	out := make([]CollaborationScore, 0, len(teams))
	for _, t := range teams {
		s := CollaborationScore{Team: t.Title}
		if t.Title != "" {
			for _, e := range epics {
				if !strings.Contains(e.Team, t.Title) {
					continue
				}
				s.EpicCount++
				if e.Team != t.Title || model.ContainsAny(e.Description, crossTeamKeywords...) {
					s.CrossTeamEpics++
				}
				if model.ContainsAny(e.Description, dependencyKeywords...) {
					s.DependencyCount++
				}
			}
		}
		for _, b := range backlog {
			if b.Team == t.Title {
				s.BacklogCount++
			}
		}
		s.CommunicationScore = min(100,
			s.EpicCount*th.EpicWeight+s.BacklogCount*th.BacklogWeight+s.CrossTeamEpics*th.CrossTeamWeight)
		s.CollaborationIndex = int(math.Round(float64(s.CommunicationScore+s.DependencyCount*th.DependencyWeight) / 2))
		s.Level = ClassifyCollaboration(s.CollaborationIndex, th)
		out = append(out, s)
	}
	return out
}

// ClassifyCollaboration maps an index to its band.
func ClassifyCollaboration(index int, th Thresholds) CollaborationLevel {
	switch {
	case index >= th.CollabExcellent:
		return CollabExcellent
	case index >= th.CollabGood:
		return CollabGood
	case index >= th.CollabFair:
		return CollabFair
	default:
		return CollabNeedsImprovement
	}
}
