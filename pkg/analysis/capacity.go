package analysis

import (
	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// CapacityStatus bands team utilization.
type CapacityStatus string

const (
	CapacityOverloaded    CapacityStatus = "Overloaded"
	CapacityHigh          CapacityStatus = "High"
	CapacityOptimal       CapacityStatus = "Optimal"
	CapacityUnderutilized CapacityStatus = "Underutilized"
)

// TeamCapacity is the velocity and load figure for one team.
type TeamCapacity struct {
	Team            string         `json:"team"`
	Velocity        int            `json:"velocity"`
	MemberCount     int            `json:"member_count"`
	CapacityHours   float64        `json:"capacity_hours"`
	AllocatedPoints int            `json:"allocated_points"`
	Utilization     float64        `json:"utilization"`
	Status          CapacityStatus `json:"status"`
}

// VelocitySummary aggregates capacities across teams.
type VelocitySummary struct {
	TeamCount          int     `json:"team_count"`
	TotalVelocity      int     `json:"total_velocity"`
	AverageVelocity    float64 `json:"average_velocity"`
	TotalCapacityHours float64 `json:"total_capacity_hours"`
	AverageUtilization float64 `json:"average_utilization"`
}

// ComputeCapacity derives velocity, capacity and utilization per team, in
// team order. Allocated points are the story points of epics whose team is
// exactly the team title.
func ComputeCapacity(teams []model.Team, epics []model.Epic, th Thresholds) []TeamCapacity {
	allocated := make(map[string]int, len(teams))
	for _, e := range epics {
		allocated[e.Team] += max(0, e.StoryPoints)
	}

	out := make([]TeamCapacity, 0, len(teams))
	for _, t := range teams {
		members := t.MemberCount
		if members < 1 {
			members = model.DefaultMemberCount
		}
		hours := float64(members) * th.HoursPerMember
		alloc := allocated[t.Title]
		util := 0.0
		if hours > 0 {
			util = clamp(float64(alloc)*100/hours, 0, 100)
		}
		out = append(out, TeamCapacity{
			Team:            t.Title,
			Velocity:        max(0, t.StoryPoints),
			MemberCount:     members,
			CapacityHours:   hours,
			AllocatedPoints: alloc,
			Utilization:     util,
			Status:          ClassifyUtilization(util, th),
		})
	}
	return out
}

// ClassifyUtilization maps a utilization percentage to its band.
func ClassifyUtilization(util float64, th Thresholds) CapacityStatus {
	switch {
	case util >= th.UtilizationOverload:
		return CapacityOverloaded
	case util >= th.UtilizationHigh:
		return CapacityHigh
	case util >= th.UtilizationOptimal:
		return CapacityOptimal
	default:
		return CapacityUnderutilized
	}
}

// SummarizeVelocity totals and averages capacities. Averages are 0 for an
// empty input.
func SummarizeVelocity(capacities []TeamCapacity) VelocitySummary {
	s := VelocitySummary{TeamCount: len(capacities)}
	if len(capacities) == 0 {
		return s
	}
	velocities := make([]float64, len(capacities))
	utils := make([]float64, len(capacities))
	for i, c := range capacities {
		s.TotalVelocity += c.Velocity
		s.TotalCapacityHours += c.CapacityHours
		velocities[i] = float64(c.Velocity)
		utils[i] = c.Utilization
	}
	s.AverageVelocity = mean(velocities)
	s.AverageUtilization = mean(utils)
	return s
}
