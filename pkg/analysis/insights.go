package analysis

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// InsightInput is the already-derived state the insight templates read from.
type InsightInput struct {
	Epics         []model.Epic
	Teams         []model.Team
	Backlog       []model.BacklogItem
	EpicDist      EpicDistribution
	Velocity      VelocitySummary
	Capacities    []TeamCapacity
	DORA          DORAMetrics
	Collaboration []CollaborationScore
	Risks         []RiskAssessment
	Timeline      Timeline
	Thresholds    Thresholds
}

// Topic is an insight section selected by query keywords.
type Topic string

const (
	TopicStatus     Topic = "status"
	TopicTimeline   Topic = "timeline"
	TopicRisk       Topic = "risk"
	TopicDependency Topic = "dependency"
	TopicCapacity   Topic = "capacity"
	TopicDORA       Topic = "dora"
)

var topicKeywords = []struct {
	topic    Topic
	keywords []string
}{
	{TopicStatus, []string{"status", "progress", "performance"}},
	{TopicTimeline, []string{"timeline", "schedule", "deadline"}},
	{TopicRisk, []string{"risk", "issue", "problem"}},
	{TopicDependency, []string{"dependency", "critical path", "bottleneck"}},
	{TopicCapacity, []string{"capacity", "velocity", "team"}},
	{TopicDORA, []string{"dora", "deploy", "quality"}},
}

// Insights is the templated answer to a dashboard question.
type Insights struct {
	Query           string   `json:"query"`
	Topics          []Topic  `json:"topics"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

// MatchTopics returns the topics whose keywords occur in query, in fixed
// order.
func MatchTopics(query string) []Topic {
	var out []Topic
	for _, tk := range topicKeywords {
		if model.ContainsAny(query, tk.keywords...) {
			out = append(out, tk.topic)
		}
	}
	return out
}

// GenerateInsights builds insight and recommendation lines for query. The
// overview and status distribution lines always lead; each matched topic adds
// its section; with no match a default overview set is used.
func GenerateInsights(in InsightInput, query string) Insights {
	res := Insights{Query: strings.TrimSpace(query), Topics: MatchTopics(query)}
	var ins, recs []string

	ins = append(ins, fmt.Sprintf("📊 Portfolio Scale: %d epics, %d teams, %d backlog items",
		len(in.Epics), len(in.Teams), len(in.Backlog)))
	ins = append(ins, "📈 Epic Status Distribution: "+formatShares(in.EpicDist.ByStatus))

	blocked := in.EpicDist.ByStatus.Count(string(model.StatusBlocked))
	deps, critical := dependencyStats(in.Collaboration)

	for _, topic := range res.Topics {
		switch topic {
		case TopicStatus:
			ins = append(ins, fmt.Sprintf("🎯 Average Epic Progress: %.1f%%", averageProgress(in.Epics)))
			if blocked > 0 {
				ins = append(ins, fmt.Sprintf("🚨 Blocked Epics: %d epics cannot progress", blocked))
				recs = append(recs, "⚡ Prioritize unblocking stalled epics", "🔄 Review resource allocation for struggling epics")
			} else {
				ins = append(ins, "✅ No epics are blocked")
				recs = append(recs, "🎯 Maintain current delivery momentum")
			}
		case TopicTimeline:
			ins = append(ins, fmt.Sprintf("⏰ Timeline Coverage: %d epics with schedule data", in.Timeline.Scheduled))
			if n := len(in.Timeline.Overdue); n > 0 {
				ins = append(ins, fmt.Sprintf("🚨 Overdue Epics: %d epics past deadline", n))
				recs = append(recs, "⚡ Address overdue epics immediately")
			}
			if n := len(in.Timeline.Upcoming); n > 0 {
				ins = append(ins, fmt.Sprintf("📅 Upcoming Deadlines: %d epics due within %d days", n, in.Thresholds.UpcomingWindowDays))
				recs = append(recs, "📋 Prepare for upcoming epic deadlines")
			}
			if in.Timeline.Scheduled > 0 {
				ins = append(ins, fmt.Sprintf("📊 Average Epic Duration: %.1f days", in.Timeline.AverageDurationDays))
			}
		case TopicRisk:
			high := 0
			for _, r := range in.Risks {
				if r.Level == RiskHigh {
					high++
				}
			}
			if len(in.Risks) > 0 {
				ins = append(ins, fmt.Sprintf("⚠️ Risks: %d identified, %d high severity", len(in.Risks), high))
				recs = append(recs, "🚨 Implement risk mitigation strategies", "📊 Establish regular risk assessment reviews")
			} else {
				ins = append(ins, "✅ Risk levels are within acceptable ranges")
				recs = append(recs, "🔍 Continue proactive risk monitoring")
			}
		case TopicDependency:
			ins = append(ins, fmt.Sprintf("🔗 Dependencies: %d dependent epics identified", deps))
			if len(critical) > 0 {
				ins = append(ins, fmt.Sprintf("⚠️ Critical Dependencies: %s", strings.Join(critical, ", ")))
				recs = append(recs, "🎯 Focus on teams with critical dependencies", "📋 Develop contingency plans for critical paths")
			} else {
				recs = append(recs, "✅ Dependency complexity is manageable")
			}
		case TopicCapacity:
			ins = append(ins, fmt.Sprintf("👥 Velocity: %d points across %d teams (avg %.1f)",
				in.Velocity.TotalVelocity, in.Velocity.TeamCount, in.Velocity.AverageVelocity))
			if over := overloadedTeams(in.Capacities); len(over) > 0 {
				ins = append(ins, "🔥 Overloaded Teams: "+strings.Join(over, ", "))
				recs = append(recs, "⚖️ Rebalance epic allocation away from overloaded teams")
			} else {
				ins = append(ins, fmt.Sprintf("📊 Average Utilization: %.1f%%", in.Velocity.AverageUtilization))
				recs = append(recs, "📈 Track utilization as new epics are planned")
			}
		case TopicDORA:
			for _, m := range in.DORA.All() {
				ins = append(ins, fmt.Sprintf("🚀 %s: %g %s (%s)", m.Name, m.Value, m.Unit, m.Level))
			}
			for _, m := range in.DORA.All() {
				if m.Level == LevelLow {
					recs = append(recs, fmt.Sprintf("🔧 Improve %s toward %s", strings.ToLower(m.Name), m.Target))
				}
			}
		}
	}

	if len(res.Topics) == 0 {
		ins = append(ins,
			fmt.Sprintf("⏰ Timeline Data: %d epics with schedule information", in.Timeline.Scheduled),
			fmt.Sprintf("🔗 Dependencies: %d dependent epics", deps),
			fmt.Sprintf("👥 Teams: %d teams, %d total velocity", in.Velocity.TeamCount, in.Velocity.TotalVelocity),
		)
		recs = append(recs,
			"📊 Conduct a comprehensive portfolio performance review",
			"🎯 Identify optimization opportunities across teams",
			"📈 Monitor key delivery indicators regularly",
		)
	}

	res.Insights = capLines(ins, in.Thresholds.MaxInsights)
	res.Recommendations = capLines(recs, in.Thresholds.MaxRecommendations)
	return res
}

func formatShares(d Distribution) string {
	if d.Total == 0 {
		return "no data"
	}
	parts := make([]string, 0, len(d.Buckets))
	for _, b := range d.Buckets {
		parts = append(parts, fmt.Sprintf("%s (%.1f%%)", b.Key, b.Share*100))
	}
	return strings.Join(parts, ", ")
}

func averageProgress(epics []model.Epic) float64 {
	xs := make([]float64, len(epics))
	for i, e := range epics {
		xs[i] = float64(e.ClampedProgress())
	}
	return mean(xs)
}

func dependencyStats(scores []CollaborationScore) (int, []string) {
	total := 0
	var critical []string
	for _, s := range scores {
		total += s.DependencyCount
		if s.DependencyCount > 2 {
			critical = append(critical, s.Team)
		}
	}
	return total, critical
}

func overloadedTeams(caps []TeamCapacity) []string {
	var out []string
	for _, c := range caps {
		if c.Status == CapacityOverloaded {
			out = append(out, c.Team)
		}
	}
	return out
}

func capLines(lines []string, limit int) []string {
	if lines == nil {
		lines = []string{}
	}
	if limit > 0 && len(lines) > limit {
		return lines[:limit]
	}
	return lines
}
