package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// RiskLevel is the severity of a risk.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "High"
	RiskMedium RiskLevel = "Medium"
	RiskLow    RiskLevel = "Low"
)

// RiskCategory identifies the rule that produced a risk.
type RiskCategory string

const (
	RiskTechnicalDebt RiskCategory = "Technical Debt"
	RiskOperational   RiskCategory = "Operational"
	RiskSecurity      RiskCategory = "Security"
	RiskCompliance    RiskCategory = "Compliance"
	RiskDelivery      RiskCategory = "Delivery"
)

// AllTeams is the team label for organization-wide risks.
const AllTeams = "All Teams"

// riskNamespace seeds the name-based risk IDs.
var riskNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://pulseboard.dev/risk"))

// RiskAssessment is one triggered risk rule for one team.
type RiskAssessment struct {
	ID          string       `json:"id"`
	Category    RiskCategory `json:"category"`
	Level       RiskLevel    `json:"level"`
	Team        string       `json:"team"`
	Title       string       `json:"title"`
	Impact      string       `json:"impact"`
	Mitigation  string       `json:"mitigation"`
	Count       int          `json:"count"`
	EvaluatedAt time.Time    `json:"evaluated_at"`
}

// RiskSummary counts risks by level and category.
type RiskSummary struct {
	Total      int                  `json:"total"`
	ByLevel    map[RiskLevel]int    `json:"by_level"`
	ByCategory map[RiskCategory]int `json:"by_category"`
}

var (
	securityKeywords   = []string{"security", "vulnerability"}
	complianceKeywords = []string{"compliance", "audit"}
)

// AssessRisks evaluates every rule for every team. Rules are independent, so
// one team can carry several risks. Teams are visited in team-collection
// order, then teams that only appear on epics or backlog items in order of
// first appearance. The organization-wide delivery rule comes last.
func AssessRisks(teams []model.Team, epics []model.Epic, backlog []model.BacklogItem, th Thresholds, now time.Time) []RiskAssessment {
	var out []RiskAssessment
	for _, team := range riskTeams(teams, epics, backlog) {
		debt, blocked := 0, 0
		for _, b := range backlog {
			if b.Team != team {
				continue
			}
			if b.IsTechnicalDebt() {
				debt++
			}
			if b.Status == model.StatusBlocked {
				blocked++
			}
		}
		security, compliance := 0, 0
		for _, e := range epics {
			if e.Team != team {
				continue
			}
			if model.ContainsAny(e.Description, securityKeywords...) {
				security++
			}
			if model.ContainsAny(e.Description, complianceKeywords...) {
				compliance++
			}
		}

		if debt > th.TechDebtMedium {
			level := RiskMedium
			if debt > th.TechDebtHigh {
				level = RiskHigh
			}
			out = append(out, newRisk(RiskTechnicalDebt, level, team, debt, now,
				fmt.Sprintf("%d technical debt items", debt),
				"Accumulated debt slows feature delivery and raises defect rates",
				"Reserve sprint capacity for refactoring and debt burn-down"))
		}
		if blocked > th.BlockedMedium {
			level := RiskMedium
			if blocked > th.BlockedHigh {
				level = RiskHigh
			}
			out = append(out, newRisk(RiskOperational, level, team, blocked, now,
				fmt.Sprintf("%d blocked backlog items", blocked),
				"Blocked work stalls flow and delays dependent teams",
				"Run a blocker review and escalate external dependencies"))
		}
		if security > 0 {
			out = append(out, newRisk(RiskSecurity, RiskHigh, team, security, now,
				"Security-sensitive work in flight",
				"Vulnerabilities may reach production if not reviewed",
				"Schedule a security review and threat model before release"))
		}
		if compliance > 0 {
			out = append(out, newRisk(RiskCompliance, RiskMedium, team, compliance, now,
				"Compliance or audit obligations",
				"Missed obligations can block releases or trigger findings",
				"Track audit evidence and confirm sign-off owners"))
		}
	}

	if len(epics) > 0 {
		active := 0
		for _, e := range epics {
			if e.Status == model.StatusActive {
				active++
			}
		}
		if ratio := float64(active) / float64(len(epics)); ratio < th.DeliveryActiveRatio {
			out = append(out, newRisk(RiskDelivery, RiskHigh, AllTeams, active, now,
				fmt.Sprintf("Only %.0f%% of epics are active", ratio*100),
				"Low work in progress across the portfolio puts delivery dates at risk",
				"Re-plan the roadmap and move approved epics into execution"))
		}
	}
	return out
}

func newRisk(cat RiskCategory, level RiskLevel, team string, count int, now time.Time, title, impact, mitigation string) RiskAssessment {
	return RiskAssessment{
		ID:          RiskID(cat, team),
		Category:    cat,
		Level:       level,
		Team:        team,
		Title:       title,
		Impact:      impact,
		Mitigation:  mitigation,
		Count:       count,
		EvaluatedAt: now,
	}
}

// RiskID is stable for a category and team across refreshes.
func RiskID(cat RiskCategory, team string) string {
	return uuid.NewSHA1(riskNamespace, []byte(string(cat)+"\x00"+team)).String()
}

func riskTeams(teams []model.Team, epics []model.Epic, backlog []model.BacklogItem) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if strings.TrimSpace(name) == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, t := range teams {
		add(t.Title)
	}
	for _, e := range epics {
		add(e.Team)
	}
	for _, b := range backlog {
		add(b.Team)
	}
	return out
}

// SummarizeRisks counts risks by level and category.
func SummarizeRisks(risks []RiskAssessment) RiskSummary {
	s := RiskSummary{
		Total:      len(risks),
		ByLevel:    map[RiskLevel]int{RiskHigh: 0, RiskMedium: 0, RiskLow: 0},
		ByCategory: make(map[RiskCategory]int),
	}
	for _, r := range risks {
		s.ByLevel[r.Level]++
		s.ByCategory[r.Category]++
	}
	return s
}

// Categories returns the categories present in s, sorted.
func (s RiskSummary) Categories() []RiskCategory {
	out := make([]RiskCategory, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
