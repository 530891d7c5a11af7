package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vanderheijden86/pulseboard/pkg/analysis"
	"github.com/vanderheijden86/pulseboard/pkg/dashboard"
	"github.com/vanderheijden86/pulseboard/pkg/metrics"
	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// ReportOptions controls the Markdown report.
type ReportOptions struct {
	Title string
	// Query, when set, appends the templated insights for that question.
	Query string
	// MaxEpics caps the epic table. Zero means no cap.
	MaxEpics int
}

// GenerateMarkdown renders a portfolio report for vm.
func GenerateMarkdown(vm dashboard.ViewModel, opts ReportOptions) string {
	defer metrics.Timer(metrics.ReportRender)()

	var sb strings.Builder
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Portfolio Report"
	}
	sum := vm.Summary

	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "*Generated: %s*\n\n", vm.GeneratedAt.Format(time.RFC1123))
	if !vm.Criteria.IsEmpty() {
		fmt.Fprintf(&sb, "*Filters: %s*\n\n", describeCriteria(vm))
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&sb, "| **Epics** | %d |\n", sum.Epics)
	fmt.Fprintf(&sb, "| Active | %d |\n", sum.ActiveEpics)
	fmt.Fprintf(&sb, "| Completed | %d |\n", sum.CompletedEpics)
	fmt.Fprintf(&sb, "| Blocked | %d |\n", sum.BlockedEpics)
	fmt.Fprintf(&sb, "| **Teams** | %d |\n", sum.Teams)
	fmt.Fprintf(&sb, "| **Backlog items** | %d (%d blocked) |\n", sum.Backlog, sum.BlockedItems)
	fmt.Fprintf(&sb, "| **Sprints** | %d |\n", sum.Sprints)
	fmt.Fprintf(&sb, "| Epic story points | %d |\n", sum.EpicStoryPoints)
	fmt.Fprintf(&sb, "| Average progress | %.1f%% %s |\n", sum.AverageProgress, barChart(sum.AverageProgress/100))
	fmt.Fprintf(&sb, "| Total velocity | %d |\n", sum.TotalVelocity)
	fmt.Fprintf(&sb, "| Average utilization | %.1f%% |\n", sum.AverageUtilization)
	fmt.Fprintf(&sb, "| Risks | %d (%d high) |\n", sum.Risks, sum.HighRisks)
	fmt.Fprintf(&sb, "| Overdue epics | %d |\n\n", sum.Overdue)

	writeDistribution(&sb, "Epics by Status", vm.EpicDistribution.ByStatus)
	writeDistribution(&sb, "Backlog by Priority", vm.BacklogDistribution.ByPriority)

	sb.WriteString("## Team Capacity\n\n")
	if len(vm.Capacities) == 0 {
		sb.WriteString("*No teams.*\n\n")
	} else {
		sb.WriteString("| Team | Velocity | Capacity (h) | Allocated | Utilization | Status |\n")
		sb.WriteString("|------|----------|--------------|-----------|-------------|--------|\n")
		for _, c := range vm.Capacities {
			fmt.Fprintf(&sb, "| %s | %d | %.0f | %d | %.1f%% | %s %s |\n",
				escapeCell(c.Team), c.Velocity, c.CapacityHours, c.AllocatedPoints,
				c.Utilization, getCapacityEmoji(c.Status), c.Status)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## DORA Metrics\n\n")
	sb.WriteString("| Metric | Value | Target | Level | Mode |\n")
	sb.WriteString("|--------|-------|--------|-------|------|\n")
	for _, m := range vm.DORA.All() {
		fmt.Fprintf(&sb, "| %s | %.1f %s | %s | %s %s | %s |\n",
			m.Name, m.Value, m.Unit, escapeCell(m.Target), getLevelEmoji(m.Level), m.Level, m.Mode)
	}
	sb.WriteString("\n")

	writeBurndown(&sb, vm.Burndown)

	sb.WriteString("## Risks\n\n")
	if len(vm.Risks) == 0 {
		sb.WriteString("*No risks detected.*\n\n")
	} else {
		for _, r := range vm.Risks {
			fmt.Fprintf(&sb, "- %s **%s** (%s, %s): %s\n", getRiskEmoji(r.Level), r.Title, r.Category, escapeCell(r.Team), r.Impact)
			fmt.Fprintf(&sb, "  - Mitigation: %s\n", r.Mitigation)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Timeline\n\n")
	fmt.Fprintf(&sb, "%d scheduled epics, average duration %.1f days.\n\n", vm.Timeline.Scheduled, vm.Timeline.AverageDurationDays)
	writeTimelineEntries(&sb, "Overdue", vm.Timeline.Overdue)
	writeTimelineEntries(&sb, "Upcoming", vm.Timeline.Upcoming)

	writeEpics(&sb, vm.Epics, opts.MaxEpics)

	if strings.TrimSpace(opts.Query) != "" {
		writeInsights(&sb, vm.Insights(opts.Query))
	}

	return sb.String()
}

// SaveMarkdownToFile writes the generated report to a file.
func SaveMarkdownToFile(vm dashboard.ViewModel, opts ReportOptions, filename string) error {
	content := GenerateMarkdown(vm, opts)
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// GenerateInsightsBrief renders only the insights answer, for the API and the
// interactive report.
func GenerateInsightsBrief(ins analysis.Insights) string {
	var sb strings.Builder
	writeInsights(&sb, ins)
	return sb.String()
}

func describeCriteria(vm dashboard.ViewModel) string {
	c := vm.Criteria
	var parts []string
	if len(c.Statuses) > 0 {
		parts = append(parts, "status="+strings.Join(c.Statuses, ","))
	}
	if len(c.Priorities) > 0 {
		parts = append(parts, "priority="+strings.Join(c.Priorities, ","))
	}
	if len(c.Teams) > 0 {
		parts = append(parts, "team="+strings.Join(c.Teams, ","))
	}
	if c.SearchText != "" {
		parts = append(parts, fmt.Sprintf("q=%q", c.SearchText))
	}
	return strings.Join(parts, "; ")
}

func writeDistribution(sb *strings.Builder, heading string, d analysis.Distribution) {
	fmt.Fprintf(sb, "## %s\n\n", heading)
	if d.Total == 0 {
		sb.WriteString("*No data.*\n\n")
		return
	}
	sb.WriteString("| Group | Count | Share | |\n|-------|-------|-------|---|\n")
	for _, b := range d.Buckets {
		fmt.Fprintf(sb, "| %s | %d | %.1f%% | %s |\n", escapeCell(b.Key), b.Count, b.Share*100, barChart(b.Relative))
	}
	sb.WriteString("\n")
}

func writeBurndown(sb *strings.Builder, b analysis.Burndown) {
	sb.WriteString("## Sprint Burndown\n\n")
	if b.Sprint == "" && len(b.Points) == 0 {
		sb.WriteString("*No sprint selected.*\n\n")
		return
	}
	fmt.Fprintf(sb, "**%s** (%s): %d points, %d%% complete, %d days.\n\n",
		escapeCell(b.Sprint), b.Status, b.Total, b.Progress, b.TotalDays)
	sb.WriteString("| Day | Ideal | Actual |\n|-----|-------|--------|\n")
	for _, p := range b.Points {
		fmt.Fprintf(sb, "| %d | %.1f | %.1f |\n", p.Day, p.Ideal, p.Actual)
	}
	sb.WriteString("\n")
}

func writeTimelineEntries(sb *strings.Builder, heading string, entries []analysis.TimelineEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(sb, "### %s\n\n", heading)
	sb.WriteString("| Epic | Team | End | Days left |\n|------|------|-----|-----------|\n")
	for _, e := range entries {
		fmt.Fprintf(sb, "| %s %s | %s | %s | %d |\n",
			e.ID, escapeCell(truncateString(e.Title, 48)), escapeCell(e.Team), e.End.Format("2006-01-02"), e.DaysLeft)
	}
	sb.WriteString("\n")
}

func writeEpics(sb *strings.Builder, epics []model.Epic, limit int) {
	sb.WriteString("## Epics\n\n")
	if len(epics) == 0 {
		sb.WriteString("*No epics.*\n\n")
		return
	}
	sb.WriteString("| ID | Title | Team | Status | Priority | Progress | Points |\n")
	sb.WriteString("|----|-------|------|--------|----------|----------|--------|\n")
	for i, e := range epics {
		if limit > 0 && i >= limit {
			fmt.Fprintf(sb, "\n*%d more epics not shown.*\n", len(epics)-limit)
			break
		}
		fmt.Fprintf(sb, "| %s | %s | %s | %s %s | %s | %d%% %s | %d |\n",
			escapeCell(e.ID), escapeCell(truncateString(e.Title, 48)), escapeCell(e.Team),
			getStatusEmoji(e.Status), e.Status, getPriorityLabel(e.Priority),
			e.ClampedProgress(), barChart(float64(e.ClampedProgress())/100), e.StoryPoints)
	}
	sb.WriteString("\n")
}

func writeInsights(sb *strings.Builder, ins analysis.Insights) {
	sb.WriteString("## Insights\n\n")
	if ins.Query != "" {
		fmt.Fprintf(sb, "> %s\n\n", strings.ReplaceAll(ins.Query, "\n", " "))
	}
	for _, line := range ins.Insights {
		fmt.Fprintf(sb, "- %s\n", line)
	}
	if len(ins.Recommendations) > 0 {
		sb.WriteString("\n### Recommendations\n\n")
		for i, line := range ins.Recommendations {
			fmt.Fprintf(sb, "%d. %s\n", i+1, line)
		}
	}
	sb.WriteString("\n")
}

// escapeCell keeps user text from breaking table rows.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}

func getStatusEmoji(status model.Status) string {
	switch status {
	case model.StatusActive, model.StatusInProgress:
		return "🔵"
	case model.StatusPlanning, model.StatusReady:
		return "🟢"
	case model.StatusBlocked:
		return "🔴"
	case model.StatusCompleted:
		return "⚫"
	default:
		return "⚪"
	}
}

func getPriorityLabel(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "⚡ High"
	case model.PriorityMedium:
		return "🔹 Medium"
	case model.PriorityLow:
		return "☕ Low"
	case "":
		return model.UnknownKey
	default:
		return string(p)
	}
}

func getLevelEmoji(l analysis.DORALevel) string {
	switch l {
	case analysis.LevelElite:
		return "🏆"
	case analysis.LevelHigh:
		return "✅"
	default:
		return "⚠️"
	}
}

func getRiskEmoji(l analysis.RiskLevel) string {
	switch l {
	case analysis.RiskHigh:
		return "🔴"
	case analysis.RiskMedium:
		return "🟠"
	default:
		return "🟡"
	}
}

func getCapacityEmoji(s analysis.CapacityStatus) string {
	switch s {
	case analysis.CapacityOverloaded:
		return "🔥"
	case analysis.CapacityHigh:
		return "⚡"
	case analysis.CapacityOptimal:
		return "✅"
	default:
		return "💤"
	}
}

// barChart creates a mini ASCII bar chart for a 0-1 value
func barChart(value float64) string {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	filled := int(value * 4)
	switch filled {
	case 0:
		return "░░░░"
	case 1:
		return "█░░░"
	case 2:
		return "██░░"
	case 3:
		return "███░"
	default:
		return "████"
	}
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
