// Package tui holds the terminal front ends of pulse: the live dashboard
// behind `pulse watch`, the interactive criteria form, and helpers that
// render reports for a terminal.
package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/pulseboard/pkg/dashboard"
)

// RenderMarkdown renders md for a terminal of the given width.
func RenderMarkdown(md string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

// CopyToClipboard places text on the system clipboard.
func CopyToClipboard(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard is not available on this system")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

// fit truncates s to width cells and pads it with spaces.
func fit(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}

// SummaryTable renders the headline numbers, DORA levels and team capacity
// as aligned plain-text tables with colored badges.
func SummaryTable(vm dashboard.ViewModel) string {
	var sb strings.Builder
	s := vm.Summary

	rows := [][2]string{
		{"Epics", fmt.Sprintf("%d (%d active, %d blocked, %d completed)", s.Epics, s.ActiveEpics, s.BlockedEpics, s.CompletedEpics)},
		{"Teams", fmt.Sprintf("%d", s.Teams)},
		{"Backlog", fmt.Sprintf("%d items, %d blocked", s.Backlog, s.BlockedItems)},
		{"Velocity", fmt.Sprintf("%d pts", s.TotalVelocity)},
		{"Progress", fmt.Sprintf("%.1f%%", s.AverageProgress)},
		{"Utilization", fmt.Sprintf("%.1f%%", s.AverageUtilization)},
		{"Risks", fmt.Sprintf("%d (%d high, %d medium)", s.Risks, s.HighRisks, s.MediumRisks)},
		{"Overdue", fmt.Sprintf("%d", s.Overdue)},
	}
	for _, r := range rows {
		sb.WriteString(mutedStyle.Render(fit(r[0], 12)))
		sb.WriteString(r[1])
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	for _, m := range vm.DORA.All() {
		sb.WriteString(fit(m.Name, 26))
		sb.WriteString(fit(fmt.Sprintf("%.1f %s", m.Value, m.Unit), 22))
		sb.WriteString(LevelBadge(m.Level))
		sb.WriteString("\n")
	}

	if len(vm.Capacities) > 0 {
		sb.WriteString("\n")
		sb.WriteString(mutedStyle.Render(fit("Team", 18) + fit("Velocity", 10) + fit("Util", 9) + "Status"))
		sb.WriteString("\n")
		for _, c := range vm.Capacities {
			sb.WriteString(fit(c.Team, 18))
			sb.WriteString(fit(fmt.Sprintf("%d", c.Velocity), 10))
			sb.WriteString(fit(fmt.Sprintf("%.1f%%", c.Utilization), 9))
			sb.WriteString(CapacityBadge(c.Status))
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), " \n") + "\n"
}
