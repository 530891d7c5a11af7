package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/pulseboard/pkg/analysis"
)

// Adaptive colors for light and dark terminals.
var (
	ColorText    = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorSubtext = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger  = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorHeader  = lipgloss.AdaptiveColor{Light: "#E8E8E8", Dark: "#363949"}
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorText).Background(ColorHeader).Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	errorStyle  = lipgloss.NewStyle().Foreground(ColorDanger).Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(ColorSubtext)
	badgeStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
)

// LevelBadge renders a DORA level as a colored badge.
func LevelBadge(l analysis.DORALevel) string {
	c := ColorWarning
	switch l {
	case analysis.LevelElite:
		c = ColorSuccess
	case analysis.LevelHigh:
		c = ColorInfo
	case analysis.LevelLow:
		c = ColorDanger
	}
	return badgeStyle.Foreground(c).Render(string(l))
}

// RiskBadge renders a risk level as a colored badge.
func RiskBadge(l analysis.RiskLevel) string {
	c := ColorWarning
	switch l {
	case analysis.RiskHigh:
		c = ColorDanger
	case analysis.RiskLow:
		c = ColorSuccess
	}
	return badgeStyle.Foreground(c).Render(string(l))
}

// CapacityBadge renders a capacity status as a colored badge.
func CapacityBadge(s analysis.CapacityStatus) string {
	c := ColorMuted
	switch s {
	case analysis.CapacityOverloaded:
		c = ColorDanger
	case analysis.CapacityHigh:
		c = ColorWarning
	case analysis.CapacityOptimal:
		c = ColorSuccess
	}
	return badgeStyle.Foreground(c).Render(string(s))
}
