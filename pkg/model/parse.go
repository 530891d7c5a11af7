package model

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultMemberCount is assumed for teams with no usable member count.
const DefaultMemberCount = 5

// dateLayouts lists accepted calendar date formats, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
}

// ParseNumber parses a loosely formatted number ("40", " 40.5 ", "75%",
// "1,200"). Anything unparseable, NaN or infinite yields (0, false).
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParsePoints parses a story point count. Fractions truncate toward zero and
// negative or malformed values become 0.
func ParsePoints(s string) int {
	f, ok := ParseNumber(s)
	if !ok || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

// ParseProgress parses a progress value without clamping. Use ClampProgress at
// the point of use.
func ParseProgress(s string) int {
	f, ok := ParseNumber(s)
	if !ok {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	return int(math.Round(f))
}

// ClampProgress clamps a progress value into [0,100].
func ClampProgress(p int) int {
	return max(0, min(100, p))
}

// ParseMemberCount parses a team size, defaulting to DefaultMemberCount when
// absent, malformed or not positive.
func ParseMemberCount(s string) int {
	f, ok := ParseNumber(s)
	if !ok || f < 1 {
		return DefaultMemberCount
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

// ParseDate parses a calendar date in any accepted layout. Dates without a
// zone are interpreted as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ContainsAny reports whether text contains any keyword, case-insensitively.
// Partial words match ("disintegration" contains "integration").
func ContainsAny(text string, keywords ...string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
