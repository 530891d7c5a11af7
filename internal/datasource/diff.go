package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// SourceDiff represents differences between two snapshots. Epics and backlog
// items are matched by ID; keys are "<collection>/<id>".
type SourceDiff struct {
	SourceA string `json:"source_a"`
	SourceB string `json:"source_b"`
	// MissingInA contains keys present in B but not in A
	MissingInA []string `json:"missing_in_a,omitempty"`
	// MissingInB contains keys present in A but not in B
	MissingInB []string `json:"missing_in_b,omitempty"`
	// StatusMismatch contains records with different status between sources
	StatusMismatch []StatusDifference `json:"status_mismatch,omitempty"`
	CountA         int                `json:"count_a"`
	CountB         int                `json:"count_b"`
}

// StatusDifference represents a status mismatch for a single record
type StatusDifference struct {
	ID      string `json:"id"`
	StatusA string `json:"status_a"`
	StatusB string `json:"status_b"`
}

// HasInconsistencies returns true if there are any differences between sources
func (d SourceDiff) HasInconsistencies() bool {
	return len(d.MissingInA) > 0 || len(d.MissingInB) > 0 || len(d.StatusMismatch) > 0
}

// Summary returns a human-readable summary of the differences
func (d SourceDiff) Summary() string {
	if !d.HasInconsistencies() {
		return fmt.Sprintf("Sources match (%d records each)", d.CountA)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Differences between %s and %s:\n", d.SourceA, d.SourceB)
	if d.CountA != d.CountB {
		fmt.Fprintf(&sb, "  - Count mismatch: %d vs %d\n", d.CountA, d.CountB)
	}
	writeKeys := func(keys []string, in, notIn string) {
		if len(keys) == 0 {
			return
		}
		fmt.Fprintf(&sb, "  - %d records in %s but not %s\n", len(keys), in, notIn)
		if len(keys) <= 5 {
			for _, k := range keys {
				fmt.Fprintf(&sb, "    - %s\n", k)
			}
		}
	}
	writeKeys(d.MissingInA, d.SourceB, d.SourceA)
	writeKeys(d.MissingInB, d.SourceA, d.SourceB)
	if len(d.StatusMismatch) > 0 {
		fmt.Fprintf(&sb, "  - %d records with different status\n", len(d.StatusMismatch))
		if len(d.StatusMismatch) <= 5 {
			for _, m := range d.StatusMismatch {
				fmt.Fprintf(&sb, "    - %s: %s vs %s\n", m.ID, m.StatusA, m.StatusB)
			}
		}
	}
	return sb.String()
}

// DiffOptions configures the diff operation
type DiffOptions struct {
	// MaxDifferences limits the number of differences tracked per kind (0 = unlimited)
	MaxDifferences int
}

// DefaultDiffOptions returns sensible default diff options
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{MaxDifferences: 100}
}

func statusIndex(snap model.Snapshot) map[string]model.Status {
	idx := make(map[string]model.Status, len(snap.Epics)+len(snap.Backlog))
	for _, e := range snap.Epics {
		if e.ID != "" {
			idx[model.CollectionEpics+"/"+e.ID] = e.Status
		}
	}
	for _, b := range snap.Backlog {
		if b.ID != "" {
			idx[model.CollectionBacklog+"/"+b.ID] = b.Status
		}
	}
	return idx
}

// DetectInconsistencies compares two snapshots and returns differences.
// Output slices are sorted.
func DetectInconsistencies(a, b model.Snapshot, sourceA, sourceB string, opts DiffOptions) SourceDiff {
	diff := SourceDiff{SourceA: sourceA, SourceB: sourceB}
	mapA, mapB := statusIndex(a), statusIndex(b)
	diff.CountA, diff.CountB = len(mapA), len(mapB)

	room := func(n int) bool { return opts.MaxDifferences == 0 || n < opts.MaxDifferences }

	for _, id := range sortedKeys(mapA) {
		if _, ok := mapB[id]; !ok && room(len(diff.MissingInB)) {
			diff.MissingInB = append(diff.MissingInB, id)
		}
	}
	for _, id := range sortedKeys(mapB) {
		statusA, ok := mapA[id]
		switch {
		case !ok:
			if room(len(diff.MissingInA)) {
				diff.MissingInA = append(diff.MissingInA, id)
			}
		case statusA != mapB[id]:
			if room(len(diff.StatusMismatch)) {
				diff.StatusMismatch = append(diff.StatusMismatch, StatusDifference{
					ID:      id,
					StatusA: string(statusA),
					StatusB: string(mapB[id]),
				})
			}
		}
	}
	return diff
}

func sortedKeys(m map[string]model.Status) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CompareSources loads and compares two data sources
func CompareSources(ctx context.Context, sourceA, sourceB DataSource, opts DiffOptions) (*SourceDiff, error) {
	rawA, err := LoadFromSource(ctx, sourceA)
	if err != nil {
		return nil, fmt.Errorf("failed to load source A (%s): %w", sourceA.Path, err)
	}
	rawB, err := LoadFromSource(ctx, sourceB)
	if err != nil {
		return nil, fmt.Errorf("failed to load source B (%s): %w", sourceB.Path, err)
	}
	diff := DetectInconsistencies(model.Normalize(rawA), model.Normalize(rawB), sourceA.Path, sourceB.Path, opts)
	return &diff, nil
}

// InconsistencyReport is the result of comparing every pair of valid sources.
type InconsistencyReport struct {
	Sources              []DataSource `json:"sources"`
	Diffs                []SourceDiff `json:"diffs"`
	TotalInconsistencies int          `json:"total_inconsistencies"`
	// HasCriticalInconsistencies indicates status differences
	HasCriticalInconsistencies bool `json:"has_critical_inconsistencies"`
}

// GenerateInconsistencyReport compares all valid sources pairwise. Pairs that
// fail to load are skipped.
func GenerateInconsistencyReport(ctx context.Context, sources []DataSource, opts DiffOptions) *InconsistencyReport {
	report := &InconsistencyReport{Sources: sources, Diffs: []SourceDiff{}}
	for i := 0; i < len(sources); i++ {
		if !sources[i].Valid {
			continue
		}
		for j := i + 1; j < len(sources); j++ {
			if !sources[j].Valid {
				continue
			}
			diff, err := CompareSources(ctx, sources[i], sources[j], opts)
			if err != nil || !diff.HasInconsistencies() {
				continue
			}
			report.Diffs = append(report.Diffs, *diff)
			report.TotalInconsistencies += len(diff.MissingInA) + len(diff.MissingInB) + len(diff.StatusMismatch)
			if len(diff.StatusMismatch) > 0 {
				report.HasCriticalInconsistencies = true
			}
		}
	}
	return report
}
