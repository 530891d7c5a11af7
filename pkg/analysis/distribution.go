package analysis

import (
	"sort"

	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// Bucket is one group of a distribution.
type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
	// Share is Count divided by the distribution total.
	Share float64 `json:"share"`
	// Relative is Count divided by the largest bucket count, for bar widths.
	Relative float64 `json:"relative"`
}

// Distribution is a group-by-count over one field.
type Distribution struct {
	Total   int      `json:"total"`
	Buckets []Bucket `json:"buckets"`
}

// Count returns the count for key, or 0.
func (d Distribution) Count(key string) int {
	for _, b := range d.Buckets {
		if b.Key == key {
			return b.Count
		}
	}
	return 0
}

// Distribute groups keys by value. Empty keys, and keys outside vocab when
// vocab is non-nil, are counted under model.UnknownKey. Buckets are ordered by
// vocab, then remaining keys alphabetically, with Unknown last. Vocabulary
// entries with no occurrences are omitted.
func Distribute(keys []string, vocab []string) Distribution {
	counts := make(map[string]int)
	var inVocab map[string]bool
	if vocab != nil {
		inVocab = make(map[string]bool, len(vocab))
		for _, v := range vocab {
			inVocab[v] = true
		}
	}
	for _, k := range keys {
		switch {
		case k == "":
			k = model.UnknownKey
		case inVocab != nil && !inVocab[k]:
			k = model.UnknownKey
		}
		counts[k]++
	}

	order := make([]string, 0, len(counts))
	seen := make(map[string]bool, len(counts))
	for _, v := range vocab {
		if counts[v] > 0 && !seen[v] && v != model.UnknownKey {
			order = append(order, v)
			seen[v] = true
		}
	}
	var rest []string
	for k := range counts {
		if !seen[k] && k != model.UnknownKey {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)
	if counts[model.UnknownKey] > 0 {
		order = append(order, model.UnknownKey)
	}

	peak := 0
	for _, c := range counts {
		peak = max(peak, c)
	}
	d := Distribution{Total: len(keys), Buckets: make([]Bucket, 0, len(order))}
	for _, k := range order {
		c := counts[k]
		b := Bucket{Key: k, Count: c}
		if d.Total > 0 {
			b.Share = float64(c) / float64(d.Total)
		}
		if peak > 0 {
			b.Relative = float64(c) / float64(peak)
		}
		d.Buckets = append(d.Buckets, b)
	}
	return d
}

// BacklogDistribution groups backlog items by status, priority, type and team.
type BacklogDistribution struct {
	ByStatus   Distribution `json:"by_status"`
	ByPriority Distribution `json:"by_priority"`
	ByType     Distribution `json:"by_type"`
	ByTeam     Distribution `json:"by_team"`
}

// EpicDistribution groups epics by status, priority and team.
type EpicDistribution struct {
	ByStatus   Distribution `json:"by_status"`
	ByPriority Distribution `json:"by_priority"`
	ByTeam     Distribution `json:"by_team"`
}

// ComputeBacklogDistribution groups backlog items. Type and team have open
// vocabularies.
func ComputeBacklogDistribution(items []model.BacklogItem) BacklogDistribution {
	statuses := make([]string, len(items))
	priorities := make([]string, len(items))
	types := make([]string, len(items))
	teams := make([]string, len(items))
	for i, b := range items {
		statuses[i] = string(b.Status)
		priorities[i] = string(b.Priority)
		types[i] = string(b.Type)
		teams[i] = b.Team
	}
	return BacklogDistribution{
		ByStatus:   Distribute(statuses, model.StatusStrings(model.BacklogStatuses)),
		ByPriority: Distribute(priorities, model.PriorityStrings()),
		ByType:     Distribute(types, nil),
		ByTeam:     Distribute(teams, nil),
	}
}

// ComputeEpicDistribution groups epics.
func ComputeEpicDistribution(epics []model.Epic) EpicDistribution {
	statuses := make([]string, len(epics))
	priorities := make([]string, len(epics))
	teams := make([]string, len(epics))
	for i, e := range epics {
		statuses[i] = string(e.Status)
		priorities[i] = string(e.Priority)
		teams[i] = e.Team
	}
	return EpicDistribution{
		ByStatus:   Distribute(statuses, model.StatusStrings(model.EpicStatuses)),
		ByPriority: Distribute(priorities, model.PriorityStrings()),
		ByTeam:     Distribute(teams, nil),
	}
}
