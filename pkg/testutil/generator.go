// Package testutil provides deterministic synthetic snapshots for tests and
// the sample-data script. All generators produce identical output for the
// same seed.
package testutil

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// Column headers written by the generator, in CSV column order.
var (
	EpicHeader    = []string{"ID", "Title", "Description", "Status", "Team", "Priority", "Progress", "Story Points", "Current Sprint", "Start Date", "End Date", "Deployments", "Failed Deployments", "Incident Hours"}
	TeamHeader    = []string{"Title", "Story Points", "Members"}
	BacklogHeader = []string{"ID", "Title", "Type", "Status", "Priority", "Team", "Story Points", "Description"}
	SprintHeader  = []string{"Title", "Status", "Start Date", "End Date", "Story Points", "Progress", "Team", "Goals"}
)

// GeneratorConfig controls snapshot generation.
type GeneratorConfig struct {
	Seed            int64     // Random seed for determinism (0 = use current time)
	Teams           []string  // Team names (default: Backend, Frontend, Platform)
	Epics           int       // Number of epics
	BacklogItems    int       // Number of backlog items
	Sprints         int       // Number of sprints
	BaseTime        time.Time // Anchor for generated dates (default: fixed time)
	WithDeployments bool      // Emit deployment/incident counters on epics
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:            42,
		Teams:           []string{"Backend", "Frontend", "Platform"},
		Epics:           12,
		BacklogItems:    30,
		Sprints:         3,
		BaseTime:        time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		WithDeployments: true,
	}
}

// Generator creates synthetic snapshots.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.BaseTime.IsZero() {
		cfg.BaseTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	}
	if len(cfg.Teams) == 0 {
		cfg.Teams = []string{"Backend", "Frontend", "Platform"}
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

var (
	epicThemes = []string{"Payments", "Search", "Onboarding", "Observability", "Checkout", "Identity", "Reporting", "Mobile"}
	epicNotes  = []string{
		"Partner integration with billing",
		"Security hardening of session handling",
		"Quarterly compliance audit evidence",
		"Cross-team collaboration on API contracts",
		"Depends on the platform dependency upgrade",
		"Customer facing improvements",
		"",
	}
	backlogNotes = []string{"Refactor legacy handler", "New endpoint", "Fix flaky test", "Copy update", ""}
	itemTypes    = []model.ItemType{model.TypeStory, model.TypeStory, model.TypeBug, model.TypeTask, model.TypeTechnicalDebt}
)

// Raw generates the four collections as raw CSV-shaped records.
func (g *Generator) Raw() model.RawSnapshot {
	raw := model.RawSnapshot{LoadedAt: g.cfg.BaseTime, Source: "testutil"}
	base := g.cfg.BaseTime.Truncate(24 * time.Hour)

	for _, team := range g.cfg.Teams {
		raw.Teams = append(raw.Teams, model.Record{
			"Title":        team,
			"Story Points": strconv.Itoa(20 + g.rng.Intn(40)),
			"Members":      strconv.Itoa(3 + g.rng.Intn(6)),
		})
	}

	for i := 0; i < g.cfg.Epics; i++ {
		start := base.AddDate(0, 0, -g.rng.Intn(90))
		end := start.AddDate(0, 0, 7+g.rng.Intn(60))
		rec := model.Record{
			"ID":             fmt.Sprintf("EP-%03d", i+1),
			"Title":          fmt.Sprintf("%s %d", pick(g.rng, epicThemes), i+1),
			"Description":    pick(g.rng, epicNotes),
			"Status":         string(pick(g.rng, model.EpicStatuses)),
			"Team":           pick(g.rng, g.cfg.Teams),
			"Priority":       string(pick(g.rng, model.Priorities)),
			"Progress":       strconv.Itoa(g.rng.Intn(101)),
			"Story Points":   strconv.Itoa(5 + g.rng.Intn(40)),
			"Current Sprint": fmt.Sprintf("Sprint %d", 1+g.rng.Intn(max(1, g.cfg.Sprints))),
			"Start Date":     start.Format("2006-01-02"),
			"End Date":       end.Format("2006-01-02"),
		}
		if g.cfg.WithDeployments {
			deploys := g.rng.Intn(12)
			rec["Deployments"] = strconv.Itoa(deploys)
			rec["Failed Deployments"] = strconv.Itoa(g.rng.Intn(deploys/3 + 1))
			rec["Incident Hours"] = strconv.FormatFloat(float64(g.rng.Intn(480))/10, 'f', 1, 64)
		}
		raw.Epics = append(raw.Epics, rec)
	}

	for i := 0; i < g.cfg.BacklogItems; i++ {
		raw.Backlog = append(raw.Backlog, model.Record{
			"ID":           fmt.Sprintf("BL-%03d", i+1),
			"Title":        fmt.Sprintf("Backlog item %d", i+1),
			"Type":         string(pick(g.rng, itemTypes)),
			"Status":       string(pick(g.rng, model.BacklogStatuses)),
			"Priority":     string(pick(g.rng, model.Priorities)),
			"Team":         pick(g.rng, g.cfg.Teams),
			"Story Points": strconv.Itoa(1 + g.rng.Intn(13)),
			"Description":  pick(g.rng, backlogNotes),
		})
	}

	for i := 0; i < g.cfg.Sprints; i++ {
		start := base.AddDate(0, 0, 14*(i-g.cfg.Sprints+1))
		status := model.StatusCompleted
		if i == g.cfg.Sprints-1 {
			status = model.StatusActive
		}
		raw.Sprints = append(raw.Sprints, model.Record{
			"Title":        fmt.Sprintf("Sprint %d", i+1),
			"Status":       string(status),
			"Start Date":   start.Format("2006-01-02"),
			"End Date":     start.AddDate(0, 0, 14).Format("2006-01-02"),
			"Story Points": strconv.Itoa(30 + g.rng.Intn(40)),
			"Progress":     strconv.Itoa(g.rng.Intn(101)),
			"Team":         pick(g.rng, g.cfg.Teams),
			"Goals":        "Ship " + pick(g.rng, epicThemes),
		})
	}
	return raw
}

// Snapshot generates and normalizes a snapshot.
func (g *Generator) Snapshot() model.Snapshot {
	return model.Normalize(g.Raw())
}

func pick[T any](rng *rand.Rand, from []T) T {
	return from[rng.Intn(len(from))]
}

// ToCSV renders rows as CSV with the given header row. Missing fields are
// written as empty cells.
func ToCSV(header []string, rows []model.Record) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(header)
	for _, r := range rows {
		line := make([]string, len(header))
		for i, h := range header {
			line[i] = r[h]
		}
		_ = w.Write(line)
	}
	w.Flush()
	return buf.Bytes()
}

// CSVFiles maps each collection file name to its CSV content.
func CSVFiles(raw model.RawSnapshot) map[string][]byte {
	return map[string][]byte{
		model.CollectionEpics + ".csv":   ToCSV(EpicHeader, raw.Epics),
		model.CollectionTeams + ".csv":   ToCSV(TeamHeader, raw.Teams),
		model.CollectionBacklog + ".csv": ToCSV(BacklogHeader, raw.Backlog),
		model.CollectionSprints + ".csv": ToCSV(SprintHeader, raw.Sprints),
	}
}

// Empty returns an empty normalized snapshot.
func Empty() model.Snapshot {
	return model.Normalize(model.RawSnapshot{})
}
