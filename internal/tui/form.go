package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/vanderheijden86/pulseboard/pkg/config"
	"github.com/vanderheijden86/pulseboard/pkg/filter"
	"github.com/vanderheijden86/pulseboard/pkg/model"
	"github.com/vanderheijden86/pulseboard/pkg/trend"
)

// Selection is what the criteria form collects.
type Selection struct {
	Criteria  filter.Criteria `json:"criteria"`
	Timeframe trend.Timeframe `json:"timeframe"`
	Query     string          `json:"query,omitempty"`
}

// IsTerminal checks if stdin is connected to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !IsTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// Choices are the values offered by the form, taken from a snapshot.
type Choices struct {
	Statuses   []string
	Priorities []string
	Teams      []string
}

// ChoicesFrom collects the distinct statuses, priorities and teams present
// in snap, sorted.
func ChoicesFrom(snap model.Snapshot) Choices {
	statuses := map[string]struct{}{}
	priorities := map[string]struct{}{}
	teams := map[string]struct{}{}
	add := func(m map[string]struct{}, v string) {
		if v = strings.TrimSpace(v); v != "" {
			m[v] = struct{}{}
		}
	}
	for _, e := range snap.Epics {
		add(statuses, string(e.Status))
		add(priorities, string(e.Priority))
		add(teams, e.Team)
	}
	for _, b := range snap.Backlog {
		add(statuses, string(b.Status))
		add(priorities, string(b.Priority))
		add(teams, b.Team)
	}
	for _, t := range snap.Teams {
		add(teams, t.Title)
	}
	return Choices{Statuses: keys(statuses), Priorities: keys(priorities), Teams: keys(teams)}
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RunCriteriaForm asks for filter criteria, timeframe and an optional
// question, starting from initial.
func RunCriteriaForm(initial Selection, choices Choices) (Selection, error) {
	sel := initial
	statuses := append([]string(nil), initial.Criteria.Statuses...)
	priorities := append([]string(nil), initial.Criteria.Priorities...)
	teams := append([]string(nil), initial.Criteria.Teams...)
	search := initial.Criteria.SearchText
	timeframe := string(initial.Timeframe)
	if timeframe == "" {
		timeframe = string(trend.Month)
	}
	query := initial.Query

	var fields []huh.Field
	if len(choices.Statuses) > 0 {
		fields = append(fields, huh.NewMultiSelect[string]().
			Title("Statuses").
			Description("Leave empty to include every status").
			Options(huh.NewOptions(choices.Statuses...)...).
			Value(&statuses))
	}
	if len(choices.Priorities) > 0 {
		fields = append(fields, huh.NewMultiSelect[string]().
			Title("Priorities").
			Options(huh.NewOptions(choices.Priorities...)...).
			Value(&priorities))
	}
	if len(choices.Teams) > 0 {
		fields = append(fields, huh.NewMultiSelect[string]().
			Title("Teams").
			Options(huh.NewOptions(choices.Teams...)...).
			Value(&teams))
	}
	fields = append(fields,
		huh.NewInput().
			Title("Search text").
			Description("Matched against epic titles and descriptions").
			Value(&search),
		huh.NewSelect[string]().
			Title("Trend timeframe").
			Options(
				huh.NewOption("Last 7 days", string(trend.Week)),
				huh.NewOption("Last 30 days", string(trend.Month)),
				huh.NewOption("Last 90 days", string(trend.Quarter)),
			).
			Value(&timeframe),
		huh.NewInput().
			Title("Question (optional)").
			Placeholder("What are the main risks?").
			Value(&query),
	)

	if err := newForm(huh.NewGroup(fields...)).Run(); err != nil {
		return initial, err
	}

	sel.Criteria = filter.Criteria{
		Statuses:   statuses,
		Priorities: priorities,
		Teams:      teams,
		SearchText: search,
	}.Normalize()
	sel.Timeframe = trend.ParseTimeframe(timeframe)
	sel.Query = strings.TrimSpace(query)
	return sel, nil
}

// SelectionPath returns the path of the remembered selection.
func SelectionPath() string {
	dir := config.StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "last_selection.json")
}

// LoadSelection reads the remembered selection. A missing file yields a zero
// Selection and no error.
func LoadSelection() (Selection, error) {
	path := SelectionPath()
	if path == "" {
		return Selection{}, fmt.Errorf("could not determine state path")
	}
	return loadSelectionFrom(path)
}

func loadSelectionFrom(path string) (Selection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Selection{}, nil
		}
		return Selection{}, err
	}
	var sel Selection
	if err := json.Unmarshal(data, &sel); err != nil {
		return Selection{}, fmt.Errorf("parse %s: %w", path, err)
	}
	sel.Criteria = sel.Criteria.Normalize()
	if sel.Timeframe != "" {
		sel.Timeframe = trend.ParseTimeframe(string(sel.Timeframe))
	}
	return sel, nil
}

// SaveSelection remembers sel for the next interactive run.
func SaveSelection(sel Selection) error {
	path := SelectionPath()
	if path == "" {
		return fmt.Errorf("could not determine state path")
	}
	return saveSelectionTo(path, sel)
}

func saveSelectionTo(path string, sel Selection) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(sel, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
