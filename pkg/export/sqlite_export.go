// Package export writes dashboard view-models out of process: a Markdown
// report, a SQLite database for offline querying, and SVG/PNG charts.
package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/pulseboard/pkg/dashboard"
	"github.com/vanderheijden86/pulseboard/pkg/debug"
	"github.com/vanderheijden86/pulseboard/pkg/metrics"

	_ "modernc.org/sqlite"
)

// SQLiteExporter exports a view-model to a SQLite database.
type SQLiteExporter struct {
	VM     dashboard.ViewModel
	Config SQLiteExportConfig
}

// NewSQLiteExporter creates a new exporter with the default config.
func NewSQLiteExporter(vm dashboard.ViewModel) *SQLiteExporter {
	return &SQLiteExporter{VM: vm, Config: DefaultSQLiteExportConfig()}
}

// Export writes the database to dbPath, replacing any existing file.
func (e *SQLiteExporter) Export(ctx context.Context, dbPath string) error {
	defer metrics.Timer(metrics.SQLiteExport)()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.Remove(dbPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	dbClosed := false
	defer func() {
		if !dbClosed {
			db.Close()
		}
	}()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := CreateSchema(ctx, tx); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	steps := []struct {
		name string
		fn   func(context.Context, *sql.Tx) error
	}{
		{"summary", e.insertSummary},
		{"team capacity", e.insertCapacity},
		{"dora metrics", e.insertDORA},
		{"risks", e.insertRisks},
		{"trend samples", e.insertTrend},
		{"burndown points", e.insertBurndown},
		{"meta", e.insertMeta},
	}
	for _, step := range steps {
		if err := step.fn(ctx, tx); err != nil {
			return fmt.Errorf("insert %s: %w", step.name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if e.Config.Optimize {
		if err := OptimizeDatabase(ctx, db); err != nil {
			return fmt.Errorf("optimize database: %w", err)
		}
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	dbClosed = true

	if e.Config.WriteMetaJSON {
		metaPath := filepath.Join(filepath.Dir(dbPath), "meta.json")
		if err := writeJSON(metaPath, e.meta()); err != nil {
			return fmt.Errorf("write meta.json: %w", err)
		}
	}
	debug.Log("sqlite export: wrote %s (%d risks, %d trend samples)", dbPath, len(e.VM.Risks), len(e.VM.Trend.Samples))
	return nil
}

func (e *SQLiteExporter) insertSummary(ctx context.Context, tx *sql.Tx) error {
	s := e.VM.Summary
	criteria, err := json.Marshal(s.Criteria)
	if err != nil {
		return err
	}
	levels, err := json.Marshal(s.DORA)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO summary (
			id, epics, teams, backlog, sprints, epic_story_points, backlog_story_points,
			total_velocity, active_epics, completed_epics, blocked_epics, blocked_items,
			average_progress, average_utilization, risks, high_risks, medium_risks,
			overdue, timeframe, criteria, dora_levels
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.Epics, s.Teams, s.Backlog, s.Sprints, s.EpicStoryPoints, s.BacklogStoryPoints,
		s.TotalVelocity, s.ActiveEpics, s.CompletedEpics, s.BlockedEpics, s.BlockedItems,
		s.AverageProgress, s.AverageUtilization, s.Risks, s.HighRisks, s.MediumRisks,
		s.Overdue, string(s.Timeframe), string(criteria), string(levels),
	)
	return err
}

func (e *SQLiteExporter) insertCapacity(ctx context.Context, tx *sql.Tx) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO team_capacity (team, velocity, member_count, capacity_hours, allocated_points, utilization, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range e.VM.Capacities {
		if _, err := stmt.ExecContext(ctx, c.Team, c.Velocity, c.MemberCount, c.CapacityHours, c.AllocatedPoints, c.Utilization, string(c.Status)); err != nil {
			return fmt.Errorf("insert team %s: %w", c.Team, err)
		}
	}
	return nil
}

func (e *SQLiteExporter) insertDORA(ctx context.Context, tx *sql.Tx) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dora_metrics (key, name, value, unit, target, level, mode, samples)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range e.VM.DORA.All() {
		if _, err := stmt.ExecContext(ctx, m.Key, m.Name, m.Value, m.Unit, m.Target, string(m.Level), string(m.Mode), m.Samples); err != nil {
			return fmt.Errorf("insert metric %s: %w", m.Key, err)
		}
	}
	return nil
}

func (e *SQLiteExporter) insertRisks(ctx context.Context, tx *sql.Tx) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO risks (id, category, level, team, title, impact, mitigation, count, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range e.VM.Risks {
		if _, err := stmt.ExecContext(ctx,
			r.ID, string(r.Category), string(r.Level), r.Team, r.Title, r.Impact, r.Mitigation,
			r.Count, r.EvaluatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("insert risk %s: %w", r.ID, err)
		}
	}
	return nil
}

func (e *SQLiteExporter) insertTrend(ctx context.Context, tx *sql.Tx) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trend_samples (day, date, velocity, progress, quality)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, s := range e.VM.Trend.Samples {
		if _, err := stmt.ExecContext(ctx, i, s.Date.Format("2006-01-02"), s.Velocity, s.Progress, s.Quality); err != nil {
			return fmt.Errorf("insert trend day %d: %w", i, err)
		}
	}
	return nil
}

func (e *SQLiteExporter) insertBurndown(ctx context.Context, tx *sql.Tx) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO burndown_points (day, sprint, date, ideal, actual)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	b := e.VM.Burndown
	for _, p := range b.Points {
		var date *string
		if !p.Date.IsZero() {
			s := p.Date.Format("2006-01-02")
			date = &s
		}
		if _, err := stmt.ExecContext(ctx, p.Day, b.Sprint, date, p.Ideal, p.Actual); err != nil {
			return fmt.Errorf("insert burndown day %d: %w", p.Day, err)
		}
	}
	return nil
}

func (e *SQLiteExporter) meta() ExportMeta {
	return ExportMeta{
		Version:       e.Config.Version,
		SchemaVersion: SchemaVersion,
		GeneratedAt:   e.VM.GeneratedAt.UTC(),
		Source:        e.Config.Source,
		Title:         e.Config.Title,
		Seed:          e.VM.Seed,
		Timeframe:     string(e.VM.Timeframe),
		EpicCount:     len(e.VM.Epics),
		RiskCount:     len(e.VM.Risks),
	}
}

func (e *SQLiteExporter) insertMeta(ctx context.Context, tx *sql.Tx) error {
	m := e.meta()
	values := map[string]string{
		"version":        m.Version,
		"schema_version": strconv.Itoa(m.SchemaVersion),
		"generated_at":   m.GeneratedAt.Format(time.RFC3339),
		"seed":           strconv.FormatUint(m.Seed, 10),
		"timeframe":      m.Timeframe,
	}
	if m.Source != "" {
		values["source"] = m.Source
	}
	if m.Title != "" {
		values["title"] = m.Title
	}
	for key, value := range values {
		if err := InsertMetaValue(ctx, tx, key, value); err != nil {
			return fmt.Errorf("insert meta %s: %w", key, err)
		}
	}
	return nil
}

// ReadSummary reads the summary row and series sizes back from an export.
func ReadSummary(ctx context.Context, dbPath string) (ExportedSummary, error) {
	var out ExportedSummary
	if _, err := os.Stat(dbPath); err != nil {
		return out, fmt.Errorf("stat export: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return out, fmt.Errorf("open export: %w", err)
	}
	defer db.Close()

	var levels string
	row := db.QueryRowContext(ctx, `
		SELECT epics, teams, backlog, sprints, total_velocity, risks, overdue, timeframe, dora_levels
		FROM summary WHERE id = 1
	`)
	if err := row.Scan(&out.Epics, &out.Teams, &out.Backlog, &out.Sprints, &out.TotalVelocity,
		&out.Risks, &out.Overdue, &out.Timeframe, &levels); err != nil {
		return out, fmt.Errorf("read summary: %w", err)
	}
	if err := json.Unmarshal([]byte(levels), &out.DORALevels); err != nil {
		return out, fmt.Errorf("decode dora levels: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trend_samples`).Scan(&out.TrendSamples); err != nil {
		return out, fmt.Errorf("count trend samples: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM burndown_points`).Scan(&out.BurndownPoints); err != nil {
		return out, fmt.Errorf("count burndown points: %w", err)
	}
	return out, nil
}

// writeJSON writes v to path as indented JSON.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
