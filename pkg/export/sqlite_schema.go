package export

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is recorded in the meta table.
const SchemaVersion = 1

// Table names written by the exporter.
const (
	TableSummary        = "summary"
	TableTeamCapacity   = "team_capacity"
	TableDORAMetrics    = "dora_metrics"
	TableRisks          = "risks"
	TableTrendSamples   = "trend_samples"
	TableBurndownPoints = "burndown_points"
	TableMeta           = "meta"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateSchema creates every export table.
func CreateSchema(ctx context.Context, db execer) error {
	if err := createAggregateTables(ctx, db); err != nil {
		return fmt.Errorf("create aggregate tables: %w", err)
	}
	if err := createSeriesTables(ctx, db); err != nil {
		return fmt.Errorf("create series tables: %w", err)
	}
	if err := createMetaTable(ctx, db); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}
	return nil
}

// createAggregateTables creates the per-snapshot and per-team tables.
func createAggregateTables(ctx context.Context, db execer) error {
	// summary is a single row. Nested values (criteria, DORA levels) are
	// JSON text.
	summarySQL := `
		CREATE TABLE IF NOT EXISTS summary (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			epics INTEGER NOT NULL,
			teams INTEGER NOT NULL,
			backlog INTEGER NOT NULL,
			sprints INTEGER NOT NULL,
			epic_story_points INTEGER NOT NULL,
			backlog_story_points INTEGER NOT NULL,
			total_velocity INTEGER NOT NULL,
			active_epics INTEGER NOT NULL,
			completed_epics INTEGER NOT NULL,
			blocked_epics INTEGER NOT NULL,
			blocked_items INTEGER NOT NULL,
			average_progress REAL NOT NULL,
			average_utilization REAL NOT NULL,
			risks INTEGER NOT NULL,
			high_risks INTEGER NOT NULL,
			medium_risks INTEGER NOT NULL,
			overdue INTEGER NOT NULL,
			timeframe TEXT NOT NULL,
			criteria TEXT NOT NULL,
			dora_levels TEXT NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, summarySQL); err != nil {
		return fmt.Errorf("create summary table: %w", err)
	}

	capacitySQL := `
		CREATE TABLE IF NOT EXISTS team_capacity (
			team TEXT PRIMARY KEY,
			velocity INTEGER NOT NULL,
			member_count INTEGER NOT NULL,
			capacity_hours REAL NOT NULL,
			allocated_points INTEGER NOT NULL,
			utilization REAL NOT NULL,
			status TEXT NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, capacitySQL); err != nil {
		return fmt.Errorf("create team_capacity table: %w", err)
	}

	doraSQL := `
		CREATE TABLE IF NOT EXISTS dora_metrics (
			key TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			unit TEXT NOT NULL,
			target TEXT NOT NULL,
			level TEXT NOT NULL,
			mode TEXT NOT NULL,
			samples INTEGER NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, doraSQL); err != nil {
		return fmt.Errorf("create dora_metrics table: %w", err)
	}

	risksSQL := `
		CREATE TABLE IF NOT EXISTS risks (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			level TEXT NOT NULL,
			team TEXT NOT NULL,
			title TEXT NOT NULL,
			impact TEXT,
			mitigation TEXT,
			count INTEGER NOT NULL,
			evaluated_at TEXT NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, risksSQL); err != nil {
		return fmt.Errorf("create risks table: %w", err)
	}
	return nil
}

// createSeriesTables creates the daily series tables.
func createSeriesTables(ctx context.Context, db execer) error {
	trendSQL := `
		CREATE TABLE IF NOT EXISTS trend_samples (
			day INTEGER PRIMARY KEY,
			date TEXT NOT NULL,
			velocity REAL NOT NULL,
			progress REAL NOT NULL,
			quality REAL NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, trendSQL); err != nil {
		return fmt.Errorf("create trend_samples table: %w", err)
	}

	burndownSQL := `
		CREATE TABLE IF NOT EXISTS burndown_points (
			day INTEGER PRIMARY KEY,
			sprint TEXT NOT NULL,
			date TEXT,
			ideal REAL NOT NULL,
			actual REAL NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, burndownSQL); err != nil {
		return fmt.Errorf("create burndown_points table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_risks_level ON risks(level)`,
		`CREATE INDEX IF NOT EXISTS idx_risks_team ON risks(team)`,
		`CREATE INDEX IF NOT EXISTS idx_capacity_status ON team_capacity(status)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func createMetaTable(ctx context.Context, db execer) error {
	metaSQL := `
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, metaSQL); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}
	return nil
}

// OptimizeDatabase compacts the file. Call it as the final step before
// closing the database.
func OptimizeDatabase(ctx context.Context, db *sql.DB) error {
	optimizations := []string{
		`PRAGMA journal_mode=DELETE`,
		`ANALYZE`,
		`PRAGMA optimize`,
	}
	for _, stmt := range optimizations {
		// Some pragmas may fail depending on state, continue
		_, _ = db.ExecContext(ctx, stmt)
	}

	// VACUUM must be last and outside transaction
	if _, err := db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

// InsertMetaValue inserts or updates a metadata key-value pair.
func InsertMetaValue(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}
