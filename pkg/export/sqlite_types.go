package export

import (
	"time"
)

// ExportMeta contains metadata about the export.
type ExportMeta struct {
	Version       string    `json:"version"`
	SchemaVersion int       `json:"schema_version"`
	GeneratedAt   time.Time `json:"generated_at"`
	Source        string    `json:"source,omitempty"`
	Title         string    `json:"title,omitempty"`
	Seed          uint64    `json:"seed"`
	Timeframe     string    `json:"timeframe"`
	EpicCount     int       `json:"epic_count"`
	RiskCount     int       `json:"risk_count"`
}

// SQLiteExportConfig configures the SQLite export process.
type SQLiteExportConfig struct {
	// Title is recorded in the meta table.
	Title string

	// Source names the snapshot the view-model was computed from.
	Source string

	// Version is the pulse build version recorded in meta.
	Version string

	// Optimize runs ANALYZE and VACUUM after writing.
	Optimize bool

	// WriteMetaJSON also writes meta.json next to the database.
	WriteMetaJSON bool
}

// DefaultSQLiteExportConfig returns sensible defaults for export configuration.
func DefaultSQLiteExportConfig() SQLiteExportConfig {
	return SQLiteExportConfig{
		Version:  "dev",
		Optimize: true,
	}
}

// ExportedSummary is the summary row read back from an export.
type ExportedSummary struct {
	Epics          int
	Teams          int
	Backlog        int
	Sprints        int
	TotalVelocity  int
	Risks          int
	Overdue        int
	Timeframe      string
	DORALevels     map[string]string
	TrendSamples   int
	BurndownPoints int
}
