// Package datasource discovers, validates, and selects the freshest snapshot
// source in a data directory: a CSV collection directory or a SQLite
// snapshot file.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vanderheijden86/pulseboard/pkg/loader"
	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeSQLite is a SQLite snapshot (pulse.db)
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeCSV is a directory of per-collection CSV files
	SourceTypeCSV SourceType = "csv"
)

// Priority values for source types (higher = more authoritative)
const (
	PrioritySQLite = 100
	PriorityCSV    = 50
)

// SQLiteFileName is the snapshot database looked for in the data directory.
const SQLiteFileName = "pulse.db"

// ErrNoSource is returned when discovery finds nothing loadable.
var ErrNoSource = errors.New("no valid data source found")

// DataSource represents a potential source of snapshot data
type DataSource struct {
	Type     SourceType `json:"type"`
	Path     string     `json:"path"`
	Priority int        `json:"priority"`
	ModTime  time.Time  `json:"mod_time"`
	Size     int64      `json:"size"`
	// Valid indicates whether the source passed validation
	Valid           bool   `json:"valid"`
	ValidationError string `json:"validation_error,omitempty"`
	// RecordCount is set during validation
	RecordCount int `json:"record_count"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, records=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.RecordCount, status)
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// DataDir is the directory to search (PULSE_DATA_DIR or ./data if empty)
	DataDir string
	// ValidateAfterDiscovery runs validation on each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
	// Logger receives discovery messages. Nil discards them.
	Logger func(msg string)
}

// DiscoverSources finds all potential sources in the data directory, sorted
// freshest first. SQLite sorts ahead of CSV on equal modification times.
func DiscoverSources(opts DiscoveryOptions) ([]DataSource, error) {
	logf := func(format string, args ...any) {
		if opts.Logger != nil {
			opts.Logger(fmt.Sprintf(format, args...))
		}
	}

	dir, err := loader.GetDataDir(opts.DataDir)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", dir)
	}
	logf("Discovering sources in: %s", dir)

	var sources []DataSource

	dbPath := filepath.Join(dir, SQLiteFileName)
	if info, err := os.Stat(dbPath); err == nil && !info.IsDir() {
		sources = append(sources, DataSource{
			Type:     SourceTypeSQLite,
			Path:     dbPath,
			Priority: PrioritySQLite,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
		logf("Found SQLite: %s (mod=%s)", dbPath, info.ModTime().Format(time.RFC3339))
	}

	if mod, ok := loader.ModTime(dir); ok {
		var size int64
		for _, name := range model.Collections {
			if info, err := os.Stat(filepath.Join(dir, loader.FileName(name))); err == nil {
				size += info.Size()
			}
		}
		sources = append(sources, DataSource{
			Type:     SourceTypeCSV,
			Path:     dir,
			Priority: PriorityCSV,
			ModTime:  mod,
			Size:     size,
		})
		logf("Found CSV directory: %s (mod=%s)", dir, mod.Format(time.RFC3339))
	}

	if opts.ValidateAfterDiscovery {
		for i := range sources {
			if err := ValidateSource(&sources[i]); err != nil {
				logf("Validation failed for %s: %v", sources[i].Path, err)
			}
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	sortSources(sources)
	logf("Discovered %d sources", len(sources))
	return sources, nil
}

func sortSources(sources []DataSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
}

// ValidateSource checks that a source can be read and records its size in
// records. The result is stored on the source.
func ValidateSource(s *DataSource) error {
	raw, err := LoadFromSource(context.Background(), *s)
	if err != nil {
		s.Valid = false
		s.ValidationError = err.Error()
		return err
	}
	s.Valid = true
	s.ValidationError = ""
	s.RecordCount = len(raw.Epics) + len(raw.Teams) + len(raw.Backlog) + len(raw.Sprints)
	return nil
}

// SelectBestSource returns the freshest valid source. Sources that have not
// been validated are validated first.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	candidates := append([]DataSource(nil), sources...)
	sortSources(candidates)
	for i := range candidates {
		if !candidates[i].Valid && candidates[i].ValidationError == "" {
			_ = ValidateSource(&candidates[i])
		}
		if candidates[i].Valid {
			return candidates[i], nil
		}
	}
	return DataSource{}, ErrNoSource
}
