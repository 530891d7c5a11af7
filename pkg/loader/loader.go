// Package loader reads CSV snapshots into raw records. It knows nothing about
// the meaning of columns; normalization happens in pkg/model.
package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/pulseboard/pkg/debug"
	"github.com/vanderheijden86/pulseboard/pkg/metrics"
	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// DataDirEnvVar overrides the data directory.
const DataDirEnvVar = "PULSE_DATA_DIR"

// DefaultDataDir is used when neither a path nor the env var is given.
const DefaultDataDir = "data"

// GetDataDir resolves the data directory: an explicit path wins, then
// PULSE_DATA_DIR, then ./data under the working directory.
func GetDataDir(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if envDir := os.Getenv(DataDirEnvVar); envDir != "" {
		return envDir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return filepath.Join(wd, DefaultDataDir), nil
}

// FileName returns the CSV file name for a collection.
func FileName(collection string) string {
	return collection + ".csv"
}

// ParseOptions configures CSV parsing.
type ParseOptions struct {
	// WarningHandler is called for every skipped row. If nil, warnings go to
	// the debug log.
	WarningHandler func(string)

	// Comma is the field delimiter. Zero means ','.
	Comma rune
}

// ParseCSV parses CSV content with a header row into records.
func ParseCSV(r io.Reader) ([]model.Record, error) {
	return ParseCSVWithOptions(r, ParseOptions{})
}

// ParseCSVWithOptions parses CSV content with custom options. The first row
// is the header; a UTF-8 BOM on it is stripped. Rows whose field count does
// not match the header, or that fail to parse, are skipped with a warning.
// Blank rows are ignored. An empty input yields no records and no error.
func ParseCSVWithOptions(r io.Reader, opts ParseOptions) ([]model.Record, error) {
	warn := opts.WarningHandler
	if warn == nil {
		warn = func(msg string) { debug.Log("loader: %s", msg) }
	}
	skip := func(msg string) {
		metrics.SkippedRows.Inc()
		warn(msg)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []model.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	header = cleanHeader(header)

	records := make([]model.Record, 0, 64)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skip(fmt.Sprintf("skipping malformed row on line %d: %v", perr.Line, perr.Err))
				continue
			}
			return nil, fmt.Errorf("error reading CSV stream: %w", err)
		}
		if blankRow(row) {
			continue
		}
		line, _ := reader.FieldPos(0)
		if len(row) != len(header) {
			skip(fmt.Sprintf("skipping row on line %d: %d fields, header has %d", line, len(row), len(header)))
			continue
		}

		rec := make(model.Record, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if _, dup := rec[h]; dup {
				continue
			}
			rec[h] = row[i]
		}
		records = append(records, rec)
	}
	return records, nil
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = string(stripBOM([]byte(h)))
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}

// LoadFile reads one CSV file. A missing file is an empty collection.
func LoadFile(path string, opts ParseOptions) ([]model.Record, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	records, err := ParseCSVWithOptions(file, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return records, nil
}

// LoadDir reads every collection file in dir concurrently and returns one
// complete raw snapshot. Any read error fails the whole load so a refresh
// never yields a partial record set.
func LoadDir(ctx context.Context, dir string, opts ParseOptions) (model.RawSnapshot, error) {
	defer metrics.Timer(metrics.SnapshotLoad)()

	info, err := os.Stat(dir)
	if err != nil {
		return model.RawSnapshot{}, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return model.RawSnapshot{}, fmt.Errorf("data directory: %s is not a directory", dir)
	}

	results := make([][]model.Record, len(model.Collections))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(len(model.Collections))
	for i, name := range model.Collections {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			recs, err := LoadFile(filepath.Join(dir, FileName(name)), opts)
			if err != nil {
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.RawSnapshot{}, err
	}

	raw := model.RawSnapshot{Source: dir}
	for i, name := range model.Collections {
		raw.Set(name, results[i])
	}
	raw.LoadedAt, _ = ModTime(dir)
	debug.Log("loader: loaded %d epics, %d teams, %d backlog, %d sprints from %s",
		len(raw.Epics), len(raw.Teams), len(raw.Backlog), len(raw.Sprints), dir)
	return raw, nil
}

// ModTime returns the newest modification time among the collection files in
// dir. ok is false when none of them exist.
func ModTime(dir string) (latest time.Time, ok bool) {
	for _, name := range model.Collections {
		info, err := os.Stat(filepath.Join(dir, FileName(name)))
		if err != nil {
			continue
		}
		ok = true
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest, ok
}
