package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/pulseboard/pkg/metrics"
	"github.com/vanderheijden86/pulseboard/pkg/model"
)

// SQLiteReader provides read access to a snapshot database. Each collection
// is a table of the same name; every column is read as text.
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens a SQLite database for reading
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	return &SQLiteReader{
		db:   db,
		path: source.Path,
	}, nil
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Tables returns the collection tables present in the database.
func (r *SQLiteReader) Tables(ctx context.Context) ([]string, error) {
	return tables(ctx, r.db)
}

func tables(ctx context.Context, q queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []string
	for _, c := range model.Collections {
		if present[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

// LoadCollection reads every row of a collection table. A missing table is
// an empty collection.
func (r *SQLiteReader) LoadCollection(ctx context.Context, collection string) ([]model.Record, error) {
	if !slices.Contains(model.Collections, collection) {
		return nil, fmt.Errorf("unknown collection: %s", collection)
	}
	present, err := tables(ctx, r.db)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(present, collection) {
		return []model.Record{}, nil
	}
	return loadTable(ctx, r.db, collection)
}

func loadTable(ctx context.Context, q queryer, collection string) ([]model.Record, error) {
	rows, err := q.QueryContext(ctx, "SELECT * FROM "+quoteIdent(collection))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := []model.Record{}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			metrics.SkippedRows.Inc()
			continue
		}
		rec := make(model.Record, len(cols))
		for i, c := range cols {
			rec[c] = textValue(vals[i])
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", collection, err)
	}
	return records, nil
}

// LoadSnapshot reads all four collections in one read transaction so a
// concurrent writer cannot produce a mixed snapshot.
func (r *SQLiteReader) LoadSnapshot(ctx context.Context) (model.RawSnapshot, error) {
	defer metrics.Timer(metrics.SnapshotLoad)()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.RawSnapshot{}, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()

	present, err := tables(ctx, tx)
	if err != nil {
		return model.RawSnapshot{}, err
	}
	if len(present) == 0 {
		return model.RawSnapshot{}, fmt.Errorf("%s has no collection tables", filepath.Base(r.path))
	}

	raw := model.RawSnapshot{Source: r.path}
	for _, c := range model.Collections {
		recs := []model.Record{}
		if slices.Contains(present, c) {
			if recs, err = loadTable(ctx, tx, c); err != nil {
				return model.RawSnapshot{}, err
			}
		}
		raw.Set(c, recs)
	}
	if info, err := os.Stat(r.path); err == nil {
		raw.LoadedAt = info.ModTime()
	}
	return raw, nil
}

func textValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteSQLiteSnapshot writes raw into a new snapshot database at path,
// replacing any existing file. Columns are the union of the keys of each
// collection, sorted, all TEXT.
func WriteSQLiteSnapshot(ctx context.Context, path string, raw model.RawSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	collections := map[string][]model.Record{
		model.CollectionEpics:   raw.Epics,
		model.CollectionTeams:   raw.Teams,
		model.CollectionBacklog: raw.Backlog,
		model.CollectionSprints: raw.Sprints,
	}
	for _, name := range model.Collections {
		if err := writeTable(ctx, tx, name, collections[name]); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return tx.Commit()
}

func writeTable(ctx context.Context, tx *sql.Tx, name string, rows []model.Record) error {
	keys := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			keys[k] = true
		}
	}
	cols := make([]string, 0, len(keys))
	for k := range keys {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	if len(cols) == 0 {
		cols = []string{"id"}
	}

	defs := make([]string, len(cols))
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		defs[i] = quoted[i] + " TEXT"
		marks[i] = "?"
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name), strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for _, r := range rows {
		for i, c := range cols {
			args[i] = r[c]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}
