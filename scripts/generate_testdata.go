//go:build ignore

// generate_testdata.go creates standard snapshot datasets for benchmarking.
// Usage: go run scripts/generate_testdata.go
//
// Creates, for each size, a CSV collection directory and a SQLite snapshot:
//
//	tests/testdata/benchmark/small/   (20 epics, 100 backlog items)
//	tests/testdata/benchmark/medium/  (200 epics, 1000 backlog items)
//	tests/testdata/benchmark/large/   (1000 epics, 5000 backlog items)
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vanderheijden86/pulseboard/internal/datasource"
	"github.com/vanderheijden86/pulseboard/pkg/testutil"
)

type datasetSpec struct {
	name    string
	epics   int
	backlog int
	teams   int
	sprints int
}

var datasets = []datasetSpec{
	{"small", 20, 100, 3, 4},
	{"medium", 200, 1000, 8, 12},
	{"large", 1000, 5000, 25, 26},
}

func main() {
	outputDir := "tests/testdata/benchmark"
	ctx := context.Background()

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d epics, %d backlog items)...\n", ds.name, ds.epics, ds.backlog)

		teams := make([]string, ds.teams)
		for i := range teams {
			teams[i] = fmt.Sprintf("Team %02d", i+1)
		}
		gen := testutil.New(testutil.GeneratorConfig{
			Seed:            int64(ds.epics), // Reproducible per-size
			Teams:           teams,
			Epics:           ds.epics,
			BacklogItems:    ds.backlog,
			Sprints:         ds.sprints,
			BaseTime:        time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
			WithDeployments: true,
		})
		raw := gen.Raw()

		dir := filepath.Join(outputDir, ds.name)
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", dir, err)
			os.Exit(1)
		}
		for name, data := range testutil.CSVFiles(raw) {
			if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", name, err)
				os.Exit(1)
			}
		}

		dbPath := filepath.Join(dir, datasource.SQLiteFileName)
		if err := datasource.WriteSQLiteSnapshot(ctx, dbPath, raw); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", dbPath, err)
			os.Exit(1)
		}
		fmt.Printf("  Wrote %s\n", dir)
	}

	fmt.Println("Done!")
}
