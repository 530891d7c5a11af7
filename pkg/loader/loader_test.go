package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/pulseboard/pkg/model"
	"github.com/vanderheijden86/pulseboard/pkg/testutil"
)

func TestParseCSV_Basic(t *testing.T) {
	data := "\xEF\xBB\xBFID, Title ,Status\nEP-1,Payments,Active\nEP-2,\"Search, v2\",Blocked\n"
	recs, err := ParseCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records=%d; want 2", len(recs))
	}
	if recs[0]["ID"] != "EP-1" {
		t.Fatalf("BOM not stripped from header: %v", recs[0])
	}
	if recs[1]["Title"] != "Search, v2" {
		t.Fatalf("quoted field: %q", recs[1]["Title"])
	}
}

func TestParseCSV_SkipsMalformedRows(t *testing.T) {
	data := strings.Join([]string{
		"ID,Title,Status",
		"EP-1,Good,Active",
		"EP-2,Too,Many,Fields",
		"EP-3,Short",
		",,",
		"EP-4,Also good,Planning",
	}, "\n")

	var warnings []string
	recs, err := ParseCSVWithOptions(strings.NewReader(data), ParseOptions{
		WarningHandler: func(msg string) { warnings = append(warnings, msg) },
	})
	if err != nil {
		t.Fatalf("ParseCSVWithOptions: %v", err)
	}
	if len(recs) != 2 || recs[0]["ID"] != "EP-1" || recs[1]["ID"] != "EP-4" {
		t.Fatalf("records=%v", recs)
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings=%v; want 2", warnings)
	}
	if !strings.Contains(warnings[0], "line 3") {
		t.Errorf("warning should name the line: %q", warnings[0])
	}
}

func TestParseCSV_Empty(t *testing.T) {
	recs, err := ParseCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty input: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Fatalf("records=%v; want empty non-nil", recs)
	}

	recs, err = ParseCSV(strings.NewReader("ID,Title\n"))
	if err != nil || len(recs) != 0 {
		t.Fatalf("header only: %v %v", recs, err)
	}
}

func TestParseCSV_Semicolon(t *testing.T) {
	recs, err := ParseCSVWithOptions(strings.NewReader("Title;Members\nBackend;4\n"), ParseOptions{Comma: ';'})
	if err != nil {
		t.Fatalf("ParseCSVWithOptions: %v", err)
	}
	if len(recs) != 1 || recs[0]["Members"] != "4" {
		t.Fatalf("records=%v", recs)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	recs, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"), ParseOptions{})
	if err != nil {
		t.Fatalf("missing file should be empty, got %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("records=%v", recs)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	raw := testutil.NewDefault().Raw()
	testutil.WriteCSVDir(t, dir, raw)

	got, err := LoadDir(context.Background(), dir, ParseOptions{})
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(got.Epics) != len(raw.Epics) || len(got.Teams) != len(raw.Teams) ||
		len(got.Backlog) != len(raw.Backlog) || len(got.Sprints) != len(raw.Sprints) {
		t.Fatalf("sizes differ: got %d/%d/%d/%d", len(got.Epics), len(got.Teams), len(got.Backlog), len(got.Sprints))
	}
	if got.Source != dir || got.LoadedAt.IsZero() {
		t.Fatalf("source=%q loadedAt=%v", got.Source, got.LoadedAt)
	}

	snap := model.Normalize(got)
	want := model.Normalize(raw)
	if snap.Epics[0].ID != want.Epics[0].ID || snap.Epics[0].StoryPoints != want.Epics[0].StoryPoints {
		t.Fatalf("first epic differs: %+v vs %+v", snap.Epics[0], want.Epics[0])
	}
}

func TestLoadDir_PartialCollections(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "teams.csv"), []byte("Title,Story Points\nBackend,40\n"), 0644); err != nil {
		t.Fatal(err)
	}
	raw, err := LoadDir(context.Background(), dir, ParseOptions{})
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(raw.Teams) != 1 || len(raw.Epics) != 0 {
		t.Fatalf("teams=%d epics=%d", len(raw.Teams), len(raw.Epics))
	}
}

func TestLoadDir_Errors(t *testing.T) {
	if _, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "missing"), ParseOptions{}); err == nil {
		t.Fatal("expected error for missing dir")
	}

	file := filepath.Join(t.TempDir(), "file.csv")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDir(context.Background(), file, ParseOptions{}); err == nil {
		t.Fatal("expected error for non-directory")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LoadDir(ctx, testutil.TempDataDir(t), ParseOptions{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestGetDataDir(t *testing.T) {
	t.Setenv(DataDirEnvVar, "")
	if got, _ := GetDataDir("/tmp/x"); got != "/tmp/x" {
		t.Fatalf("explicit path: %q", got)
	}
	wd, _ := os.Getwd()
	if got, _ := GetDataDir(""); got != filepath.Join(wd, DefaultDataDir) {
		t.Fatalf("default: %q", got)
	}
	t.Setenv(DataDirEnvVar, "/env/dir")
	if got, _ := GetDataDir(""); got != "/env/dir" {
		t.Fatalf("env fallback: %q", got)
	}
	if got, _ := GetDataDir("/tmp/x"); got != "/tmp/x" {
		t.Fatalf("explicit path must win over env: %q", got)
	}
}

func TestModTime(t *testing.T) {
	if _, ok := ModTime(t.TempDir()); ok {
		t.Fatal("empty dir should report no files")
	}
	if _, ok := ModTime(testutil.TempDataDir(t)); !ok {
		t.Fatal("populated dir should report files")
	}
}
