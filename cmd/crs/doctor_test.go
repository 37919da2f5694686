package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/store"
)

func TestCheckJournal(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.db")
	db, err := store.Open(empty)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	failed := filepath.Join(dir, "failed.db")
	db, err = store.Open(failed)
	if err != nil {
		t.Fatal(err)
	}
	run, err := db.StartRun("tmdb-fr-FR", "film")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.RecordPage(&store.PageResult{RunID: run.ID, Page: 0, Status: store.PageFailed, Error: "401"}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.FinishRun(run.ID, ""); err != nil {
		t.Fatal(err)
	}
	db.Close()

	tests := []struct {
		name    string
		path    string
		warning bool
		contain string
	}{
		{"not created", filepath.Join(dir, "missing.db"), false, "not created yet"},
		{"no runs", empty, false, "no collection runs yet"},
		{"last run failed", failed, true, "1 runs, last tmdb-fr-FR failed"},
		{"empty path", "", true, "no journal path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checkJournal(tt.path)
			if result.error {
				t.Fatalf("unexpected error: %s", result.message)
			}
			if result.warning != tt.warning {
				t.Errorf("warning = %v, expected %v (%s)", result.warning, tt.warning, result.message)
			}
			if !strings.Contains(result.message, tt.contain) {
				t.Errorf("message %q should contain %q", result.message, tt.contain)
			}
		})
	}
}

func TestCheckRawInputs(t *testing.T) {
	sources := []clean.SourceSpec{
		{Name: "films", Path: "films.csv", Domain: clean.Film},
		{Name: "livres", Path: "livres.csv", Domain: clean.Book, Optional: true},
		{Name: "musiques", Path: "musiques.csv", Domain: clean.Music},
	}

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "films.csv"), []byte("titre\nAlien\n"), 0644)

	r := checkRawInputs(dir, sources)
	if !r.error || !strings.Contains(r.message, "required missing: musiques.csv") {
		t.Errorf("missing required input = %+v", r)
	}

	os.WriteFile(filepath.Join(dir, "musiques.csv"), []byte("titre\n"), 0644)
	r = checkRawInputs(dir, sources)
	if r.error || !r.warning || !strings.Contains(r.message, "nothing to clean for livres") {
		t.Errorf("book domain without input = %+v", r)
	}

	os.WriteFile(filepath.Join(dir, "livres.csv"), []byte("titre\nDune\n"), 0644)
	r = checkRawInputs(dir, sources)
	if r.error || r.warning || r.message != "3 of 3 present (films 1, livres 1, musiques 1)" {
		t.Errorf("complete inputs = %+v", r)
	}

	if r := checkRawInputs(filepath.Join(dir, "missing"), sources); !r.warning || r.error {
		t.Error("missing raw directory should only warn")
	}
}

func TestCheckCleanedDirectory(t *testing.T) {
	newDir := filepath.Join(t.TempDir(), "cleaned")
	if result := checkCleanedDirectory(newDir); result.error {
		t.Errorf("cleaned directory check failed: %s", result.message)
	}
	if _, err := os.Stat(newDir); err != nil {
		t.Error("expected directory to be created")
	}
	entries, _ := os.ReadDir(newDir)
	if len(entries) != 0 {
		t.Errorf("write test left %d files behind", len(entries))
	}

	filePath := filepath.Join(t.TempDir(), "file.txt")
	os.WriteFile(filePath, []byte("test"), 0644)
	if result := checkCleanedDirectory(filePath); !result.error {
		t.Error("expected error when path is a file, not a directory")
	}
}

func TestCheckCatalogFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "films.csv")
	os.WriteFile(good, []byte("titre,annee\nAlien,1979\nHeat,1995\n"), 0644)
	noTitle := filepath.Join(dir, "livres.csv")
	os.WriteFile(noTitle, []byte("auteur\nZola\n"), 0644)

	if r := checkCatalogFile(good); r.error || r.warning || r.message != "2 rows, 2 columns" {
		t.Errorf("good catalog = %+v", r)
	}
	if r := checkCatalogFile(noTitle); !r.error {
		t.Errorf("catalog without titre should fail: %+v", r)
	}
	if r := checkCatalogFile(filepath.Join(dir, "musiques.csv")); !r.warning {
		t.Errorf("missing catalog should warn: %+v", r)
	}
}

func TestCheckAPIKey(t *testing.T) {
	if r := checkAPIKey(" "); !r.warning {
		t.Error("blank key should warn")
	}
	r := checkAPIKey("abcdef123456")
	if r.warning || r.message != "****3456" {
		t.Errorf("result = %+v", r)
	}
}

func TestCheckAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/films/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	if r := checkAPI(context.Background(), srv.URL+"/"); r.error || r.warning {
		t.Errorf("live API = %+v", r)
	}
	if r := checkAPI(context.Background(), srv.URL+"/nope"); !r.warning {
		t.Errorf("404 should warn: %+v", r)
	}
	if r := checkAPI(context.Background(), ""); !r.warning {
		t.Error("missing url should warn")
	}
}

func TestCheckDataSpace(t *testing.T) {
	data := t.TempDir()
	raw := filepath.Join(data, "raw")
	os.MkdirAll(raw, 0755)
	os.WriteFile(filepath.Join(raw, "films.csv"), []byte("titre\nAlien\n"), 0644)

	result := checkDataSpace(data, raw)
	if result.error {
		t.Errorf("free space check failed: %s", result.message)
	}
	if !strings.Contains(result.message, "raw inputs 12 B") {
		t.Errorf("message = %q", result.message)
	}

	if result := checkDataSpace("/nonexistent/path", raw); !result.warning {
		t.Error("expected warning for non-existent path")
	}
}
