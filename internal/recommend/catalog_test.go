package recommend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/importer"
	"github.com/franz/culture-recs/internal/table"
)

func filmTable(t *testing.T, titles ...string) *table.Table {
	t.Helper()
	tbl := table.New("titre", "genre", "annee")
	for i, title := range titles {
		v := table.String(title)
		if title == "" {
			v = table.Null()
		}
		if err := tbl.AppendRow(v, table.String("Drame"), table.String(fmt.Sprintf("%d", 1980+i))); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	return NewCatalog(map[Domain]*table.Table{
		clean.Film:  filmTable(t, "Alien", "Aliens", "Heat", "", "ALIEN", "Alien"),
		clean.Book:  filmTable(t, "Dune", "Dune", "Emma"),
		clean.Music: filmTable(t, "Song"),
	})
}

func TestQueryTitleSubstring(t *testing.T) {
	c := testCatalog(t)

	res, err := c.Query(clean.Film, "alien", Options{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	// Null titles never match; case is ignored
	if res.Total != 4 || len(res.Records) != 4 {
		t.Errorf("matches = %d/%d, expected 4", len(res.Records), res.Total)
	}
	for _, r := range res.Records {
		if r.GetString("titre") == "Heat" {
			t.Error("Heat should not match alien")
		}
	}
	if res.Records[0].GetString("titre") != "Alien" || res.Records[1].GetString("titre") != "Aliens" {
		t.Error("matches must keep table order")
	}
}

func TestQueryLimitAndDedupe(t *testing.T) {
	c := testCatalog(t)

	res, err := c.Query(clean.Film, "alien", Options{Limit: 2})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(res.Records) != 2 || res.Total != 4 {
		t.Errorf("records = %d total = %d", len(res.Records), res.Total)
	}

	res, err = c.Query(clean.Film, "alien", DefaultOptions(clean.Film))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	// "Alien" appears twice; "ALIEN" differs by case and is kept
	if len(res.Records) != 3 {
		t.Errorf("deduped records = %d, expected 3", len(res.Records))
	}

	res, err = c.Query(clean.Book, "dune", DefaultOptions(clean.Book))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(res.Records) != 2 {
		t.Errorf("book results must not be deduped: %d", len(res.Records))
	}
}

func TestQueryLimitBound(t *testing.T) {
	titles := make([]string, 25)
	for i := range titles {
		titles[i] = fmt.Sprintf("Star %d", i)
	}
	c := NewCatalog(map[Domain]*table.Table{clean.Film: filmTable(t, titles...)})

	res, err := c.Query(clean.Film, "star", DefaultOptions(clean.Film))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(res.Records) != LimitLocal {
		t.Errorf("records = %d, expected min(%d, matches)", len(res.Records), LimitLocal)
	}
}

func TestQueryNoMatch(t *testing.T) {
	c := testCatalog(t)

	res, err := c.Query(clean.Film, "zzz-no-such-title", DefaultOptions(clean.Film))
	if err != nil {
		t.Fatalf("zero matches must not be an error: %v", err)
	}
	if len(res.Records) != 0 || res.Total != 0 {
		t.Errorf("expected empty result, got %d", len(res.Records))
	}
}

func TestQuerySample(t *testing.T) {
	c := testCatalog(t)

	res, err := c.Query(clean.Film, "", Options{SampleSize: 3, Seed: 42})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("sample size = %d", len(res.Records))
	}

	again, _ := c.Query(clean.Film, "", Options{SampleSize: 3, Seed: 42})
	for i := range res.Records {
		if res.Records[i].GetString("annee") != again.Records[i].GetString("annee") {
			t.Fatal("same seed must produce the same sample")
		}
	}

	res, err = c.Query(clean.Music, "", Options{SampleSize: LimitSample})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(res.Records) != 1 {
		t.Errorf("sample of a 1-row table = %d, expected 1", len(res.Records))
	}
}

func TestQueryUnknownDomain(t *testing.T) {
	c := testCatalog(t)
	if _, err := c.Query(Domain("jeux"), "x", Options{}); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("expected ErrUnknownDomain, got %v", err)
	}
}

func TestKeyword(t *testing.T) {
	tbl := table.New("titre", "auteur", "genre")
	_ = tbl.AppendRow(table.String("Dune"), table.String("Herbert"), table.String("Science-fiction"))
	_ = tbl.AppendRow(table.String("Emma"), table.String("Austen"), table.String("Roman"))
	_ = tbl.AppendRow(table.String("Fondation"), table.Null(), table.String("science"))
	c := NewCatalog(map[Domain]*table.Table{clean.Book: tbl})

	res, err := c.Keyword(clean.Book, []string{"SCIENCE", "austen"}, 0)
	if err != nil {
		t.Fatalf("Keyword failed: %v", err)
	}
	if res.Total != 3 {
		t.Errorf("matches = %d, expected 3", res.Total)
	}

	res, _ = c.Keyword(clean.Book, []string{"herbert"}, 1)
	if len(res.Records) != 1 || res.Records[0].GetString("titre") != "Dune" {
		t.Errorf("unexpected keyword result %+v", res.Records)
	}

	res, _ = c.Keyword(clean.Book, []string{" "}, 0)
	if res.Total != 0 {
		t.Error("blank keywords must match nothing")
	}
}

func TestTitles(t *testing.T) {
	c := testCatalog(t)
	titles, err := c.Titles(clean.Book)
	if err != nil {
		t.Fatalf("Titles failed: %v", err)
	}
	if len(titles) != 2 || titles[0] != "Dune" || titles[1] != "Emma" {
		t.Errorf("titles = %v", titles)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, d := range clean.Domains {
		if _, err := importer.WriteCSV(filepath.Join(dir, d.FileName()), filmTable(t, "A", "B")); err != nil {
			t.Fatal(err)
		}
	}

	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if c.Len(clean.Music) != 2 {
		t.Errorf("music rows = %d", c.Len(clean.Music))
	}

	if err := os.Remove(filepath.Join(dir, "livres.csv")); err != nil {
		t.Fatal(err)
	}
	c, err = Open(dir)
	if err != nil {
		t.Fatalf("missing catalog file must not fail Open: %v", err)
	}
	if c.Len(clean.Book) != 0 {
		t.Errorf("book rows = %d, expected empty catalog", c.Len(clean.Book))
	}
	res, err := c.Query(clean.Book, "", DefaultOptions(clean.Book))
	if err != nil || len(res.Records) != 0 {
		t.Errorf("query on empty catalog = %v, %v", res, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "livres.csv"), []byte("a,b\n1,2,3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir); !errors.Is(err, importer.ErrLoadFailure) {
		t.Errorf("expected ErrLoadFailure for unreadable file, got %v", err)
	}
}

func TestQueryBlankTitleIsSubstringSearch(t *testing.T) {
	c := NewCatalog(map[Domain]*table.Table{
		clean.Film: filmTable(t, "Le Cinquième Élément", "Heat", "Taxi Driver"),
	})

	res, err := c.Query(clean.Film, " ", Options{SampleSize: 3, Seed: 1})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.Total != 2 {
		t.Errorf("matches = %d, expected the 2 titles containing a space", res.Total)
	}
	for _, r := range res.Records {
		if r.GetString("titre") == "Heat" {
			t.Error("Heat has no space and must not match")
		}
	}
}
