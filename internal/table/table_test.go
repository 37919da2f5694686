package table

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl := New("titre", "annee")
	rows := [][]Value{
		{String("Alien"), String("1979")},
		{String("Aliens"), String("1986")},
		{Null(), String("2001")},
		{String("Alien"), Null()},
	}
	for _, r := range rows {
		if err := tbl.AppendRow(r...); err != nil {
			t.Fatalf("AppendRow failed: %v", err)
		}
	}
	return tbl
}

func TestAppendRowWidthMismatch(t *testing.T) {
	tbl := New("a", "b")
	if err := tbl.AppendRow(String("x")); err == nil {
		t.Error("expected width mismatch error")
	}
}

func TestKindAndNullCount(t *testing.T) {
	tbl := sampleTable(t)

	if got := tbl.Kind("annee"); got != KindNumeric {
		t.Errorf("annee kind = %v, expected numeric", got)
	}
	if got := tbl.Kind("titre"); got != KindCategorical {
		t.Errorf("titre kind = %v, expected categorical", got)
	}
	if got := tbl.NullCount("titre"); got != 1 {
		t.Errorf("titre nulls = %d, expected 1", got)
	}
	if got := tbl.NullCount("annee"); got != 1 {
		t.Errorf("annee nulls = %d, expected 1", got)
	}
}

func TestRename(t *testing.T) {
	tbl := New("title", "year", "other")
	if err := tbl.Rename(map[string]string{"title": "titre", "year": "annee", "missing": "x"}); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	got := strings.Join(tbl.Columns(), ",")
	if got != "titre,annee,other" {
		t.Errorf("columns = %s", got)
	}

	if err := tbl.Rename(map[string]string{"other": "titre"}); err == nil {
		t.Error("expected collision error")
	}
}

func TestConcatUnionsColumns(t *testing.T) {
	a := New("titre", "genre")
	_ = a.AppendRow(String("A"), String("Drame"))
	b := New("titre", "langue")
	_ = b.AppendRow(String("B"), String("anglais"))

	out := Concat(a, nil, b)

	if got := strings.Join(out.Columns(), ","); got != "titre,genre,langue" {
		t.Fatalf("columns = %s", got)
	}
	if out.Len() != 2 {
		t.Fatalf("rows = %d, expected 2", out.Len())
	}
	if !out.Get(0, "langue").IsNull() {
		t.Error("expected null langue for first table's row")
	}
	if !out.Get(1, "genre").IsNull() {
		t.Error("expected null genre for second table's row")
	}
	if out.Get(1, "langue").String() != "anglais" {
		t.Errorf("langue = %q", out.Get(1, "langue").String())
	}
}

func TestDropDuplicatesKeepsFirst(t *testing.T) {
	tbl := sampleTable(t)
	_ = tbl.AppendRow(Null(), String("2002"))

	out, err := tbl.DropDuplicates("titre")
	if err != nil {
		t.Fatalf("DropDuplicates failed: %v", err)
	}
	if out.Len() != 3 {
		t.Fatalf("rows = %d, expected 3", out.Len())
	}
	if out.Get(0, "annee").String() != "1979" {
		t.Errorf("expected first Alien (1979) kept, got %q", out.Get(0, "annee").String())
	}
	if out.Get(2, "annee").String() != "2001" {
		t.Errorf("expected first null-title row kept, got %q", out.Get(2, "annee").String())
	}

	if _, err := tbl.DropDuplicates("nope"); err == nil {
		t.Error("expected error for unknown key column")
	}
}

func TestSampleWithoutReplacement(t *testing.T) {
	tbl := New("n")
	for i := 0; i < 20; i++ {
		_ = tbl.AppendRow(String(strings.Repeat("x", i+1)))
	}

	rng := rand.New(rand.NewPCG(7, 7))
	out := tbl.Sample(5, rng)
	if out.Len() != 5 {
		t.Fatalf("sample size = %d", out.Len())
	}
	seen := map[string]bool{}
	for i := 0; i < out.Len(); i++ {
		v := out.Get(i, "n").String()
		if seen[v] {
			t.Errorf("value %q sampled twice", v)
		}
		seen[v] = true
	}

	if got := tbl.Sample(100, rng).Len(); got != 20 {
		t.Errorf("oversized sample = %d, expected 20", got)
	}

	a := tbl.Sample(5, rand.New(rand.NewPCG(42, 42)))
	b := tbl.Sample(5, rand.New(rand.NewPCG(42, 42)))
	for i := 0; i < 5; i++ {
		if a.Get(i, "n") != b.Get(i, "n") {
			t.Fatal("same seed produced different samples")
		}
	}
}

func TestDropAndSelect(t *testing.T) {
	tbl := sampleTable(t)
	tbl.SetColumn("source", func(i int) Value { return String("s") })
	tbl.DropColumns("annee", "unknown")

	if got := strings.Join(tbl.Columns(), ","); got != "titre,source" {
		t.Fatalf("columns = %s", got)
	}
	if tbl.Get(1, "source").String() != "s" {
		t.Error("expected source column value")
	}

	sel, err := tbl.Select("source")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if sel.Width() != 1 || tbl.Width() != 2 {
		t.Errorf("Select should not mutate original: %d/%d", sel.Width(), tbl.Width())
	}
}

func TestRecordsJSONKeepsOrder(t *testing.T) {
	tbl := New("titre", "annee")
	_ = tbl.AppendRow(String("Alien"), String("1979"))
	_ = tbl.AppendRow(String("Heat"), Null())

	recs := tbl.Records()
	if len(recs) != 2 {
		t.Fatalf("records = %d", len(recs))
	}

	b, err := json.Marshal(recs)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	expected := `[{"titre":"Alien","annee":1979},{"titre":"Heat","annee":null}]`
	if string(b) != expected {
		t.Errorf("json = %s, expected %s", b, expected)
	}

	var back []Record
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back[0].GetString("titre") != "Alien" || back[0].GetString("annee") != "1979" {
		t.Errorf("decoded record = %v", back[0])
	}
	if strings.Join(back[1].Keys(), ",") != "titre,annee" {
		t.Errorf("decoded keys = %v", back[1].Keys())
	}
}
