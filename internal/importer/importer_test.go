package importer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/franz/culture-recs/internal/table"
	"github.com/franz/culture-recs/internal/util"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		expected Format
	}{
		{"films.csv", FormatDelimited},
		{"FILMS.CSV", FormatDelimited},
		{"data.tsv", FormatDelimited},
		{"books.xlsx", FormatXLSX},
		{"old.xls", FormatXLS},
		{"notes.json", FormatUnknown},
		{"noext", FormatUnknown},
	}

	for _, tt := range tests {
		if got := DetectFormat(tt.name); got != tt.expected {
			t.Errorf("DetectFormat(%s) = %v, expected %v", tt.name, got, tt.expected)
		}
	}
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		sample   string
		expected rune
	}{
		{"titre,auteur,annee", ','},
		{"titre;auteur;annee", ';'},
		{"titre\tauteur\tannee", '\t'},
		{"titre|auteur", '|'},
		{`"a;b",c,d`, ','},
		{"single", ','},
		{"a,b;c", ','},
	}

	for _, tt := range tests {
		if got := SniffDelimiter(tt.sample); got != tt.expected {
			t.Errorf("SniffDelimiter(%q) = %q, expected %q", tt.sample, got, tt.expected)
		}
	}
}

func TestLoadBytesSemicolonWithNulls(t *testing.T) {
	data := []byte("titre;genre;annee\nAmélie;Comédie;2001\nHeat;;NaN\n")

	tbl, err := LoadBytes("films_fr.csv", data)
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}

	if got := strings.Join(tbl.Columns(), ","); got != "titre,genre,annee" {
		t.Errorf("columns = %s", got)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows = %d, expected 2", tbl.Len())
	}
	if tbl.Get(0, "titre").String() != "Amélie" {
		t.Errorf("titre = %q", tbl.Get(0, "titre").String())
	}
	if !tbl.Get(1, "genre").IsNull() || !tbl.Get(1, "annee").IsNull() {
		t.Error("expected empty and NaN cells to load as null")
	}
}

func TestLoadLatin1File(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().String("titre,auteur\nLes Misérables,Hugo\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "livres_fr.csv")
	if err := os.WriteFile(path, []byte(encoded), 0644); err != nil {
		t.Fatal(err)
	}

	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := tbl.Get(0, "titre").String(); got != "Les Misérables" {
		t.Errorf("titre = %q, expected latin1 decoded text", got)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := LoadBytes("records.json", []byte("{}"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if !errors.Is(err, util.ErrUnsupported) {
		t.Error("expected ErrUnsupportedFormat to wrap util.ErrUnsupported")
	}
}

func TestLoadFailureNamesFile(t *testing.T) {
	_, err := LoadBytes("broken.csv", []byte("a,b\n1,2,3,4\n"))
	if !errors.Is(err, ErrLoadFailure) {
		t.Fatalf("expected ErrLoadFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken.csv") {
		t.Errorf("error should name the file: %v", err)
	}

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.Is(err, ErrLoadFailure) {
		t.Errorf("expected ErrLoadFailure for missing file, got %v", err)
	}
}

func TestShortRowsArePadded(t *testing.T) {
	tbl, err := LoadBytes("x.csv", []byte("a,b,c\n1,2\n"))
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}
	if !tbl.Get(0, "c").IsNull() {
		t.Error("expected missing trailing cell to be null")
	}
}

func TestDuplicateHeaders(t *testing.T) {
	tbl, err := LoadBytes("dup.csv", []byte("titre,titre,\nA,B,C\n"))
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}
	if got := strings.Join(tbl.Columns(), "|"); got != "titre|titre.1|Unnamed: 2" {
		t.Errorf("columns = %s", got)
	}
}

func TestLoadXLSXFirstSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	_ = f.SetCellValue(sheet, "A1", "titre")
	_ = f.SetCellValue(sheet, "B1", "annee")
	_ = f.SetCellValue(sheet, "A2", "Dune")
	_ = f.SetCellValue(sheet, "B2", 1965)
	_ = f.SetCellValue(sheet, "A3", "Solaris")

	if _, err := f.NewSheet("Autre"); err != nil {
		t.Fatalf("NewSheet failed: %v", err)
	}
	_ = f.SetCellValue("Autre", "A1", "ignored")

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer failed: %v", err)
	}

	tbl, err := LoadBytes("livres.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}
	if got := strings.Join(tbl.Columns(), ","); got != "titre,annee" {
		t.Errorf("columns = %s", got)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows = %d, expected 2", tbl.Len())
	}
	if tbl.Get(0, "annee").String() != "1965" {
		t.Errorf("annee = %q", tbl.Get(0, "annee").String())
	}
	if !tbl.Get(1, "annee").IsNull() {
		t.Error("expected missing spreadsheet cell to be null")
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	src := table.New("titre", "annee", "description")
	_ = src.AppendRow(table.String("Alien"), table.String("1979"), table.String(`He said "run", twice`))
	_ = src.AppendRow(table.String("Amélie"), table.String("2001"), table.String("line\nbreak"))

	path := filepath.Join(t.TempDir(), "cleaned", "films.csv")
	size, err := WriteCSV(path, src)
	if err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if size == 0 {
		t.Error("expected non-zero file size")
	}

	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if back.Len() != src.Len() {
		t.Errorf("rows = %d, expected %d", back.Len(), src.Len())
	}
	if strings.Join(back.Columns(), ",") != strings.Join(src.Columns(), ",") {
		t.Errorf("columns = %v, expected %v", back.Columns(), src.Columns())
	}
	if back.Get(0, "description").String() != `He said "run", twice` {
		t.Errorf("quoted cell = %q", back.Get(0, "description").String())
	}
}

func TestEncodeCSVHeaderNoIndex(t *testing.T) {
	src := table.New("titre")
	_ = src.AppendRow(table.Null())

	var buf bytes.Buffer
	if err := EncodeCSV(&buf, src); err != nil {
		t.Fatalf("EncodeCSV failed: %v", err)
	}
	if buf.String() != "titre\n\"\"\n" {
		t.Errorf("unexpected output %q", buf.String())
	}

	back, err := LoadBytes("single.csv", buf.Bytes())
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}
	if back.Len() != 1 || !back.Get(0, "titre").IsNull() {
		t.Errorf("reloaded rows = %d, expected the null row to survive", back.Len())
	}
}
