package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/franz/culture-recs/internal/table"
	"github.com/franz/culture-recs/internal/util"
)

var (
	// ErrUnsupportedFormat is returned for extensions that are neither
	// delimited text nor spreadsheets
	ErrUnsupportedFormat = fmt.Errorf("%w format", util.ErrUnsupported)

	// ErrLoadFailure is returned when no encoding yields a parseable table
	ErrLoadFailure = errors.New("unable to load file")
)

// Format is the container type inferred from a file extension
type Format int

const (
	FormatUnknown Format = iota
	FormatDelimited
	FormatXLSX
	FormatXLS
)

// DetectFormat maps a filename to its container format
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".tsv", ".txt":
		return FormatDelimited
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	default:
		return FormatUnknown
	}
}

// Candidate text encodings, tried in order
type textEncoding struct {
	name string
	enc  encoding.Encoding // nil means strict UTF-8
}

var textEncodings = []textEncoding{
	{name: "utf-8"},
	{name: "latin1", enc: charmap.Windows1252},
	{name: "iso-8859-1", enc: charmap.ISO8859_1},
}

// Delimiters considered by the sniffer, in tie-break order
var delimiters = []rune{',', ';', '\t', '|'}

// nullTokens are cell values treated as missing, as pandas does by default
var nullTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"NaN":  true,
	"nan":  true,
	"-NaN": true,
	"NULL": true,
	"null": true,
	"None": true,
	"#N/A": true,
	"<NA>": true,
	"#NA":  true,
	"-nan": true,
}

// Load reads a delimited-text or spreadsheet file from disk
func Load(path string) (*table.Table, error) {
	name := filepath.Base(path)
	format := DetectFormat(name)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrLoadFailure, name, err)
	}

	return decode(name, data, format)
}

// LoadBytes reads an in-memory upload; name supplies the extension
func LoadBytes(name string, data []byte) (*table.Table, error) {
	name = filepath.Base(name)
	format := DetectFormat(name)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
	return decode(name, data, format)
}

// LoadReader drains r and decodes it like LoadBytes
func LoadReader(name string, r io.Reader) (*table.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrLoadFailure, filepath.Base(name), err)
	}
	return LoadBytes(name, data)
}

func decode(name string, data []byte, format Format) (*table.Table, error) {
	var (
		t   *table.Table
		err error
	)

	switch format {
	case FormatDelimited:
		t, err = decodeDelimited(data)
	case FormatXLSX:
		t, err = decodeXLSX(data)
	case FormatXLS:
		t, err = decodeXLS(data)
	}
	if err != nil {
		util.DebugLog("Import of %s failed: %v", name, err)
		return nil, fmt.Errorf("%w %s: %v", ErrLoadFailure, name, err)
	}

	util.InfoLog("Loaded %s (%s rows, %d columns)", name, util.FormatCount(t.Len()), t.Width())
	return t, nil
}

// decodeDelimited tries each encoding in turn; the first one that decodes
// and parses wins
func decodeDelimited(data []byte) (*table.Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var lastErr error
	for _, te := range textEncodings {
		text, err := decodeText(data, te)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", te.name, err)
			continue
		}

		delim := SniffDelimiter(firstLine(text))
		t, err := parseDelimited(text, delim)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", te.name, err)
			continue
		}
		util.DebugLog("Parsed delimited text as %s with delimiter %q", te.name, delim)
		return t, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no encoding attempted")
	}
	return nil, lastErr
}

func decodeText(data []byte, te textEncoding) (string, error) {
	if te.enc == nil {
		if !utf8.Valid(data) {
			return "", errors.New("invalid utf-8")
		}
		return string(data), nil
	}
	out, err := te.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func firstLine(text string) string {
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		return text[:i]
	}
	return text
}

// SniffDelimiter picks the candidate delimiter that occurs most often in the
// sample line, ignoring characters inside double quotes. Ties go to the
// earlier candidate; a sample without any candidate yields ','.
func SniffDelimiter(sample string) rune {
	counts := make(map[rune]int, len(delimiters))
	inQuotes := false
	for _, r := range sample {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		for _, d := range delimiters {
			if r == d {
				counts[d]++
			}
		}
	}

	best, bestCount := ',', 0
	for _, d := range delimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

func parseDelimited(text string, delim rune) (*table.Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := table.New(dedupeHeader(header)...)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := appendPadded(t, rec); err != nil {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return t, nil
}

// appendPadded adds a row, filling missing trailing cells with null. Rows
// wider than the header are rejected.
func appendPadded(t *table.Table, cells []string) error {
	if len(cells) > t.Width() {
		return fmt.Errorf("expected %d fields, saw %d", t.Width(), len(cells))
	}
	values := toValues(cells)
	for len(values) < t.Width() {
		values = append(values, table.Null())
	}
	return t.AppendRow(values...)
}

// dedupeHeader suffixes repeated or blank header names so every column is
// addressable ("a", "a.1", "Unnamed: 2")
func dedupeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n+1)
		} else {
			seen[h] = 0
		}
		out[i] = h
	}
	return out
}

func toValues(cells []string) []table.Value {
	out := make([]table.Value, len(cells))
	for i, c := range cells {
		out[i] = cellValue(c)
	}
	return out
}

func cellValue(s string) table.Value {
	if nullTokens[strings.TrimSpace(s)] {
		return table.Null()
	}
	return table.String(s)
}
