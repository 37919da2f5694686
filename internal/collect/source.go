package collect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/table"
	"github.com/franz/culture-recs/internal/util"
)

var (
	// ErrEndOfData is returned by FetchPage when the upstream has no more
	// pages; iteration stops without counting a failure
	ErrEndOfData = errors.New("no more data")

	// ErrAllPagesFailed is returned when every requested page failed
	ErrAllPagesFailed = errors.New("all pages failed")
)

// Columns of the collected tables, per domain
var (
	FilmColumns  = []string{"titre", "auteur", "langue", "genre", "description", "annee", "source"}
	BookColumns  = FilmColumns
	MusicColumns = []string{"titre", "artiste", "album", "langue", "genre", "annee", "source"}
)

// Language labels written to the langue column
const (
	French  = "français"
	English = "anglais"
)

// Row is one collected record keyed by column name
type Row map[string]table.Value

// Source is a paginated upstream catalog feed
type Source interface {
	// Name identifies the source in logs and the run journal
	Name() string
	Domain() clean.Domain
	// Pages is the number of pages to request; FetchPage is called with
	// indices 0..Pages()-1
	Pages() int
	FetchPage(ctx context.Context, index int) ([]Row, error)
}

// ColumnsFor returns the collected schema of a domain
func ColumnsFor(d clean.Domain) []string {
	if d == clean.Music {
		return MusicColumns
	}
	return FilmColumns
}

// Text wraps an upstream string; missing fields become null
func Text(s string) table.Value {
	if s == "" {
		return table.Null()
	}
	return table.String(s)
}

// Year returns the first four characters of a date string
func Year(date string) table.Value {
	if len(date) < 4 {
		return table.Null()
	}
	return table.String(date[:4])
}

// JoinOr joins parts with ", ", or returns fallback when there are none
func JoinOr(parts []string, fallback string) table.Value {
	if len(parts) == 0 {
		return table.String(fallback)
	}
	return table.String(strings.Join(parts, ", "))
}

// GetJSON performs a GET request and decodes a JSON body into v.
// Non-200 responses are returned as *util.StatusError.
func GetJSON(ctx context.Context, client *http.Client, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &util.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
