package recommend

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/importer"
	"github.com/franz/culture-recs/internal/table"
	"github.com/franz/culture-recs/internal/util"
)

// Domain re-exports the catalog kind
type Domain = clean.Domain

// ErrUnknownDomain is returned for a domain the catalog does not hold
var ErrUnknownDomain = errors.New("unknown domain")

const (
	// LimitLocal caps in-process title matches and samples
	LimitLocal = 10
	// LimitSample is the HTTP random sample size
	LimitSample = 5

	titleColumn = clean.KeyColumn
)

// Catalog holds one cleaned table per domain. It is read-only after
// construction and safe for concurrent use.
type Catalog struct {
	tables map[Domain]*table.Table
}

// NewCatalog wraps already loaded tables
func NewCatalog(tables map[Domain]*table.Table) *Catalog {
	c := &Catalog{tables: make(map[Domain]*table.Table, len(tables))}
	for d, t := range tables {
		if t != nil {
			c.tables[d] = t
		}
	}
	return c
}

// Open loads the cleaned CSV of every domain from dir. A domain whose file
// does not exist is served as an empty table.
func Open(dir string) (*Catalog, error) {
	tables := make(map[Domain]*table.Table, len(clean.Domains))
	for _, d := range clean.Domains {
		path := filepath.Join(dir, d.FileName())
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			util.WarnLog("No cleaned %s catalog at %s, serving it empty", d.Collection(), path)
			tables[d] = table.New(titleColumn)
			continue
		}
		t, err := importer.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load %s catalog: %w", d, err)
		}
		tables[d] = t
	}
	return NewCatalog(tables), nil
}

// Table returns the domain's table
func (c *Catalog) Table(d Domain) (*table.Table, error) {
	t, ok := c.tables[d]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, d)
	}
	return t, nil
}

// Len returns the row count of a domain, or 0 when it is not loaded
func (c *Catalog) Len(d Domain) int {
	if t, ok := c.tables[d]; ok {
		return t.Len()
	}
	return 0
}

// Options controls a query
type Options struct {
	// Limit caps title matches; zero returns every match
	Limit int
	// SampleSize is the random sample size when no title is given
	SampleSize int
	// Seed makes sampling reproducible when non-zero
	Seed uint64
	// Dedupe re-applies title deduplication to the results
	Dedupe bool
}

// DefaultOptions returns the in-process settings for a domain. Books are
// not deduplicated at query time.
func DefaultOptions(d Domain) Options {
	return Options{
		Limit:      LimitLocal,
		SampleSize: LimitLocal,
		Dedupe:     d != clean.Book,
	}
}

// Result is the outcome of a query
type Result struct {
	Domain  Domain
	Query   string
	Records []table.Record
	// Total is the number of matches before the limit was applied
	Total int
}

// Query returns rows whose title contains title (case-insensitive), in
// table order. Only the empty title returns a uniform random sample; a
// blank title is searched literally. Zero matches are not an error.
func (c *Catalog) Query(d Domain, title string, opts Options) (*Result, error) {
	t, err := c.Table(d)
	if err != nil {
		return nil, err
	}

	var matched *table.Table
	total := 0
	if title != "" {
		matched = matchTitle(t, title)
		total = matched.Len()
		if opts.Limit > 0 {
			matched = matched.Head(opts.Limit)
		}
	} else {
		n := opts.SampleSize
		if n <= 0 {
			n = LimitSample
		}
		matched = t.Sample(n, newRand(opts.Seed))
		total = matched.Len()
	}

	if opts.Dedupe && matched.HasColumn(titleColumn) {
		if deduped, err := matched.DropDuplicates(titleColumn); err == nil {
			matched = deduped
		}
	}

	return &Result{
		Domain:  d,
		Query:   title,
		Records: matched.Records(),
		Total:   total,
	}, nil
}

// Keyword returns rows where any cell contains any of words
// (case-insensitive). limit <= 0 returns every match.
func (c *Catalog) Keyword(d Domain, words []string, limit int) (*Result, error) {
	t, err := c.Table(d)
	if err != nil {
		return nil, err
	}

	needles := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			needles = append(needles, w)
		}
	}

	matched := t.Filter(func(i int) bool {
		if len(needles) == 0 {
			return false
		}
		for _, v := range t.Row(i) {
			if v.IsNull() {
				continue
			}
			cell := strings.ToLower(v.String())
			for _, n := range needles {
				if strings.Contains(cell, n) {
					return true
				}
			}
		}
		return false
	})

	total := matched.Len()
	if limit > 0 {
		matched = matched.Head(limit)
	}
	return &Result{
		Domain:  d,
		Query:   strings.Join(words, " "),
		Records: matched.Records(),
		Total:   total,
	}, nil
}

// Titles returns the distinct non-null titles of a domain in table order
func (c *Catalog) Titles(d Domain) ([]string, error) {
	t, err := c.Table(d)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, v := range t.Column(titleColumn) {
		if v.IsNull() || seen[v.String()] {
			continue
		}
		seen[v.String()] = true
		out = append(out, v.String())
	}
	return out, nil
}

func matchTitle(t *table.Table, title string) *table.Table {
	needle := strings.ToLower(title)
	column := t.Column(titleColumn)
	return t.Filter(func(i int) bool {
		if column == nil || column[i].IsNull() {
			return false
		}
		return strings.Contains(strings.ToLower(column[i].String()), needle)
	})
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}
