package clean

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/franz/culture-recs/internal/importer"
	"github.com/franz/culture-recs/internal/report"
	"github.com/franz/culture-recs/internal/table"
	"github.com/franz/culture-recs/internal/util"
)

// ErrNoSources is returned when none of a domain's inputs could be found
var ErrNoSources = errors.New("no input sources found")

// KeyColumn is the column duplicates are detected on
const KeyColumn = "titre"

// Pipeline loads the raw per-source tables, unifies them per domain,
// handles missing values, removes duplicates and persists the result
type Pipeline struct {
	inputDir  string
	outputDir string
	sources   []SourceSpec
	domains   []Domain
	opts      Options
	logger    *report.EventLogger
}

// Config holds pipeline configuration
type Config struct {
	InputDir  string
	OutputDir string
	Sources   []SourceSpec // nil means DefaultSources()
	Domains   []Domain     // nil means all domains
	Options   Options
	Logger    *report.EventLogger
}

// New creates a new Pipeline
func New(cfg *Config) *Pipeline {
	sources := cfg.Sources
	if sources == nil {
		sources = DefaultSources()
	}
	domains := cfg.Domains
	if len(domains) == 0 {
		domains = Domains
	}
	return &Pipeline{
		inputDir:  cfg.InputDir,
		outputDir: cfg.OutputDir,
		sources:   sources,
		domains:   domains,
		opts:      cfg.Options,
		logger:    cfg.Logger,
	}
}

// DomainSummary describes one domain's cleaning run
type DomainSummary struct {
	Domain            Domain
	Sources           []string
	RowsIn            int
	RowsOut           int
	DuplicatesRemoved int
	Dropped           []ColumnReport
	Filled            []ColumnReport
	OutputPath        string
	BytesWritten      int64
}

// Summary is the result of a full pipeline run
type Summary struct {
	Domains []DomainSummary
	// Skipped lists domains none of whose inputs exist
	Skipped []Domain
}

// Run processes every configured domain in order. A source that exists
// but fails to load aborts the run. A domain without any input is skipped
// with a warning; ErrNoSources is returned only when every domain was.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	if _, err := p.opts.normalized(); err != nil {
		return nil, err
	}

	summary := &Summary{}
	for _, d := range p.domains {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		ds, err := p.runDomain(d)
		if errors.Is(err, ErrNoSources) {
			util.WarnLog("Skipping %s: %v", d.Collection(), err)
			summary.Skipped = append(summary.Skipped, d)
			continue
		}
		if err != nil {
			p.logger.LogError(report.EventError, string(d), err)
			return summary, fmt.Errorf("%s: %w", d, err)
		}
		summary.Domains = append(summary.Domains, *ds)

		util.SuccessLog("%s saved: %s rows (%s)", cases.Title(language.French).String(d.Collection()), util.FormatCount(ds.RowsOut), util.FormatBytes(ds.BytesWritten))
	}
	if len(summary.Domains) == 0 && len(summary.Skipped) > 0 {
		return summary, ErrNoSources
	}
	return summary, nil
}

// Clean runs the in-memory part of the pipeline over an already merged
// table: missing-value handling then deduplication
func Clean(t *table.Table, opts Options) (*table.Table, *Result, int, error) {
	res, err := HandleMissing(t, opts)
	if err != nil {
		return nil, nil, 0, err
	}
	if !res.Table.HasColumn(KeyColumn) {
		return nil, nil, 0, fmt.Errorf("dedupe: column %q missing after cleaning", KeyColumn)
	}
	out, removed, err := DropDuplicates(res.Table, KeyColumn)
	if err != nil {
		return nil, nil, 0, err
	}
	return out, res, removed, nil
}

func (p *Pipeline) runDomain(d Domain) (*DomainSummary, error) {
	ds := &DomainSummary{Domain: d}

	var parts []*table.Table
	for _, spec := range p.sources {
		if spec.Domain != d {
			continue
		}
		t, err := p.loadSource(spec)
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}
		parts = append(parts, t)
		ds.Sources = append(ds.Sources, spec.Name)
	}
	if len(parts) == 0 {
		return nil, ErrNoSources
	}

	merged := table.Concat(parts...)
	ds.RowsIn = merged.Len()

	out, res, removed, err := Clean(merged, p.opts)
	if err != nil {
		return nil, err
	}
	for _, c := range res.Dropped {
		p.logger.LogDropColumn(string(d), c.Column, c.Percent)
	}
	for _, c := range res.Filled {
		p.logger.LogFillColumn(string(d), c.Column, c.Percent, c.Fill)
	}
	p.logger.LogDedupe(string(d), KeyColumn, removed)

	ds.Dropped = res.Dropped
	ds.Filled = res.Filled
	ds.DuplicatesRemoved = removed
	ds.RowsOut = out.Len()
	ds.OutputPath = filepath.Join(p.outputDir, d.FileName())

	n, err := importer.WriteCSV(ds.OutputPath, out)
	if err != nil {
		return nil, fmt.Errorf("persist %s: %w", ds.OutputPath, err)
	}
	ds.BytesWritten = n
	p.logger.LogPersist(string(d), ds.OutputPath, ds.RowsOut, n)

	return ds, nil
}

// loadSource returns nil, nil for an optional source that does not exist
func (p *Pipeline) loadSource(spec SourceSpec) (*table.Table, error) {
	path := spec.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.inputDir, path)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && spec.Optional {
			util.DebugLog("Skipping optional source %s: %s not found", spec.Name, path)
			return nil, nil
		}
		return nil, fmt.Errorf("%w %s: %v", importer.ErrLoadFailure, filepath.Base(path), err)
	}

	t, err := importer.Load(path)
	if err != nil {
		return nil, err
	}
	p.logger.LogImport(string(spec.Domain), path, t.Len(), t.Width())

	for from, to := range spec.Rename {
		if t.HasColumn(from) {
			p.logger.LogRename(string(spec.Domain), spec.Name, from, to)
		}
	}
	if err := spec.Apply(t); err != nil {
		return nil, err
	}

	NormalizeStrings(t)
	return t, nil
}

// NormalizeStrings converts every present cell to NFC and trims
// surrounding whitespace. Cells that become empty are kept as empty
// strings, not nulls.
func NormalizeStrings(t *table.Table) {
	for _, c := range t.Columns() {
		column := t.Column(c)
		t.SetColumn(c, func(i int) table.Value {
			v := column[i]
			if v.IsNull() {
				return v
			}
			return table.String(strings.TrimSpace(norm.NFC.String(v.String())))
		})
	}
}
