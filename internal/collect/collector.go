package collect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/importer"
	"github.com/franz/culture-recs/internal/metrics"
	"github.com/franz/culture-recs/internal/report"
	"github.com/franz/culture-recs/internal/store"
	"github.com/franz/culture-recs/internal/table"
	"github.com/franz/culture-recs/internal/util"
)

// Collector fetches sources page by page and writes one raw table per domain
type Collector struct {
	store        *store.Store
	logger       *report.EventLogger
	retry        *util.RetryConfig
	showProgress bool
}

// Config holds collector configuration
type Config struct {
	Store        *store.Store // optional run journal
	Logger       *report.EventLogger
	Retry        *util.RetryConfig
	ShowProgress bool
}

// New creates a new Collector
func New(cfg *Config) *Collector {
	if cfg.Retry == nil {
		cfg.Retry = util.DefaultRetryConfig()
	}
	return &Collector{
		store:        cfg.Store,
		logger:       cfg.Logger,
		retry:        cfg.Retry,
		showProgress: cfg.ShowProgress,
	}
}

// SourceSummary is the outcome of collecting one source
type SourceSummary struct {
	Source      string
	RunID       string
	PagesOK     int
	PagesEmpty  int
	PagesFailed int
	Rows        int
	// Stopped is set when the upstream signalled the end of its data
	Stopped bool
	Errors  []error
}

// RunSummary is the outcome of collecting one domain. It tells "nothing
// came back" apart from "requests failed".
type RunSummary struct {
	Domain       clean.Domain
	Sources      []SourceSummary
	Rows         int
	OutputPath   string
	BytesWritten int64
}

// PagesFailed totals failed pages across sources
func (s *RunSummary) PagesFailed() int {
	n := 0
	for _, src := range s.Sources {
		n += src.PagesFailed
	}
	return n
}

// PagesRequested totals attempted pages across sources
func (s *RunSummary) PagesRequested() int {
	n := 0
	for _, src := range s.Sources {
		n += src.PagesOK + src.PagesEmpty + src.PagesFailed
	}
	return n
}

// Run collects every source of domain d in order and writes the
// concatenated rows to outPath. A failed page is logged, journaled and
// skipped. When every page failed nothing is written and
// ErrAllPagesFailed is returned along with the summary.
func (c *Collector) Run(ctx context.Context, d clean.Domain, sources []Source, outPath string) (*RunSummary, error) {
	summary := &RunSummary{Domain: d, OutputPath: outPath}
	columns := ColumnsFor(d)
	out := table.New(columns...)

	for _, src := range sources {
		if src.Domain() != d {
			return summary, fmt.Errorf("source %s belongs to %s, not %s", src.Name(), src.Domain(), d)
		}
		ss, err := c.collectSource(ctx, src, out, columns, outPath)
		summary.Sources = append(summary.Sources, *ss)
		if err != nil {
			return summary, err
		}
	}
	summary.Rows = out.Len()

	if requested := summary.PagesRequested(); requested > 0 && summary.PagesFailed() == requested {
		return summary, fmt.Errorf("%s: %w (%d pages)", d, ErrAllPagesFailed, requested)
	}

	n, err := importer.WriteCSV(outPath, out)
	if err != nil {
		return summary, fmt.Errorf("persist %s: %w", outPath, err)
	}
	summary.BytesWritten = n
	c.logger.LogPersist(string(d), outPath, out.Len(), n)

	if summary.Rows == 0 {
		util.WarnLog("%s: no rows collected (%d pages requested, none failed)", d, summary.PagesRequested())
	}
	return summary, nil
}

func (c *Collector) collectSource(ctx context.Context, src Source, out *table.Table, columns []string, outPath string) (*SourceSummary, error) {
	ss := &SourceSummary{Source: src.Name()}

	var run *store.Run
	if c.store != nil {
		var err error
		run, err = c.store.StartRun(src.Name(), string(src.Domain()))
		if err != nil {
			return ss, err
		}
		ss.RunID = run.ID
	}

	pages := src.Pages()
	util.InfoLog("Collecting %s (%d pages)", src.Name(), pages)

	var bar *progressbar.ProgressBar
	if c.showProgress && util.IsTerminal(os.Stderr.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(pages,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(src.Name()),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("pages"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
	}

	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return ss, err
		}

		start := time.Now()
		rows, err := util.RetryWithBackoff(ctx, c.retry, func() ([]Row, error) {
			return src.FetchPage(ctx, i)
		}, fmt.Sprintf("%s page %d", src.Name(), i))
		elapsed := time.Since(start)

		if errors.Is(err, ErrEndOfData) {
			util.InfoLog("%s: no data at page %d, stopping", src.Name(), i)
			ss.Stopped = true
			break
		}
		if err != nil && ctx.Err() != nil {
			return ss, ctx.Err()
		}

		page := &store.PageResult{Page: i, Rows: len(rows)}
		switch {
		case err != nil:
			ss.PagesFailed++
			ss.Errors = append(ss.Errors, fmt.Errorf("page %d: %w", i, err))
			page.Status = store.PageFailed
			page.Error = err.Error()
			page.Rows = 0
			util.WarnLog("%s: page %d failed: %v", src.Name(), i, err)
		case len(rows) == 0:
			ss.PagesEmpty++
			page.Status = store.PageEmpty
		default:
			ss.PagesOK++
			page.Status = store.PageOK
			for _, r := range rows {
				out.AppendRecord(r, columns...)
			}
			ss.Rows += len(rows)
		}

		metrics.RecordPage(src.Name(), page.Rows, err)
		c.logger.LogFetch(src.Name(), string(src.Domain()), i, page.Rows, elapsed, err)
		if run != nil {
			page.RunID = run.ID
			if jerr := c.store.RecordPage(page); jerr != nil {
				return ss, jerr
			}
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	if run != nil {
		if _, err := c.store.FinishRun(run.ID, outPath); err != nil {
			return ss, err
		}
	}

	util.InfoLog("%s: %s rows, %d ok, %d empty, %d failed pages",
		src.Name(), util.FormatCount(ss.Rows), ss.PagesOK, ss.PagesEmpty, ss.PagesFailed)
	return ss, nil
}
