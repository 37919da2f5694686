package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/franz/culture-recs/internal/store"
	"github.com/franz/culture-recs/internal/util"
)

// SummaryReport aggregates the collection journal and the event log
type SummaryReport struct {
	GeneratedAt time.Time

	// Run statistics
	RunsTotal   int
	RunsOK      int
	RunsPartial int
	RunsFailed  int
	RunsOpen    int
	PagesOK     int
	PagesFailed int
	RowsFetched int

	// Details
	Runs      []*store.Run
	Sources   []SourceTotals
	TopErrors []ErrorSummary

	// Event log statistics, keyed by event type and by level
	EventCounts map[string]int
	LevelCounts map[string]int
	// Rows persisted per domain, from the latest persist event of each
	Persisted map[string]int

	// Metadata
	DatabasePath string
	EventLogPath string
}

// SourceTotals sums the runs of one source
type SourceTotals struct {
	Source      string
	Domain      string
	Runs        int
	PagesOK     int
	PagesFailed int
	Rows        int
	LastStatus  string
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Source string
	Error  string
	Count  int
}

// recentRuns bounds how many runs are listed individually
const recentRuns = 20

// GenerateSummaryReport creates a summary report from database and event logs.
// A missing event log is not an error.
func GenerateSummaryReport(db *store.Store, eventLogPath string) (*SummaryReport, error) {
	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		EventLogPath: eventLogPath,
		TopErrors:    make([]ErrorSummary, 0),
		EventCounts:  make(map[string]int),
		LevelCounts:  make(map[string]int),
		Persisted:    make(map[string]int),
	}

	runs, err := db.ListRuns(0)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	report.RunsTotal = len(runs)
	report.Sources = gatherSourceTotals(runs)
	for _, run := range runs {
		switch run.Status {
		case store.RunOK:
			report.RunsOK++
		case store.RunPartial:
			report.RunsPartial++
		case store.RunFailed:
			report.RunsFailed++
		default:
			report.RunsOpen++
		}
		report.PagesOK += run.PagesOK
		report.PagesFailed += run.PagesFailed
		report.RowsFetched += run.Rows
	}
	if len(runs) > recentRuns {
		runs = runs[:recentRuns]
	}
	report.Runs = runs

	topErrors, err := db.TopPageErrors(10)
	if err != nil {
		return nil, err
	}
	for _, e := range topErrors {
		report.TopErrors = append(report.TopErrors, ErrorSummary{Source: e.Source, Error: e.Error, Count: e.Count})
	}

	if eventLogPath != "" {
		if err := report.countEvents(eventLogPath); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// gatherSourceTotals folds runs (newest first) into per-source totals
func gatherSourceTotals(runs []*store.Run) []SourceTotals {
	bySource := make(map[string]*SourceTotals)
	for _, run := range runs {
		st, ok := bySource[run.Source]
		if !ok {
			st = &SourceTotals{Source: run.Source, Domain: run.Domain, LastStatus: run.Status}
			bySource[run.Source] = st
		}
		st.Runs++
		st.PagesOK += run.PagesOK
		st.PagesFailed += run.PagesFailed
		st.Rows += run.Rows
	}

	out := make([]SourceTotals, 0, len(bySource))
	for _, st := range bySource {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		return out[i].Source < out[j].Source
	})
	return out
}

// countEvents tallies a JSONL event log. Lines that do not decode are skipped.
func (r *SummaryReport) countEvents(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		r.EventCounts[string(e.Event)]++
		r.LevelCounts[string(e.Level)]++
		if e.Event == EventPersist && e.Domain != "" {
			r.Persisted[e.Domain] = e.Rows
		}
	}
	return scanner.Err()
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// RenderMarkdown formats the report
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder

	md.WriteString("# Culture & Loisirs - Collection Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	// Overview
	md.WriteString("## 📊 Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Runs | %d |\n", report.RunsTotal))
	md.WriteString(fmt.Sprintf("| Runs OK | %d |\n", report.RunsOK))
	if report.RunsPartial > 0 {
		md.WriteString(fmt.Sprintf("| Runs Partial | %d |\n", report.RunsPartial))
	}
	if report.RunsFailed > 0 {
		md.WriteString(fmt.Sprintf("| Runs Failed | %d |\n", report.RunsFailed))
	}
	if report.RunsOpen > 0 {
		md.WriteString(fmt.Sprintf("| Runs Unfinished | %d |\n", report.RunsOpen))
	}
	md.WriteString(fmt.Sprintf("| Pages OK | %d |\n", report.PagesOK))
	md.WriteString(fmt.Sprintf("| Pages Failed | %d |\n", report.PagesFailed))
	md.WriteString(fmt.Sprintf("| Rows Fetched | %s |\n", util.FormatCount(report.RowsFetched)))
	md.WriteString("\n")

	// Sources
	if len(report.Sources) > 0 {
		md.WriteString("## 🌐 Sources\n\n")
		md.WriteString("| Source | Domain | Runs | Pages OK | Pages Failed | Rows | Last Status |\n")
		md.WriteString("|--------|--------|------|----------|--------------|------|-------------|\n")
		for _, s := range report.Sources {
			md.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %s | %s |\n",
				s.Source, s.Domain, s.Runs, s.PagesOK, s.PagesFailed, util.FormatCount(s.Rows), s.LastStatus))
		}
		md.WriteString("\n")
	}

	// Recent runs
	if len(report.Runs) > 0 {
		md.WriteString(fmt.Sprintf("## 🕒 Recent Runs (Top %d)\n\n", recentRuns))
		md.WriteString("| Started | Source | Status | Rows | Output |\n")
		md.WriteString("|---------|--------|--------|------|--------|\n")
		for _, run := range report.Runs {
			output := "-"
			if run.OutputPath != "" {
				output = fmt.Sprintf("`%s`", truncatePath(run.OutputPath, 60))
			}
			md.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s |\n",
				run.StartedAt.Format("2006-01-02 15:04"), run.Source, run.Status, run.Rows, output))
		}
		md.WriteString("\n")
	}

	// Cleaned datasets
	if len(report.Persisted) > 0 {
		md.WriteString("## 💾 Persisted Datasets\n\n")
		md.WriteString("| Domain | Rows |\n")
		md.WriteString("|--------|------|\n")
		for _, d := range sortedKeys(report.Persisted) {
			md.WriteString(fmt.Sprintf("| %s | %s |\n", d, util.FormatCount(report.Persisted[d])))
		}
		md.WriteString("\n")
	}

	// Events
	if len(report.EventCounts) > 0 {
		md.WriteString("## 📝 Events\n\n")
		md.WriteString("| Event | Count |\n")
		md.WriteString("|-------|-------|\n")
		for _, e := range sortedKeys(report.EventCounts) {
			md.WriteString(fmt.Sprintf("| %s | %d |\n", e, report.EventCounts[e]))
		}
		md.WriteString("\n")
	}

	// Errors
	if len(report.TopErrors) > 0 {
		md.WriteString("## ⚠️ Top Errors\n\n")
		md.WriteString("| Count | Source | Error |\n")
		md.WriteString("|-------|--------|-------|\n")
		for _, err := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s | %s |\n", err.Count, err.Source, escapeCell(err.Error)))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by crs - Culture & Loisirs recommendations*\n")

	return md.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// escapeCell keeps an error message on one table row
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
