package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/franz/culture-recs/internal/report"
	"github.com/franz/culture-recs/internal/store"
	"github.com/franz/culture-recs/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a summary report from the journal and event logs",
	Long: `Generate a collection summary in Markdown format.

The report includes:
- Run and page statistics per source
- The most recent runs and their output files
- Rows persisted per domain and event counts (from the event log)
- Top page errors

The report is saved to artifacts/reports/<timestamp>/summary.md`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	// Report-specific flags
	reportCmd.Flags().String("out", "", "Output directory for report (default: artifacts/reports/<timestamp>)")
	reportCmd.Flags().String("event-log", "", "Path to event log file (default: latest in events.dir)")
}

func runReport(cmd *cobra.Command, args []string) error {
	dbPath := viper.GetString("db")

	util.InfoLog("=== Generating Summary Report ===")
	util.InfoLog("Database: %s", dbPath)

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	eventLogPath, _ := cmd.Flags().GetString("event-log")
	if eventLogPath == "" {
		eventLogPath = latestEventLog(GetConfigString("events.dir", "artifacts"))
	}

	util.InfoLog("Analyzing data...")
	summaryReport, err := report.GenerateSummaryReport(db, eventLogPath)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	summaryReport.DatabasePath = dbPath

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputDir = filepath.Join("artifacts", "reports", timestamp)
	}
	outputPath := filepath.Join(outputDir, "summary.md")

	util.InfoLog("Writing report to: %s", outputPath)
	if err := report.WriteMarkdownReport(summaryReport, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	util.SuccessLog("Report generated successfully!")
	util.InfoLog("")
	util.InfoLog("Summary:")
	util.InfoLog("  Runs: %d (%d ok)", summaryReport.RunsTotal, summaryReport.RunsOK)
	if summaryReport.RunsPartial > 0 || summaryReport.RunsFailed > 0 {
		util.WarnLog("  Partial: %d, failed: %d", summaryReport.RunsPartial, summaryReport.RunsFailed)
	}
	util.InfoLog("  Rows fetched: %s", util.FormatCount(summaryReport.RowsFetched))
	if summaryReport.PagesFailed > 0 {
		util.WarnLog("  Pages failed: %d", summaryReport.PagesFailed)
	}

	return nil
}

// latestEventLog returns the newest events-*.jsonl in dir, or ""
func latestEventLog(dir string) string {
	matches, err := filepath.Glob(filepath.Join(dir, "events-*.jsonl"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	// timestamped names sort chronologically
	sort.Strings(matches)
	latest := matches[len(matches)-1]
	if _, err := os.Stat(latest); err != nil {
		return ""
	}
	return latest
}
