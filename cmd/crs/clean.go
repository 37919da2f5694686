package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/recommend"
	"github.com/franz/culture-recs/internal/report"
	"github.com/franz/culture-recs/internal/util"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Merge raw tables into one cleaned catalog per domain",
	Long: `Merge the raw source tables of each domain into the unified schema,
handle missing values and remove duplicate titles.

Columns missing in more than clean.threshold percent of rows are dropped;
others are filled with clean.sentinel (text) or the column median (numbers).
Results are written to <data-dir>/cleaned/{films,livres,musiques}.csv.`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringSlice("domain", nil, "domains to clean (film, book, music; default all)")
	cleanCmd.Flags().String("input", "", "directory of raw tables (default <data-dir>/raw)")
	cleanCmd.Flags().String("output", "", "directory for cleaned tables (default <data-dir>/cleaned)")
}

func runClean(cmd *cobra.Command, args []string) error {
	names, _ := cmd.Flags().GetStringSlice("domain")
	var domains []clean.Domain
	for _, n := range names {
		d, err := clean.ParseDomain(n)
		if err != nil {
			return err
		}
		domains = append(domains, d)
	}

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")

	logger := openEventLogger()
	defer logger.Close()

	summary, err := runPipeline(cmd.Context(), input, output, domains, logger)
	if err != nil {
		return err
	}

	util.InfoLog("")
	util.InfoLog("=== Cleaning Summary ===")
	for _, ds := range summary.Domains {
		util.InfoLog("%s: %s -> %s rows from %s", ds.Domain, util.FormatCount(ds.RowsIn),
			util.FormatCount(ds.RowsOut), strings.Join(ds.Sources, ", "))
		if ds.DuplicatesRemoved > 0 {
			util.InfoLog("  Duplicates removed: %s", util.FormatCount(ds.DuplicatesRemoved))
		}
		for _, c := range ds.Dropped {
			util.WarnLog("  Dropped %s (%.1f%% missing)", c.Column, c.Percent)
		}
		for _, c := range ds.Filled {
			util.InfoLog("  Filled %s with %q (%.1f%% missing)", c.Column, c.Fill, c.Percent)
		}
	}
	for _, d := range summary.Skipped {
		util.WarnLog("%s: no input found, nothing written", d)
	}
	return nil
}

func runPipeline(ctx context.Context, input, output string, domains []clean.Domain, logger *report.EventLogger) (*clean.Summary, error) {
	if input == "" {
		input = util.RawDir()
	}
	if output == "" {
		output = util.CleanedDir()
	}

	sources, err := clean.SourcesFromConfig()
	if err != nil {
		return nil, err
	}

	util.InfoLog("=== Cleaning %s -> %s ===", input, output)
	p := clean.New(&clean.Config{
		InputDir:  input,
		OutputDir: output,
		Sources:   sources,
		Domains:   domains,
		Options:   cleanOptions(),
		Logger:    logger,
	})
	return p.Run(ctx)
}

// loadCatalog opens the cleaned tables, running the cleaning pipeline first
// when any of them is missing
func loadCatalog(ctx context.Context, logger *report.EventLogger) (*recommend.Catalog, error) {
	if !cleanedFilesPresent() {
		util.InfoLog("Cleaned files missing: running the cleaning pipeline first")
		if _, err := runPipeline(ctx, "", "", nil, logger); err != nil {
			return nil, fmt.Errorf("clean: %w", err)
		}
	}
	return recommend.Open(util.CleanedDir())
}
