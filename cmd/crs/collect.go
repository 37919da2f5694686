package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/collect"
	"github.com/franz/culture-recs/internal/collect/googlebooks"
	"github.com/franz/culture-recs/internal/collect/itunes"
	"github.com/franz/culture-recs/internal/collect/tmdb"
	"github.com/franz/culture-recs/internal/store"
	"github.com/franz/culture-recs/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch film, book and music metadata from public APIs",
	Long: `Fetch raw catalog data page by page:

- films from TMDB discover (French and English, needs tmdb.api-key)
- books from Google Books (French and English)
- music from the iTunes Search API (fr and us storefronts)

Failed pages are logged, recorded in the journal database and skipped.
Raw tables are written to <data-dir>/raw/{films,livres,musiques}.csv.`,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().StringSlice("domain", nil, "domains to collect (film, book, music; default all)")
	collectCmd.Flags().Int("films-pages", 0, "TMDB pages per language (default collect.films-pages)")
	collectCmd.Flags().Int("books", 0, "books per language (default collect.books)")
	collectCmd.Flags().Int("songs", 0, "songs per storefront (default collect.songs)")
	collectCmd.Flags().Bool("no-progress", false, "disable progress bars")

	viper.BindPFlag("collect.films-pages", collectCmd.Flags().Lookup("films-pages"))
	viper.BindPFlag("collect.books", collectCmd.Flags().Lookup("books"))
	viper.BindPFlag("collect.songs", collectCmd.Flags().Lookup("songs"))
}

// buildSources assembles the upstream feeds of a domain from config
func buildSources(d clean.Domain) ([]collect.Source, error) {
	switch d {
	case clean.Film:
		apiKey := viper.GetString("tmdb.api-key")
		baseURL := viper.GetString("tmdb.base-url")
		pages := GetConfigInt("collect.films-pages", 50)
		var sources []collect.Source
		for _, lang := range []string{"fr-FR", "en-US"} {
			c, err := tmdb.New(apiKey, baseURL, lang, pages)
			if err != nil {
				return nil, fmt.Errorf("%w: %v (set tmdb.api-key or CRS_TMDB_API_KEY)", util.ErrInvalidConfig, err)
			}
			sources = append(sources, c)
		}
		return sources, nil
	case clean.Book:
		n := GetConfigInt("collect.books", 1000)
		baseURL := viper.GetString("collect.books-url")
		return []collect.Source{
			googlebooks.New(baseURL, collect.French, n),
			googlebooks.New(baseURL, collect.English, n),
		}, nil
	case clean.Music:
		n := GetConfigInt("collect.songs", 1000)
		baseURL := viper.GetString("collect.songs-url")
		return []collect.Source{
			itunes.New(baseURL, collect.French, n),
			itunes.New(baseURL, collect.English, n),
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", util.ErrInvalidConfig, d)
}

func runCollect(cmd *cobra.Command, args []string) error {
	names, _ := cmd.Flags().GetStringSlice("domain")
	domains := clean.Domains
	if len(names) > 0 {
		domains = nil
		for _, n := range names {
			d, err := clean.ParseDomain(n)
			if err != nil {
				return err
			}
			domains = append(domains, d)
		}
	}
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	dbPath := viper.GetString("db")
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := openEventLogger()
	defer logger.Close()

	collector := collect.New(&collect.Config{
		Store:        db,
		Logger:       logger,
		ShowProgress: !noProgress,
	})

	util.InfoLog("=== Collecting into %s ===", util.RawDir())

	var failed []error
	for _, d := range domains {
		sources, err := buildSources(d)
		if err != nil {
			return err
		}

		outPath := filepath.Join(util.RawDir(), d.FileName())
		summary, err := collector.Run(cmd.Context(), d, sources, outPath)
		if errors.Is(err, collect.ErrAllPagesFailed) {
			util.ErrorLog("%s: every page failed; check credentials and connectivity", d)
			failed = append(failed, err)
			continue
		}
		if err != nil {
			return err
		}

		util.SuccessLog("%s: %s rows written to %s (%s)", d, util.FormatCount(summary.Rows),
			summary.OutputPath, util.FormatBytes(summary.BytesWritten))
		if n := summary.PagesFailed(); n > 0 {
			util.WarnLog("%s: %d of %d pages failed (see crs report)", d, n, summary.PagesRequested())
		}
	}

	return errors.Join(failed...)
}
