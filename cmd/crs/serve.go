package main

import (
	"fmt"

	"github.com/franz/culture-recs/internal/api"
	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cleaned catalogs over HTTP",
	Long: `Serve title search and random suggestions over HTTP:

  GET /                      welcome message
  GET /films/?titre=...      films whose title contains titre, or 5 random films
  GET /livres/?titre=...     same for books
  GET /musiques/?titre=...   same for music
  GET /healthz               catalog sizes
  GET /metrics               Prometheus metrics

Cleaned tables are loaded once at startup; missing ones are rebuilt first.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default serve.addr)")
	serveCmd.Flags().Int("rate-limit", 0, "requests per minute per client IP (0 disables)")

	viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("serve.rate-limit", serveCmd.Flags().Lookup("rate-limit"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := openEventLogger()
	defer logger.Close()

	catalog, err := loadCatalog(cmd.Context(), logger)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	for _, d := range clean.Domains {
		util.InfoLog("%s: %s rows", d.Collection(), util.FormatCount(catalog.Len(d)))
	}

	server := api.New(&api.Config{
		Catalog:   catalog,
		Addr:      GetConfigString("serve.addr", ":8000"),
		RateLimit: viper.GetInt("serve.rate-limit"),
		Logger:    logger,
	})
	return server.Run(cmd.Context())
}
