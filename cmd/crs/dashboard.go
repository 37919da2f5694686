package main

import (
	"fmt"
	"os"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/dashboard"
	"github.com/franz/culture-recs/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive recommendation session in the terminal",
	Long: `Start an interactive session over the three catalogs.

Lookups go to the HTTP API (dashboard.api-url) when it answers the startup
probe, then fall back to the local catalog, then to random titles.
Type 'help' inside the session for the list of commands.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)

	dashboardCmd.Flags().String("api-url", "", "API base URL (default dashboard.api-url)")
	dashboardCmd.Flags().Bool("offline", false, "do not contact the API")
	dashboardCmd.Flags().String("type", "livres", "initial content type (livres, films, musiques)")

	viper.BindPFlag("dashboard.api-url", dashboardCmd.Flags().Lookup("api-url"))
}

func runDashboard(cmd *cobra.Command, args []string) error {
	typeName, _ := cmd.Flags().GetString("type")
	domain, err := clean.ParseDomain(typeName)
	if err != nil {
		return err
	}

	logger := openEventLogger()
	defer logger.Close()

	catalog, err := loadCatalog(cmd.Context(), logger)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	var provider *dashboard.APIProvider
	if offline, _ := cmd.Flags().GetBool("offline"); !offline {
		url := GetConfigString("dashboard.api-url", dashboard.DefaultAPIURL)
		provider = dashboard.NewAPIProvider(url, util.GetDuration("dashboard.timeout", dashboard.DefaultTimeout))
		util.DebugLog("API tier: %s", url)
	}

	session := dashboard.New(&dashboard.Config{
		Catalog: catalog,
		API:     provider,
		In:      os.Stdin,
		Out:     os.Stdout,
		Domain:  domain,
	})
	return session.Run(cmd.Context())
}
