package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/importer"
	"github.com/franz/culture-recs/internal/store"
	"github.com/franz/culture-recs/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure crs can operate correctly.

This command checks:
- Run journal integrity and the outcome of the last collection
- Raw input files per domain and the cleaned directory (writable)
- Cleaned catalog files (present and loadable)
- TMDB API key configuration
- HTTP API reachability (optional, --api)
- Free space against the size of the raw inputs

Use this command to troubleshoot issues before running crs operations.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().Bool("api", false, "also probe the HTTP API at dashboard.api-url")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== CRS Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	results = append(results, checkJournal(viper.GetString("db")))
	sources, err := clean.SourcesFromConfig()
	if err != nil {
		results = append(results, checkResult{name: "Raw inputs", error: true, message: err.Error()})
	} else {
		results = append(results, checkRawInputs(util.RawDir(), sources))
	}
	results = append(results, checkCleanedDirectory(util.CleanedDir()))
	for _, d := range clean.Domains {
		results = append(results, checkCatalogFile(filepath.Join(util.CleanedDir(), d.FileName())))
	}
	results = append(results, checkAPIKey(viper.GetString("tmdb.api-key")))
	if probe, _ := cmd.Flags().GetBool("api"); probe {
		results = append(results, checkAPI(cmd.Context(), GetConfigString("dashboard.api-url", "")))
	}
	results = append(results, checkDataSpace(util.DataDir(), util.RawDir()))

	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running crs.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! System is ready for crs operations.")
	}

	return nil
}

// checkJournal opens the run journal and reports what the last collection
// did. A missing file is fine: collect creates it.
func checkJournal(dbPath string) checkResult {
	const name = "Run journal"

	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{name: name, error: true, message: "embedded SQLite unavailable"}
	}
	if dbPath == "" {
		return checkResult{name: name, warning: true, message: "no journal path set (--db or db in config)"}
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return checkResult{name: name, message: fmt.Sprintf("%s not created yet (SQLite %s)", dbPath, version)}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{name: name, error: true, message: err.Error()}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{name: name, error: true, message: err.Error()}
	}
	runs, err := db.ListRuns(0)
	if err != nil {
		return checkResult{name: name, error: true, message: err.Error()}
	}
	if len(runs) == 0 {
		return checkResult{name: name, message: fmt.Sprintf("%s: no collection runs yet", dbPath)}
	}

	last := runs[0]
	msg := fmt.Sprintf("%s: %d runs, last %s %s (%s pages ok, %d failed)",
		dbPath, len(runs), last.Source, last.Status, util.FormatCount(last.PagesOK), last.PagesFailed)
	return checkResult{
		name:    name,
		warning: last.Status == store.RunFailed || last.Status == store.RunPartial,
		message: msg,
	}
}

// checkRawInputs looks for every configured source file. A missing required
// input fails; a domain with no input at all is skipped by clean, so it
// only warns.
func checkRawInputs(dir string, sources []clean.SourceSpec) checkResult {
	const name = "Raw inputs"

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return checkResult{name: name, warning: true, message: fmt.Sprintf("%s is not a directory (run crs collect)", dir)}
	}

	present := make(map[clean.Domain]int, len(clean.Domains))
	var missing []string
	found := 0
	for _, src := range sources {
		path := src.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if _, err := os.Stat(path); err != nil {
			if !src.Optional {
				missing = append(missing, src.Path)
			}
			continue
		}
		present[src.Domain]++
		found++
	}

	counts := make([]string, 0, len(clean.Domains))
	var empty []string
	for _, d := range clean.Domains {
		counts = append(counts, fmt.Sprintf("%s %d", d.Collection(), present[d]))
		if present[d] == 0 {
			empty = append(empty, d.Collection())
		}
	}
	msg := fmt.Sprintf("%d of %d present (%s)", found, len(sources), strings.Join(counts, ", "))

	switch {
	case len(missing) > 0:
		return checkResult{name: name, error: true, message: msg + "; required missing: " + strings.Join(missing, ", ")}
	case len(empty) > 0:
		return checkResult{name: name, warning: true, message: msg + "; nothing to clean for " + strings.Join(empty, ", ")}
	}
	return checkResult{name: name, message: msg}
}

// checkCleanedDirectory makes sure clean can write its outputs
func checkCleanedDirectory(path string) checkResult {
	const name = "Cleaned directory"

	if err := os.MkdirAll(path, 0755); err != nil {
		return checkResult{name: name, error: true, message: err.Error()}
	}
	f, err := os.CreateTemp(path, ".crs-doctor-*")
	if err != nil {
		return checkResult{name: name, error: true, message: fmt.Sprintf("%s is not writable: %v", path, err)}
	}
	f.Close()
	os.Remove(f.Name())

	return checkResult{name: name, message: fmt.Sprintf("%s (writable)", path)}
}

// checkCatalogFile verifies a cleaned table exists and loads
func checkCatalogFile(path string) checkResult {
	name := fmt.Sprintf("Catalog %s", filepath.Base(path))
	if _, err := os.Stat(path); err != nil {
		return checkResult{
			name:    name,
			warning: true,
			message: "missing (run crs clean; serve and dashboard rebuild it on start)",
		}
	}

	t, err := importer.Load(path)
	if err != nil {
		return checkResult{
			name:    name,
			error:   true,
			message: err.Error(),
		}
	}
	if !t.HasColumn(clean.KeyColumn) {
		return checkResult{
			name:    name,
			error:   true,
			message: fmt.Sprintf("no %q column", clean.KeyColumn),
		}
	}

	return checkResult{
		name:    name,
		message: fmt.Sprintf("%s rows, %d columns", util.FormatCount(t.Len()), t.Width()),
	}
}

// checkAPIKey verifies a TMDB key is configured (needed for films only)
func checkAPIKey(key string) checkResult {
	key = strings.TrimSpace(key)
	if key == "" {
		return checkResult{
			name:    "TMDB API key",
			warning: true,
			message: "not set (tmdb.api-key or CRS_TMDB_API_KEY; required to collect films)",
		}
	}

	masked := "****"
	if len(key) > 4 {
		masked += key[len(key)-4:]
	}
	return checkResult{
		name:    "TMDB API key",
		message: masked,
	}
}

// checkAPI probes the films endpoint of a running crs serve
func checkAPI(ctx context.Context, baseURL string) checkResult {
	if baseURL == "" {
		return checkResult{
			name:    "HTTP API",
			warning: true,
			message: "no dashboard.api-url configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	endpoint := strings.TrimRight(baseURL, "/") + "/films/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return checkResult{name: "HTTP API", error: true, message: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return checkResult{
			name:    "HTTP API",
			warning: true,
			message: fmt.Sprintf("%s unreachable (dashboard will use the local catalog)", baseURL),
		}
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return checkResult{
			name:    "HTTP API",
			warning: true,
			message: fmt.Sprintf("%s answered %d", endpoint, resp.StatusCode),
		}
	}
	return checkResult{
		name:    "HTTP API",
		message: fmt.Sprintf("%s (ok)", baseURL),
	}
}

// checkDataSpace compares free space under the data directory with the
// raw inputs: cleaning writes one copy of them next to a temporary file.
func checkDataSpace(dataDir, rawDir string) checkResult {
	const name = "Free space"

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dataDir, &stat); err != nil {
		return checkResult{name: name, warning: true, message: fmt.Sprintf("cannot stat %s: %v", dataDir, err)}
	}
	avail := int64(stat.Bavail) * int64(stat.Bsize)

	var raw int64
	entries, _ := os.ReadDir(rawDir)
	for _, e := range entries {
		if e.IsDir() || importer.DetectFormat(e.Name()) == importer.FormatUnknown {
			continue
		}
		if info, err := e.Info(); err == nil {
			raw += info.Size()
		}
	}

	msg := fmt.Sprintf("%s free, raw inputs %s", util.FormatBytes(avail), util.FormatBytes(raw))
	if avail < 2*raw || avail < minFreeBytes {
		return checkResult{name: name, warning: true, message: msg + " (too little to clean safely)"}
	}
	return checkResult{name: name, message: msg}
}

// minFreeBytes leaves room for the journal and the event logs
const minFreeBytes = 100 << 20
