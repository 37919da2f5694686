package main

import (
	"os"
	"path/filepath"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/collect/googlebooks"
	"github.com/franz/culture-recs/internal/collect/itunes"
	"github.com/franz/culture-recs/internal/collect/tmdb"
	"github.com/franz/culture-recs/internal/dashboard"
	"github.com/franz/culture-recs/internal/report"
	"github.com/franz/culture-recs/internal/util"
	"github.com/spf13/viper"
)

// setDefaults registers the defaults of every config key
func setDefaults() {
	viper.SetDefault("tmdb.base-url", tmdb.DefaultBaseURL)
	viper.SetDefault("collect.films-pages", 50)
	viper.SetDefault("collect.books", 1000)
	viper.SetDefault("collect.songs", 1000)
	viper.SetDefault("collect.books-url", googlebooks.DefaultBaseURL)
	viper.SetDefault("collect.songs-url", itunes.DefaultBaseURL)
	viper.SetDefault("clean.threshold", clean.DefaultThreshold)
	viper.SetDefault("clean.sentinel", clean.DefaultSentinel)
	viper.SetDefault("serve.addr", ":8000")
	viper.SetDefault("serve.rate-limit", 0)
	viper.SetDefault("dashboard.api-url", dashboard.DefaultAPIURL)
	viper.SetDefault("dashboard.timeout", dashboard.DefaultTimeout)
	viper.SetDefault("events.dir", "artifacts")
	viper.SetDefault("events.level", string(report.LevelInfo))
}

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (CRS_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// cleanOptions reads the missing-value policy
func cleanOptions() clean.Options {
	return clean.Options{
		Threshold: viper.GetFloat64("clean.threshold"),
		Sentinel:  GetConfigString("clean.sentinel", clean.DefaultSentinel),
	}
}

// openEventLogger starts a JSONL event log; failures degrade to no logging
func openEventLogger() *report.EventLogger {
	dir := GetConfigString("events.dir", "artifacts")
	level := report.EventLevel(GetConfigString("events.level", string(report.LevelInfo)))
	logger, err := report.NewEventLogger(dir, level)
	if err != nil {
		util.WarnLog("Event log disabled: %v", err)
		return report.NullLogger()
	}
	util.DebugLog("Event log: %s", logger.Path())
	return logger
}

// cleanedFilesPresent reports whether every domain has a cleaned table
func cleanedFilesPresent() bool {
	for _, d := range clean.Domains {
		if _, err := os.Stat(filepath.Join(util.CleanedDir(), d.FileName())); err != nil {
			return false
		}
	}
	return true
}
