package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/util"
	"github.com/spf13/viper"
)

func TestBuildSources(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()
	setDefaults()

	if _, err := buildSources(clean.Film); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("films without api key: expected ErrInvalidConfig, got %v", err)
	}

	viper.Set("tmdb.api-key", "k")
	viper.Set("collect.books", 120)
	tests := []struct {
		domain clean.Domain
		names  []string
		pages  int
	}{
		{clean.Film, []string{"tmdb-fr-FR", "tmdb-en-US"}, 50},
		{clean.Book, []string{"googlebooks-fr", "googlebooks-en"}, 3},
		{clean.Music, []string{"itunes-fr", "itunes-us"}, 5},
	}
	for _, tt := range tests {
		t.Run(string(tt.domain), func(t *testing.T) {
			sources, err := buildSources(tt.domain)
			if err != nil {
				t.Fatalf("buildSources failed: %v", err)
			}
			if len(sources) != len(tt.names) {
				t.Fatalf("sources = %d", len(sources))
			}
			for i, s := range sources {
				if s.Name() != tt.names[i] || s.Domain() != tt.domain || s.Pages() != tt.pages {
					t.Errorf("source %d = %s/%s/%d", i, s.Name(), s.Domain(), s.Pages())
				}
			}
		})
	}
}

func TestCleanOptions(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()
	setDefaults()

	opts := cleanOptions()
	if opts.Threshold != clean.DefaultThreshold || opts.Sentinel != clean.DefaultSentinel {
		t.Errorf("defaults = %+v", opts)
	}

	viper.Set("clean.sentinel", "Inconnu")
	viper.Set("clean.threshold", 35.5)
	opts = cleanOptions()
	if opts.Threshold != 35.5 || opts.Sentinel != "Inconnu" {
		t.Errorf("overrides = %+v", opts)
	}
}

func TestLatestEventLog(t *testing.T) {
	dir := t.TempDir()
	if got := latestEventLog(dir); got != "" {
		t.Errorf("empty dir = %q", got)
	}
	for _, name := range []string{"events-20260101-120000.jsonl", "events-20261014-090000.jsonl", "other.jsonl"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0644)
	}
	if got := filepath.Base(latestEventLog(dir)); got != "events-20261014-090000.jsonl" {
		t.Errorf("latest = %q", got)
	}
}

func TestCleanedFilesPresent(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	viper.Set("data-dir", dir)

	if cleanedFilesPresent() {
		t.Error("empty data dir should report missing files")
	}
	os.MkdirAll(util.CleanedDir(), 0755)
	for _, d := range clean.Domains {
		os.WriteFile(filepath.Join(util.CleanedDir(), d.FileName()), []byte("titre\n"), 0644)
	}
	if !cleanedFilesPresent() {
		t.Error("expected all cleaned files present")
	}
}
