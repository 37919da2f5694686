package util

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DataDir returns the root directory holding raw and cleaned flat files
func DataDir() string {
	dir := viper.GetString("data-dir")
	if dir == "" {
		return "data"
	}
	return dir
}

// RawDir is where collected (uncleaned) tables are written
func RawDir() string {
	return filepath.Join(DataDir(), "raw")
}

// CleanedDir is where the normalization pipeline persists its output
func CleanedDir() string {
	return filepath.Join(DataDir(), "cleaned")
}

// GetDuration reads a duration key, falling back when unset or invalid
func GetDuration(key string, fallback time.Duration) time.Duration {
	d := viper.GetDuration(key)
	if d <= 0 {
		return fallback
	}
	return d
}
