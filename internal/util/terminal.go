package util

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

// Bounds for the table width used when the terminal cannot be measured
// or reports something unusable
const (
	DefaultWidth = 100
	minWidth     = 40
)

// IsTerminal reports whether fd is an interactive terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// GetTerminalWidth returns the column count of stdout. When stdout is not
// a terminal, $COLUMNS is honoured before falling back to DefaultWidth.
func GetTerminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return clampWidth(w)
	}
	if w, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && w > 0 {
		return clampWidth(w)
	}
	return DefaultWidth
}

func clampWidth(w int) int {
	if w < minWidth {
		return minWidth
	}
	return w
}
