package clean

import (
	"fmt"
	"strings"

	"github.com/franz/culture-recs/internal/util"
)

// Domain is one of the three catalog kinds
type Domain string

const (
	Film  Domain = "film"
	Book  Domain = "book"
	Music Domain = "music"
)

// Domains lists every domain in processing order
var Domains = []Domain{Film, Book, Music}

// Collection is the plural French name used for file names and HTTP routes
func (d Domain) Collection() string {
	switch d {
	case Film:
		return "films"
	case Book:
		return "livres"
	case Music:
		return "musiques"
	default:
		return string(d)
	}
}

// FileName is the cleaned (and collected) CSV name for the domain
func (d Domain) FileName() string {
	return d.Collection() + ".csv"
}

// Valid reports whether d is a known domain
func (d Domain) Valid() bool {
	switch d {
	case Film, Book, Music:
		return true
	}
	return false
}

// ParseDomain accepts the English name or the French collection name,
// singular or plural
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "film", "films":
		return Film, nil
	case "book", "books", "livre", "livres":
		return Book, nil
	case "music", "musique", "musiques":
		return Music, nil
	}
	return "", fmt.Errorf("%w: unknown domain %q", util.ErrInvalidConfig, s)
}
