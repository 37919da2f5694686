package clean

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/franz/culture-recs/internal/table"
	"github.com/franz/culture-recs/internal/util"
)

// SourceSpec describes how one input file maps onto the unified schema of
// its domain
type SourceSpec struct {
	Name   string            `mapstructure:"name"`
	Path   string            `mapstructure:"path"` // relative to the input directory unless absolute
	Domain Domain            `mapstructure:"domain"`
	Rename map[string]string `mapstructure:"rename"`
	// Constants are columns set to the same value on every row
	Constants map[string]string `mapstructure:"constants"`
	// SynthesizeSource builds "source" as "<annee> - <titre> - <auteur>"
	SynthesizeSource bool `mapstructure:"synthesize_source"`
	// Optional sources are skipped when the file does not exist
	Optional bool `mapstructure:"optional"`
}

// DefaultSources returns the built-in inputs, in concatenation order
func DefaultSources() []SourceSpec {
	return []SourceSpec{
		{Name: "films_fr", Path: "films_fr.csv", Domain: Film, Optional: true},
		{Name: "films", Path: "films.csv", Domain: Film},
		{Name: "livres_fr", Path: "livres_fr.csv", Domain: Book, Optional: true},
		{Name: "livres", Path: "livres.csv", Domain: Book, Optional: true},
		{
			Name:   "librairie_toulouse",
			Path:   "Librairie_toulouse.csv",
			Domain: Book,
			Rename: map[string]string{
				"year":           "annee",
				"title":          "titre",
				"author":         "auteur",
				"classification": "genre",
				"publisher":      "description",
				"library":        "source",
			},
			Constants: map[string]string{"langue": "français"},
			Optional:  true,
		},
		{
			Name:   "livres_en_anglais",
			Path:   "Livres_en_anglais.csv",
			Domain: Book,
			Rename: map[string]string{
				"Year_published":      "annee",
				"Original_Book_Title": "titre",
				"Author_Name":         "auteur",
				"Genres":              "genre",
				"Book_Description":    "description",
				"Edition_Language":    "langue",
			},
			SynthesizeSource: true,
			Optional:         true,
		},
		{Name: "musiques", Path: "musiques.csv", Domain: Music},
	}
}

// SourcesFromConfig reads the "sources" list, falling back to the
// built-in inputs when none are configured
func SourcesFromConfig() ([]SourceSpec, error) {
	if !viper.IsSet("sources") {
		return DefaultSources(), nil
	}

	var specs []SourceSpec
	if err := viper.UnmarshalKey("sources", &specs); err != nil {
		return nil, fmt.Errorf("%w: sources: %v", util.ErrInvalidConfig, err)
	}
	for i := range specs {
		if err := specs[i].validate(); err != nil {
			return nil, err
		}
	}
	return specs, nil
}

func (s *SourceSpec) validate() error {
	if s.Path == "" {
		return fmt.Errorf("%w: source %q has no path", util.ErrInvalidConfig, s.Name)
	}
	d, err := ParseDomain(string(s.Domain))
	if err != nil {
		return fmt.Errorf("source %q: %w", s.Name, err)
	}
	s.Domain = d
	if s.Name == "" {
		s.Name = strings.TrimSuffix(s.Path, ".csv")
	}
	return nil
}

// Apply maps a loaded table onto the unified schema: renames, constant
// columns, then the synthesized source column
func (s SourceSpec) Apply(t *table.Table) error {
	if len(s.Rename) > 0 {
		if err := t.Rename(s.Rename); err != nil {
			return fmt.Errorf("source %s: %w", s.Name, err)
		}
	}

	for col, v := range s.Constants {
		value := table.String(v)
		t.SetColumn(col, func(int) table.Value { return value })
	}

	if s.SynthesizeSource {
		t.SetColumn("source", func(i int) table.Value {
			return table.String(fmt.Sprintf("%s - %s - %s",
				cellText(t.Get(i, "annee")),
				cellText(t.Get(i, "titre")),
				cellText(t.Get(i, "auteur"))))
		})
	}
	return nil
}

// cellText renders a cell for string interpolation; nulls read "nan" as
// the upstream exports do
func cellText(v table.Value) string {
	if v.IsNull() {
		return "nan"
	}
	return v.String()
}
