package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/franz/culture-recs/internal/recommend"
	"github.com/franz/culture-recs/internal/table"
	"github.com/franz/culture-recs/internal/util"
)

var (
	// ErrUnavailable is returned by a provider that cannot serve requests
	ErrUnavailable = fmt.Errorf("provider %w", util.ErrUnavailable)

	// ErrNoProvider is returned when every tier of a chain failed
	ErrNoProvider = errors.New("no provider answered")
)

// Provider answers title lookups for one tier of the fallback chain
type Provider interface {
	// Name labels answers in the session output ("API", "modules", ...)
	Name() string
	Lookup(ctx context.Context, d recommend.Domain, title string) ([]table.Record, error)
}

// Answer is a chain lookup result and the tier that produced it
type Answer struct {
	Provider string
	Records  []table.Record
}

// Chain tries providers in order
type Chain struct {
	providers []Provider
	// skipEmpty moves on to the next tier when a provider answers with no records
	skipEmpty bool
}

// NewChain creates a chain where the first provider to answer without an
// error wins, even with zero records
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: compact(providers)}
}

// NewEagerChain creates a chain that also moves on when a tier answers
// with zero records
func NewEagerChain(providers ...Provider) *Chain {
	return &Chain{providers: compact(providers), skipEmpty: true}
}

func compact(providers []Provider) []Provider {
	out := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Lookup returns the first usable answer. With an eager chain an all-empty
// walk returns the last successful (empty) answer.
func (c *Chain) Lookup(ctx context.Context, d recommend.Domain, title string) (*Answer, error) {
	var (
		errs []error
		last *Answer
	)
	for _, p := range c.providers {
		records, err := p.Lookup(ctx, d, title)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		answer := &Answer{Provider: p.Name(), Records: records}
		if c.skipEmpty && len(records) == 0 {
			last = answer
			continue
		}
		return answer, nil
	}
	if last != nil {
		return last, nil
	}
	return nil, errors.Join(append([]error{ErrNoProvider}, errs...)...)
}

// LocalProvider queries the in-process catalog
type LocalProvider struct {
	catalog *recommend.Catalog
}

// NewLocalProvider wraps a catalog; a nil catalog yields a nil provider
func NewLocalProvider(c *recommend.Catalog) Provider {
	if c == nil {
		return nil
	}
	return &LocalProvider{catalog: c}
}

func (p *LocalProvider) Name() string { return "modules" }

func (p *LocalProvider) Lookup(ctx context.Context, d recommend.Domain, title string) ([]table.Record, error) {
	res, err := p.catalog.Query(d, title, recommend.DefaultOptions(d))
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// SampleProvider answers with random titles of the domain, ignoring the query
type SampleProvider struct {
	titles func(d recommend.Domain) ([]string, error)
	rng    *rand.Rand
	size   int
}

// NewSampleProvider draws from the catalog's titles. seed 0 picks a random seed.
func NewSampleProvider(c *recommend.Catalog, seed uint64) Provider {
	if c == nil {
		return nil
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &SampleProvider{
		titles: c.Titles,
		rng:    rand.New(rand.NewPCG(seed, seed)),
		size:   recommend.LimitSample,
	}
}

func (p *SampleProvider) Name() string { return "simulation" }

func (p *SampleProvider) Lookup(ctx context.Context, d recommend.Domain, title string) ([]table.Record, error) {
	titles, err := p.titles(d)
	if err != nil {
		return nil, err
	}
	n := min(p.size, len(titles))
	out := make([]table.Record, 0, n)
	for _, i := range p.rng.Perm(len(titles))[:n] {
		out = append(out, table.NewRecord([]string{"titre"}, []any{titles[i]}))
	}
	return out, nil
}
