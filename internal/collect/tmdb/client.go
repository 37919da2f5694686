package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/collect"
	"github.com/franz/culture-recs/internal/table"
)

const (
	// DefaultBaseURL is the TMDB v3 API root
	DefaultBaseURL = "https://api.themoviedb.org/3"

	// RequestInterval paces consecutive discover requests
	RequestInterval = 250 * time.Millisecond

	unknownAuthor = "Inconnu"
)

// Movie is one entry of a discover response
type Movie struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	GenreIDs    []int   `json:"genre_ids"`
	Popularity  float64 `json:"popularity"`
}

// Response models the discover page. Results is nil when the key is absent.
type Response struct {
	Page       int      `json:"page"`
	Results    *[]Movie `json:"results"`
	TotalPages int      `json:"total_pages"`
}

// Client pages through TMDB's popular movies for one language
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	pages      int
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ collect.Source = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLimiter overrides request pacing.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// New creates a TMDB client. language is a TMDB locale such as "fr-FR".
func New(apiKey, baseURL, language string, pages int, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if pages < 0 {
		pages = 0
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		pages:      pages,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(RequestInterval), 1),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name implements collect.Source
func (c *Client) Name() string {
	return "tmdb-" + c.language
}

// Domain implements collect.Source
func (c *Client) Domain() clean.Domain {
	return clean.Film
}

// Pages implements collect.Source
func (c *Client) Pages() int {
	return c.pages
}

// Label is the langue value for this client's rows
func (c *Client) Label() string {
	if c.language == "fr-FR" {
		return collect.French
	}
	return collect.English
}

// Discover fetches one discover page (1-based)
func (c *Client) Discover(ctx context.Context, page int) (*Response, error) {
	endpoint, err := url.Parse(c.baseURL + "/discover/movie")
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	params.Set("sort_by", "popularity.desc")
	params.Set("page", strconv.Itoa(page))
	endpoint.RawQuery = params.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var payload Response
	if err := collect.GetJSON(ctx, c.httpClient, endpoint.String(), &payload); err != nil {
		return nil, fmt.Errorf("tmdb discover page %d: %w", page, err)
	}
	return &payload, nil
}

// FetchPage implements collect.Source; index 0 is TMDB page 1
func (c *Client) FetchPage(ctx context.Context, index int) ([]collect.Row, error) {
	resp, err := c.Discover(ctx, index+1)
	if err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return nil, collect.ErrEndOfData
	}

	label := table.String(c.Label())
	rows := make([]collect.Row, 0, len(*resp.Results))
	for _, m := range *resp.Results {
		genres := make([]string, len(m.GenreIDs))
		for i, g := range m.GenreIDs {
			genres[i] = strconv.Itoa(g)
		}
		rows = append(rows, collect.Row{
			"titre":       collect.Text(m.Title),
			"auteur":      table.String(unknownAuthor),
			"langue":      label,
			"genre":       table.String(strings.Join(genres, ", ")),
			"description": collect.Text(m.Overview),
			"annee":       collect.Year(m.ReleaseDate),
			"source":      table.String(fmt.Sprintf("https://www.themoviedb.org/movie/%d", m.ID)),
		})
	}
	return rows, nil
}
