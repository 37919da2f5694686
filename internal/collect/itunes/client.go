package itunes

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/franz/culture-recs/internal/clean"
	"github.com/franz/culture-recs/internal/collect"
	"github.com/franz/culture-recs/internal/table"
)

const (
	// DefaultBaseURL is the iTunes Search API endpoint
	DefaultBaseURL = "https://itunes.apple.com/search"

	// PageLimit is the API's per-request cap
	PageLimit = 200

	searchTerm = "music"
)

// Track is one search result
type Track struct {
	TrackName        string `json:"trackName"`
	ArtistName       string `json:"artistName"`
	CollectionName   string `json:"collectionName"`
	PrimaryGenreName string `json:"primaryGenreName"`
	ReleaseDate      string `json:"releaseDate"`
	TrackViewURL     string `json:"trackViewUrl"`
}

// Response models a search page
type Response struct {
	ResultCount int     `json:"resultCount"`
	Results     []Track `json:"results"`
}

// Client pages through music tracks of one storefront
type Client struct {
	baseURL    string
	label      string
	pages      int
	httpClient *http.Client
}

var _ collect.Source = (*Client)(nil)

// New creates a client collecting about n tracks labelled with label
// (collect.French selects the fr storefront, anything else us)
func New(baseURL, label string, n int) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	pages := n / PageLimit
	if pages < 0 {
		pages = 0
	}
	return &Client{
		baseURL:    baseURL,
		label:      label,
		pages:      pages,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHTTPClient replaces the HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

func (c *Client) country() string {
	if c.label == collect.French {
		return "fr"
	}
	return "us"
}

// Name implements collect.Source
func (c *Client) Name() string {
	return "itunes-" + c.country()
}

// Domain implements collect.Source
func (c *Client) Domain() clean.Domain {
	return clean.Music
}

// Pages implements collect.Source
func (c *Client) Pages() int {
	return c.pages
}

// FetchPage implements collect.Source
func (c *Client) FetchPage(ctx context.Context, index int) ([]collect.Row, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse itunes url: %w", err)
	}
	params := url.Values{}
	params.Set("term", searchTerm)
	params.Set("media", "music")
	params.Set("country", c.country())
	params.Set("limit", strconv.Itoa(PageLimit))
	params.Set("offset", strconv.Itoa(index*PageLimit))
	endpoint.RawQuery = params.Encode()

	var resp Response
	if err := collect.GetJSON(ctx, c.httpClient, endpoint.String(), &resp); err != nil {
		return nil, fmt.Errorf("itunes page %d: %w", index, err)
	}

	label := table.String(c.label)
	rows := make([]collect.Row, 0, len(resp.Results))
	for _, t := range resp.Results {
		rows = append(rows, collect.Row{
			"titre":   collect.Text(t.TrackName),
			"artiste": collect.Text(t.ArtistName),
			"album":   collect.Text(t.CollectionName),
			"langue":  label,
			"genre":   collect.Text(t.PrimaryGenreName),
			"annee":   collect.Year(t.ReleaseDate),
			"source":  collect.Text(t.TrackViewURL),
		})
	}
	return rows, nil
}
