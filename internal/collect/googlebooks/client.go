package googlebooks

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
	// DefaultBaseURL is the volumes search endpoint
	DefaultBaseURL = "https://www.googleapis.com/books/v1/volumes"

	// MaxResults is the API's per-request cap
	MaxResults = 40

	unknownAuthor      = "Inconnu"
	unknownGenre       = "Non spécifié"
	missingDescription = "Description non disponible"
)

// VolumeInfo holds the bibliographic fields used
type VolumeInfo struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Categories    []string `json:"categories"`
	Description   string   `json:"description"`
	PublishedDate string   `json:"publishedDate"`
	InfoLink      string   `json:"infoLink"`
}

// Volume is one search hit
type Volume struct {
	ID         string     `json:"id"`
	VolumeInfo VolumeInfo `json:"volumeInfo"`
}

// Response models a volumes search page
type Response struct {
	TotalItems int      `json:"totalItems"`
	Items      []Volume `json:"items"`
}

// Client pages through a generic query restricted to one language
type Client struct {
	baseURL    string
	label      string
	pages      int
	httpClient *http.Client
}

var _ collect.Source = (*Client)(nil)

// New creates a client collecting about n books labelled with label
// (collect.French or collect.English). n is rounded down to whole pages.
func New(baseURL, label string, n int) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	pages := n / MaxResults
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

func (c *Client) french() bool {
	return c.label == collect.French
}

// Name implements collect.Source
func (c *Client) Name() string {
	if c.french() {
		return "googlebooks-fr"
	}
	return "googlebooks-en"
}

// Domain implements collect.Source
func (c *Client) Domain() clean.Domain {
	return clean.Book
}

// Pages implements collect.Source
func (c *Client) Pages() int {
	return c.pages
}

// FetchPage implements collect.Source
func (c *Client) FetchPage(ctx context.Context, index int) ([]collect.Row, error) {
	query, lang := "book", "en"
	if c.french() {
		query, lang = "livre", "fr"
	}

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse books url: %w", err)
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("langRestrict", lang)
	params.Set("startIndex", strconv.Itoa(index*MaxResults))
	params.Set("maxResults", strconv.Itoa(MaxResults))
	endpoint.RawQuery = params.Encode()

	var resp Response
	if err := collect.GetJSON(ctx, c.httpClient, endpoint.String(), &resp); err != nil {
		return nil, fmt.Errorf("google books page %d: %w", index, err)
	}

	label := table.String(c.label)
	rows := make([]collect.Row, 0, len(resp.Items))
	for _, item := range resp.Items {
		info := item.VolumeInfo
		description := table.String(missingDescription)
		if info.Description != "" {
			description = table.String(info.Description)
		}
		rows = append(rows, collect.Row{
			"titre":       collect.Text(info.Title),
			"auteur":      collect.JoinOr(info.Authors, unknownAuthor),
			"langue":      label,
			"genre":       collect.JoinOr(info.Categories, unknownGenre),
			"description": description,
			"annee":       collect.Year(info.PublishedDate),
			"source":      collect.Text(info.InfoLink),
		})
	}
	return rows, nil
}
