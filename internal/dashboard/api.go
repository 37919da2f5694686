package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/franz/culture-recs/internal/recommend"
	"github.com/franz/culture-recs/internal/table"
	"github.com/franz/culture-recs/internal/util"
)

const (
	// DefaultAPIURL is where `crs serve` listens by default
	DefaultAPIURL = "http://127.0.0.1:8000"

	// DefaultTimeout bounds each lookup request
	DefaultTimeout = 3 * time.Second

	// ProbeTimeout bounds the health probe at session start
	ProbeTimeout = time.Second
)

// APIProvider looks titles up through the HTTP API
type APIProvider struct {
	baseURL   string
	client    *http.Client
	timeout   time.Duration
	cb        *gobreaker.CircuitBreaker[[]table.Record]
	available atomic.Bool
}

// NewAPIProvider creates a provider for the API at baseURL. It answers
// ErrUnavailable until Probe succeeds.
func NewAPIProvider(baseURL string, timeout time.Duration) *APIProvider {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	p := &APIProvider{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: timeout,
	}
	p.cb = gobreaker.NewCircuitBreaker[[]table.Record](gobreaker.Settings{
		Name:        "dashboard-api",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			util.DebugLog("Circuit %s: %s -> %s", name, from, to)
		},
	})
	return p
}

func (p *APIProvider) Name() string { return "API" }

// Available reports whether the last probe succeeded
func (p *APIProvider) Available() bool {
	return p.available.Load()
}

// Probe checks the films endpoint answers 200 within ProbeTimeout
func (p *APIProvider) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/films/", nil)
	if err != nil {
		p.available.Store(false)
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.available.Store(false)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.available.Store(false)
		return fmt.Errorf("%w: %w", ErrUnavailable, &util.StatusError{Code: resp.StatusCode})
	}
	p.available.Store(true)
	return nil
}

// Lookup calls GET /<collection>/?titre=title through the circuit breaker
func (p *APIProvider) Lookup(ctx context.Context, d recommend.Domain, title string) ([]table.Record, error) {
	if !p.Available() {
		return nil, ErrUnavailable
	}

	records, err := p.cb.Execute(func() ([]table.Record, error) {
		return p.fetch(ctx, d, title)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return records, err
}

func (p *APIProvider) fetch(ctx context.Context, d recommend.Domain, title string) ([]table.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/", p.baseURL, d.Collection())
	if title != "" {
		endpoint += "?" + url.Values{"titre": {title}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &util.StatusError{Code: resp.StatusCode}
	}

	var records []table.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.Collection(), err)
	}
	return records, nil
}
