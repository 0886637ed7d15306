// Package geocode provides a client for the Nominatim geocoding API.
//
// Nominatim's usage policy allows at most one request per second, so the
// client carries its own rate limiter and a per-address cache. Callers treat
// a timeout the same as "no result"; a failed geocode never fails a pipeline
// run.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/suncrest-solar/leadscout/internal/resilience"
)

// ErrNoResult is returned when the geocoder finds nothing for an address.
var ErrNoResult = eris.New("geocode: no result")

// Result is a resolved coordinate pair with the geocoder's display name.
type Result struct {
	Lat         float64
	Lng         float64
	DisplayName string
}

// Client defines the geocoding operations used by the pipeline.
type Client interface {
	// Geocode resolves a free-text address. Returns ErrNoResult when the
	// address cannot be located.
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Option configures the geocode client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit overrides the default 1 rps limit (for testing).
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *httpClient) { c.limiter = rate.NewLimiter(r, burst) }
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter

	mu    sync.Mutex
	cache map[string]*Result
}

// NewClient creates a Nominatim client. userAgent identifies the application
// per the Nominatim usage policy.
func NewClient(userAgent string, opts ...Option) Client {
	c := &httpClient{
		baseURL:   "https://nominatim.openstreetmap.org",
		userAgent: userAgent,
		http:      &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		cache:     make(map[string]*Result),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// nominatimPlace is the wire shape of a Nominatim search hit. Coordinates
// arrive as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (c *httpClient) Geocode(ctx context.Context, address string) (*Result, error) {
	c.mu.Lock()
	if cached, ok := c.cache[address]; ok {
		c.mu.Unlock()
		if cached == nil {
			return nil, ErrNoResult
		}
		return cached, nil
	}
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limiter wait")
	}

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read response body")
	}

	if resilience.RetryableStatus(resp.StatusCode) {
		return nil, resilience.MarkTransient(
			eris.Errorf("geocode: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: unmarshal response")
	}

	if len(places) == 0 {
		c.store(address, nil)
		return nil, ErrNoResult
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: parse latitude")
	}
	lng, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: parse longitude")
	}

	result := &Result{Lat: lat, Lng: lng, DisplayName: places[0].DisplayName}
	c.store(address, result)
	return result, nil
}

// store caches a lookup outcome. Misses are cached too so the pipeline never
// re-queries an address Nominatim has already said it cannot find.
func (c *httpClient) store(address string, r *Result) {
	c.mu.Lock()
	c.cache[address] = r
	c.mu.Unlock()
}
