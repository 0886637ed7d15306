// Package overpass provides a client for the Overpass API, used to pull
// building footprints and tags out of OpenStreetMap.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/suncrest-solar/leadscout/internal/resilience"
)

// Element is one OSM node/way/relation from an Overpass response.
type Element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      float64           `json:"lat,omitempty"`
	Lon      float64           `json:"lon,omitempty"`
	Center   *Center           `json:"center,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
	Geometry []Point           `json:"geometry,omitempty"`
}

// Center is the computed centroid Overpass attaches with `out center`.
type Center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point is one vertex of a way's geometry.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Response is the top-level Overpass JSON envelope.
type Response struct {
	Elements []Element `json:"elements"`
}

// Client defines the Overpass operations used by footprint ingestion.
type Client interface {
	// Query runs a raw Overpass QL query and returns the matched elements.
	Query(ctx context.Context, query string) ([]Element, error)
	// Buildings fetches building ways whose building tag matches typeFilter
	// (an Overpass regex) inside a bbox given as south,west,north,east.
	Buildings(ctx context.Context, south, west, north, east float64, typeFilter string) ([]Element, error)
}

// Option configures the Overpass client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit overrides the default request rate.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *httpClient) { c.limiter = rate.NewLimiter(r, burst) }
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an Overpass client. Footprint queries over a county-sized
// bbox can take a while server-side, hence the long timeout.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://overpass-api.de",
		http:    &http.Client{Timeout: 120 * time.Second},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Query(ctx context.Context, query string) ([]Element, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "overpass: rate limiter wait")
	}

	form := url.Values{}
	form.Set("data", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/interpreter", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: read response body")
	}

	if resilience.RetryableStatus(resp.StatusCode) {
		return nil, resilience.MarkTransient(
			eris.Errorf("overpass: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("overpass: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "overpass: unmarshal response")
	}
	return out.Elements, nil
}

func (c *httpClient) Buildings(ctx context.Context, south, west, north, east float64, typeFilter string) ([]Element, error) {
	if typeFilter == "" {
		typeFilter = "."
	}
	bbox := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", south, west, north, east)
	query := fmt.Sprintf(`[out:json][timeout:90];
(
  way["building"~"%s"](%s);
);
out center tags geom;`, typeFilter, bbox)

	elements, err := c.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: buildings query")
	}
	return elements, nil
}
