// Package places provides a client for the Google Places API (v1).
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/suncrest-solar/leadscout/internal/resilience"
)

// Place is a business hit from search or details.
type Place struct {
	ID                  string      `json:"id"`
	DisplayName         DisplayName `json:"displayName"`
	FormattedAddress    string      `json:"formattedAddress"`
	Rating              float64     `json:"rating"`
	UserRatingCount     int         `json:"userRatingCount"`
	WebsiteURI          string      `json:"websiteUri"`
	NationalPhoneNumber string      `json:"nationalPhoneNumber"`
	BusinessStatus      string      `json:"businessStatus"`
	Types               []string    `json:"types"`
	Location            *LatLng     `json:"location,omitempty"`
}

// DisplayName is the localized name wrapper used by the v1 API.
type DisplayName struct {
	Text string `json:"text"`
}

// LatLng is the API's coordinate shape.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// searchResponse is the wire shape shared by text and nearby search.
type searchResponse struct {
	Places []Place `json:"places"`
}

// searchFieldMask covers the fields the enrichment waterfall reads from
// search hits. Details fetches the full profile.
const searchFieldMask = "places.id,places.displayName,places.formattedAddress,places.types,places.location"

const detailsFieldMask = "id,displayName,formattedAddress,rating,userRatingCount,websiteUri,nationalPhoneNumber,businessStatus,types,location"

// Client defines the Places operations used by business enrichment.
type Client interface {
	// TextSearch finds places matching a free-text query, biased toward a
	// circle when bias is non-nil.
	TextSearch(ctx context.Context, query string, bias *Circle) ([]Place, error)
	// NearbySearch finds places inside a circle, nearest first.
	NearbySearch(ctx context.Context, circle Circle) ([]Place, error)
	// Details fetches the full profile for a place ID.
	Details(ctx context.Context, placeID string) (*Place, error)
}

// Circle is a center point plus radius in meters.
type Circle struct {
	Lat     float64
	Lng     float64
	RadiusM float64
}

// Option configures the Places client.
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
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://places.googleapis.com",
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) TextSearch(ctx context.Context, query string, bias *Circle) ([]Place, error) {
	payload := map[string]any{"textQuery": query}
	if bias != nil {
		payload["locationBias"] = circleJSON(*bias)
	}

	var resp searchResponse
	if err := c.post(ctx, "/v1/places:searchText", searchFieldMask, payload, &resp); err != nil {
		return nil, eris.Wrap(err, "places: text search")
	}
	return resp.Places, nil
}

func (c *httpClient) NearbySearch(ctx context.Context, circle Circle) ([]Place, error) {
	payload := map[string]any{
		"locationRestriction": circleJSON(circle),
		"rankPreference":      "DISTANCE",
	}

	var resp searchResponse
	if err := c.post(ctx, "/v1/places:searchNearby", searchFieldMask, payload, &resp); err != nil {
		return nil, eris.Wrap(err, "places: nearby search")
	}
	return resp.Places, nil
}

func (c *httpClient) Details(ctx context.Context, placeID string) (*Place, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "places: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/places/"+placeID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "places: create details request")
	}
	c.setHeaders(req, detailsFieldMask)

	var place Place
	if err := c.do(req, &place); err != nil {
		return nil, eris.Wrap(err, "places: details")
	}
	return &place, nil
}

func circleJSON(c Circle) map[string]any {
	return map[string]any{
		"circle": map[string]any{
			"center": map[string]any{"latitude": c.Lat, "longitude": c.Lng},
			"radius": c.RadiusM,
		},
	}
}

func (c *httpClient) post(ctx context.Context, path, fieldMask string, payload any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limiter wait")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req, fieldMask)

	return c.do(req, out)
}

func (c *httpClient) setHeaders(req *http.Request, fieldMask string) {
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resilience.RetryableStatus(resp.StatusCode) {
		return resilience.MarkTransient(
			eris.Errorf("status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}
