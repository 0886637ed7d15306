// Package solarapi provides a client for the Google Solar API's
// buildingInsights endpoint.
package solarapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/suncrest-solar/leadscout/internal/resilience"
)

// ErrNoData is returned when the Solar API has no coverage for a location.
// The API signals this with a 404 from findClosest.
var ErrNoData = eris.New("solarapi: no building insights for location")

// BuildingInsights is the subset of the findClosest response the pipeline
// consumes.
type BuildingInsights struct {
	Name           string         `json:"name"`
	ImageryQuality string         `json:"imageryQuality"`
	SolarPotential SolarPotential `json:"solarPotential"`
}

// SolarPotential holds the roof and production analysis for a building.
type SolarPotential struct {
	MaxArrayPanelsCount        int                 `json:"maxArrayPanelsCount"`
	MaxArrayAreaMeters2        float64             `json:"maxArrayAreaMeters2"`
	MaxSunshineHoursPerYear    float64             `json:"maxSunshineHoursPerYear"`
	CarbonOffsetFactorKgPerMwh float64             `json:"carbonOffsetFactorKgPerMwh"`
	WholeRoofStats             RoofStats           `json:"wholeRoofStats"`
	RoofSegmentStats           []RoofSegment       `json:"roofSegmentStats"`
	SolarPanelConfigs          []SolarPanelConfig  `json:"solarPanelConfigs"`
	FinancialAnalyses          []FinancialAnalysis `json:"financialAnalyses"`
}

// RoofStats describes total roof geometry.
type RoofStats struct {
	AreaMeters2 float64 `json:"areaMeters2"`
}

// RoofSegment is one planar roof section.
type RoofSegment struct {
	PitchDegrees   float64   `json:"pitchDegrees"`
	AzimuthDegrees float64   `json:"azimuthDegrees"`
	Stats          RoofStats `json:"stats"`
}

// SolarPanelConfig is one panel-count option with its yearly output.
type SolarPanelConfig struct {
	PanelsCount       int     `json:"panelsCount"`
	YearlyEnergyDcKwh float64 `json:"yearlyEnergyDcKwh"`
}

// FinancialAnalysis is one financing scenario. The entry flagged defaultBill
// is the one enrichment reads.
type FinancialAnalysis struct {
	MonthlyBill         Money                `json:"monthlyBill"`
	DefaultBill         bool                 `json:"defaultBill"`
	FinanciallyViable   bool                 `json:"financiallyViable"`
	FinancialDetails    *FinancialDetails    `json:"financialDetails,omitempty"`
	CashPurchaseSavings *CashPurchaseSavings `json:"cashPurchaseSavings,omitempty"`
}

// Money is the API's currency shape.
type Money struct {
	CurrencyCode string `json:"currencyCode"`
	Units        string `json:"units"`
}

// FinancialDetails carries viability signals for a scenario.
type FinancialDetails struct {
	SolarPercentage               float64 `json:"solarPercentage"`
	CostOfElectricityWithoutSolar Money   `json:"costOfElectricityWithoutSolar"`
}

// CashPurchaseSavings carries the payback estimate for a cash purchase.
type CashPurchaseSavings struct {
	PaybackYears float64 `json:"paybackYears"`
	Savings      Savings `json:"savings"`
}

// Savings holds lifetime savings figures.
type Savings struct {
	SavingsYear20 Money `json:"savingsYear20"`
}

// Client defines the Solar API operations used by solar enrichment.
type Client interface {
	// FindClosest returns insights for the building nearest the coordinates.
	// Returns ErrNoData when the API has no coverage there.
	FindClosest(ctx context.Context, lat, lng float64) (*BuildingInsights, error)
}

// Option configures the Solar API client.
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

// NewClient creates a Solar API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://solar.googleapis.com",
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) FindClosest(ctx context.Context, lat, lng float64) (*BuildingInsights, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "solarapi: rate limiter wait")
	}

	q := url.Values{}
	q.Set("location.latitude", fmt.Sprintf("%.6f", lat))
	q.Set("location.longitude", fmt.Sprintf("%.6f", lng))
	q.Set("requiredQuality", "LOW")
	q.Set("key", c.apiKey)

	reqURL := c.baseURL + "/v1/buildingInsights:findClosest?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "solarapi: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "solarapi: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "solarapi: read response body")
	}

	// findClosest 404s when no building near the point has imagery coverage.
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoData
	}
	if resilience.RetryableStatus(resp.StatusCode) {
		return nil, resilience.MarkTransient(
			eris.Errorf("solarapi: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("solarapi: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var insights BuildingInsights
	if err := json.Unmarshal(body, &insights); err != nil {
		return nil, eris.Wrap(err, "solarapi: unmarshal response")
	}
	return &insights, nil
}
