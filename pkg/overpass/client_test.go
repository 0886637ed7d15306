package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithRateLimit(rate.Inf, 1))
}

func TestBuildings(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/interpreter", r.URL.Path)
		require.NoError(t, r.ParseForm())
		query := r.Form.Get("data")
		assert.Contains(t, query, `"building"~"industrial|warehouse"`)
		assert.Contains(t, query, "43.700000,-87.750000,43.780000,-87.680000")
		assert.Contains(t, query, "out center tags geom")

		_, _ = w.Write([]byte(`{
			"elements": [
				{
					"type": "way",
					"id": 12345,
					"center": {"lat": 43.742, "lon": -87.709},
					"tags": {
						"building": "industrial",
						"name": "Dockside Forge",
						"addr:housenumber": "784",
						"addr:street": "South Dock Street",
						"building:levels": "1"
					},
					"geometry": [
						{"lat": 43.7419, "lon": -87.7092},
						{"lat": 43.7421, "lon": -87.7092},
						{"lat": 43.7421, "lon": -87.7088},
						{"lat": 43.7419, "lon": -87.7088},
						{"lat": 43.7419, "lon": -87.7092}
					]
				}
			]
		}`))
	})

	got, err := c.Buildings(context.Background(), 43.70, -87.75, 43.78, -87.68, "industrial|warehouse")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(12345), got[0].ID)
	assert.Equal(t, "industrial", got[0].Tags["building"])
	assert.Equal(t, 43.742, got[0].Center.Lat)
	assert.Len(t, got[0].Geometry, 5)
}

func TestQuery_EmptyResult(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"elements":[]}`))
	})

	got, err := c.Query(context.Background(), `[out:json];way["building"](0,0,1,1);out;`)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQuery_GatewayTimeoutIsTransient(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	})

	_, err := c.Query(context.Background(), `[out:json];out;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "504")
}
