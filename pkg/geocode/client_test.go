package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("leadscout-test", WithBaseURL(srv.URL), WithRateLimit(rate.Inf, 1))
}

func TestGeocode_Success(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "784 S DOCK ST, SHEBOYGAN, WI", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "leadscout-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[{"lat":"43.7420","lon":"-87.7090","display_name":"784, South Dock Street, Sheboygan"}]`))
	})

	got, err := c.Geocode(context.Background(), "784 S DOCK ST, SHEBOYGAN, WI")
	require.NoError(t, err)
	assert.InDelta(t, 43.7420, got.Lat, 1e-6)
	assert.InDelta(t, -87.7090, got.Lng, 1e-6)
	assert.Contains(t, got.DisplayName, "Sheboygan")
}

func TestGeocode_NoResult(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := c.Geocode(context.Background(), "nowhere at all")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoResult))
}

func TestGeocode_CachesHitsAndMisses(t *testing.T) {
	var calls atomic.Int64
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("q") == "known" {
			_, _ = w.Write([]byte(`[{"lat":"41.0","lon":"-87.0","display_name":"Known"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		got, err := c.Geocode(ctx, "known")
		require.NoError(t, err)
		assert.Equal(t, 41.0, got.Lat)
	}
	for i := 0; i < 3; i++ {
		_, err := c.Geocode(ctx, "unknown")
		assert.True(t, eris.Is(err, ErrNoResult))
	}
	assert.Equal(t, int64(2), calls.Load())
}

func TestGeocode_ServerErrorIsTransient(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Geocode(context.Background(), "anything")
	require.Error(t, err)
	assert.False(t, eris.Is(err, ErrNoResult))
}
