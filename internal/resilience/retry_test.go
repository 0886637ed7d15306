package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDoVal_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), fastPolicy(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", MarkTransient(eris.New("rate limited"), 429)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDoVal_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, eris.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, MarkTransient(eris.New("upstream flaking"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, IsTransient(err))
}

func TestDo_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 10, BaseDelay: 50 * time.Millisecond}, func(context.Context) error {
		calls++
		cancel()
		return MarkTransient(eris.New("timeout"), 504)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("validation failed")))
	assert.True(t, IsTransient(MarkTransient(eris.New("x"), 500)))
	assert.True(t, IsTransient(eris.Wrap(MarkTransient(eris.New("x"), 429), "places: nearby search")))
	assert.True(t, IsTransient(eris.New("read tcp: i/o timeout")))
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, RetryableStatus(code), code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404} {
		assert.False(t, RetryableStatus(code), code)
	}
}
