package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls exponential-backoff retries. The zero value is usable:
// missing fields fall back to the defaults below.
type Policy struct {
	// Attempts is the total number of tries including the first. Default 3.
	Attempts int

	// BaseDelay is the sleep before the first retry. Default 500ms.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Default 30s.
	MaxDelay time.Duration

	// Jitter is the random fraction applied to each delay. Default 0.25.
	Jitter float64

	// Service is attached to retry log lines when set.
	Service string
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Jitter <= 0 {
		p.Jitter = 0.25
	}
	return p
}

func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	d += (rand.Float64()*2 - 1) * d * p.Jitter
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, fails non-transiently, exhausts attempts, or
// the context is canceled. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for calls that return a value.
func DoVal[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) || attempt == p.Attempts-1 {
			break
		}

		if p.Service != "" {
			zap.L().Warn("retrying after transient failure",
				zap.String("service", p.Service),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}
