package crawler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces the politeness delay between page fetches. A token
// bucket with burst 1 lets the first request through immediately and
// spaces the rest by the configured interval.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a throttle; a non-positive delay disables it.
func NewThrottle(delay time.Duration) *Throttle {
	if delay <= 0 {
		return &Throttle{}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next request is permitted.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.limiter == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}
