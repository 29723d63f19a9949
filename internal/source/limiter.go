// Package source reads contractor names, projects, contracts and
// verification entries from the upstream systems.
package source

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter wraps a rate.Limiter that speeds up on success and backs
// off on 429. The rate stays within [initial/4, initial*2].
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	initial rate.Limit
	current rate.Limit
}

// NewAdaptiveLimiter creates a limiter starting at perSecond with burst.
func NewAdaptiveLimiter(perSecond float64, burst int) *AdaptiveLimiter {
	if burst <= 0 {
		burst = 1
	}
	r := rate.Limit(perSecond)
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(r, burst),
		initial: r,
		current: r,
	}
}

// Wait blocks until the limiter allows a request.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set(min(a.current*1.2, a.initial*2))
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set(max(a.current*0.5, a.initial/4))
	zap.L().Warn("rate limited, reducing request rate",
		zap.String("component", "source.limiter"),
		zap.Float64("rate", float64(a.current)),
	)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *AdaptiveLimiter) set(r rate.Limit) {
	a.current = r
	a.limiter.SetLimit(r)
}
