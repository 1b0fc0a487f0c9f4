package worker

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter throttles store writes issued by batch workers. A nil *rate.Limiter
// means writes are unlimited.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter allowing writesPerSecond sustained writes with
// the given burst. A non-positive rate disables throttling.
func NewLimiter(writesPerSecond float64, burst int) *Limiter {
	if writesPerSecond <= 0 {
		return &Limiter{}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(writesPerSecond), burst)}
}

// Unlimited reports whether the limiter never blocks.
func (l *Limiter) Unlimited() bool {
	return l == nil || l.limiter == nil
}

// Wait blocks until one write is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.Unlimited() {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}
