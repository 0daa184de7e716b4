package clients

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces outbound requests.
type RateLimiter interface {
	// Allow checks if a request is allowed now
	Allow() bool

	// Wait blocks until a request is allowed or ctx is done
	Wait(ctx context.Context) error
}

// NewRateLimiter creates a token bucket limiter refilling at rps tokens per
// second with the given burst.
func NewRateLimiter(rps float64, burst int) RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
