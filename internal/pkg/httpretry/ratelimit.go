package httpretry

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// LimitedClient paces requests through a token bucket before handing them to
// the wrapped HTTPDoer.
type LimitedClient struct {
	client  HTTPDoer
	limiter *rate.Limiter
}

// NewLimitedClient wraps client with a limiter allowing perSecond requests
// per second and bursts of burst. perSecond <= 0 returns client unchanged.
func NewLimitedClient(client HTTPDoer, perSecond float64, burst int) HTTPDoer {
	limiter := NewLimiter(perSecond, burst)
	if limiter == nil {
		return client
	}
	return &LimitedClient{client: client, limiter: limiter}
}

// NewLimiter returns a token bucket for perSecond requests per second, or
// nil when perSecond <= 0.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Do waits for a token, bounded by the request context, then sends req.
func (lc *LimitedClient) Do(req *http.Request) (*http.Response, error) {
	if err := lc.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return lc.client.Do(req)
}
