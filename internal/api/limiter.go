package api

import (
	"sync"

	"agendum/internal/config"

	"golang.org/x/time/rate"
)

// rateLimiter hands out one token bucket per caller key so a single chatty
// client cannot exhaust the shared quota.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	cfg     *config.APIConfig
}

func newRateLimiter(cfg *config.APIConfig) *rateLimiter {
	return &rateLimiter{
		buckets: make(map[string]*rate.Limiter),
		cfg:     cfg,
	}
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.buckets[key]; ok {
		return lim
	}

	burst := l.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}
	lim := rate.NewLimiter(rate.Limit(l.cfg.RateLimit.RPS), burst)
	l.buckets[key] = lim
	return lim
}
