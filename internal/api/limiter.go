package api

import (
	"sync"

	"github.com/frenetico9/Navalha.Digital/internal/config"

	"golang.org/x/time/rate"
)

const defaultBurst = 5

// rateLimiter keeps one token bucket per client key, shared by the HTTP and gRPC fronts.
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rps      float64
	burst    int
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &rateLimiter{rps: cfg.RPS, burst: burst}
}

func (l *rateLimiter) enabled() bool {
	return l != nil && l.rps > 0
}

// allow reports whether key may make one more request now.
func (l *rateLimiter) allow(key string) bool {
	if !l.enabled() {
		return true
	}
	return l.getLimiter(key).Allow()
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Limit(l.rps), l.burst)
	actual, _ := l.limiters.LoadOrStore(key, lim)
	return actual.(*rate.Limiter)
}
