package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// LimiterPool keeps one token bucket per API key.
type LimiterPool struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	pool  map[string]*rate.Limiter
}

// NewLimiterPool builds a pool with the given steady rate and burst. A
// non-positive burst defaults to the ceiling of the rate.
func NewLimiterPool(rps float64, burst int) *LimiterPool {
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &LimiterPool{
		rps:   rate.Limit(rps),
		burst: burst,
		pool:  make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the key may proceed now.
func (p *LimiterPool) Allow(key string) bool {
	p.mu.Lock()
	l, ok := p.pool[key]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.pool[key] = l
	}
	p.mu.Unlock()
	return l.Allow()
}
