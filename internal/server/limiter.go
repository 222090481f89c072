package server

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	limiterPoolSize = 10000
	limiterIdleTTL  = time.Hour
)

// limiterPool hands out one token bucket per session. Idle buckets expire.
type limiterPool struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func newLimiterPool(perSecond float64, burst int) *limiterPool {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &limiterPool{
		limiters: expirable.NewLRU[string, *rate.Limiter](limiterPoolSize, nil, limiterIdleTTL),
		limit:    limit,
		burst:    burst,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.limiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(p.limit, p.burst)
	p.limiters.Add(key, l)
	return l
}

func (p *limiterPool) allow(key string) bool {
	return p.get(key).Allow()
}
