package fetch

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter applies a per-host request rate so that one crawl cannot
// overwhelm a single origin regardless of worker count.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewHostLimiter builds a limiter allowing rps requests per second per host
// with the given burst. Non-positive arguments fall back to a conservative
// one request every two seconds.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if rps <= 0 {
		rps = 0.5
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Wait blocks until the host's limiter grants a slot or the context is
// cancelled.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	return l.limiter(host).Wait(ctx)
}

func (l *HostLimiter) limiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[host] = lim
	}
	return lim
}
