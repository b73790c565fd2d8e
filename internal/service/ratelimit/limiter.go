package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per host.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

func New(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (l *Limiter) get(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[host]
	if !ok {
		limit := rate.Limit(l.rps)
		if l.rps <= 0 {
			limit = rate.Inf
		}
		b = rate.NewLimiter(limit, l.burst)
		l.m[host] = b
	}
	return b
}

// Allow returns true if one token can be consumed for host.
func (l *Limiter) Allow(host string) bool {
	return l.get(host).Allow()
}

// Wait blocks until host has a token or ctx is done.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	return l.get(host).Wait(ctx)
}
