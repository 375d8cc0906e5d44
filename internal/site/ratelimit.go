package site

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter hands out one token bucket per client key and forgets
// buckets that have been idle for a while.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
	clients map[string]*clientBucket
	sweep   time.Time
}

type clientBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// newClientLimiter allows perMinute events per client with the given burst.
// perMinute <= 0 disables limiting and returns nil.
func newClientLimiter(perMinute float64, burst int) *clientLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		limit:   rate.Limit(perMinute / 60),
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
		clients: map[string]*clientBucket{},
	}
}

// Allow reports whether key may proceed now. A nil limiter allows everything.
func (l *clientLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.sweep) > l.idle {
		for k, b := range l.clients {
			if now.Sub(b.seen) > l.idle {
				delete(l.clients, k)
			}
		}
		l.sweep = now
	}

	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

func (l *clientLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
