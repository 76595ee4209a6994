// Package ratelimit throttles requests per client.
package ratelimit

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"aiostreams/internal/apierror"
	"aiostreams/internal/metrics"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter allows Max requests per Window for each client key, refilling
// continuously.
type Limiter struct {
	Window time.Duration
	Max    int

	mu      sync.Mutex
	clients map[string]*entry
	now     func() time.Time
	metrics *metrics.Metrics
}

func New(window time.Duration, maxRequests int, m *metrics.Metrics) *Limiter {
	return &Limiter{
		Window:  window,
		Max:     maxRequests,
		clients: make(map[string]*entry),
		now:     time.Now,
		metrics: m,
	}
}

// Allow consumes a token for key. When the request is rejected it also
// returns how long until the next token is available.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	e, ok := l.clients[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Every(l.Window/time.Duration(l.Max)), l.Max)}
		l.clients[key] = e
	}
	e.lastSeen = now
	r := e.limiter.ReserveN(now, 1)
	l.mu.Unlock()

	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, delay
}

// Len reports how many clients are being tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) evict(idle time.Duration) {
	cutoff := l.now().Add(-idle)

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.clients {
		if e.lastSeen.Before(cutoff) {
			delete(l.clients, k)
		}
	}
}

// Sweep drops clients idle for longer than idle, every idle, until ctx is done.
func (l *Limiter) Sweep(ctx context.Context, idle time.Duration) {
	t := time.NewTicker(idle)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.evict(idle)
		}
	}
}

// Middleware rejects over-limit clients, keyed by client IP, before any
// later handler runs.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retry := l.Allow(c.ClientIP())
		if !ok {
			if l.metrics != nil {
				l.metrics.RateLimited.Inc()
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			apierror.Abort(c, apierror.RateLimited())
			return
		}
		c.Next()
	}
}
