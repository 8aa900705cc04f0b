package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterSweep = 5 * time.Minute
	limiterIdle  = 10 * time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one token bucket per client IP.
type limiterSet struct {
	mu   sync.Mutex
	r    rate.Limit
	b    int
	byIP map[string]*ipLimiter
}

func (s *limiterSet) allow(ip string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	il, ok := s.byIP[ip]
	if !ok {
		il = &ipLimiter{limiter: rate.NewLimiter(s.r, s.b)}
		s.byIP[ip] = il
	}
	il.lastSeen = now
	return il.limiter.AllowN(now, 1)
}

func (s *limiterSet) sweep(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ip, il := range s.byIP {
		if il.lastSeen.Before(cutoff) {
			delete(s.byIP, ip)
		}
	}
}

// RateLimit applies a per-IP token bucket of r requests per second with burst b.
// Idle buckets are swept until ctx is done.
func RateLimit(ctx context.Context, r rate.Limit, b int) gin.HandlerFunc {
	set := &limiterSet{r: r, b: b, byIP: make(map[string]*ipLimiter)}

	go func() {
		ticker := time.NewTicker(limiterSweep)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				set.sweep(now.Add(-limiterIdle))
			case <-ctx.Done():
				return
			}
		}
	}()

	return func(c *gin.Context) {
		if !set.allow(c.ClientIP(), time.Now()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
