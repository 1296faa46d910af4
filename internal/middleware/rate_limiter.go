package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"stockreserve/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── Fixed-window rate limiter ─────────────────────────────────────────────────
// Callers are keyed by token subject when authenticated, by client IP
// otherwise, so several services behind one NAT do not share a budget.

type rateEntry struct {
	count     int
	windowEnd time.Time
}

type rateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	entries map[string]*rateEntry
}

const purgeInterval = 5 * time.Minute

// RateLimiter allows limit requests per window per caller. Expired entries
// are purged in the background until ctx is done.
func RateLimiter(ctx context.Context, limit int, window time.Duration) gin.HandlerFunc {
	rl := &rateLimiter{limit: limit, window: window, entries: make(map[string]*rateEntry)}
	go rl.purgeLoop(ctx)
	return rl.handle
}

func (rl *rateLimiter) handle(c *gin.Context) {
	if rl.limit <= 0 {
		c.Next()
		return
	}
	key := "ip:" + c.ClientIP()
	if claims := GetClaims(c); claims != nil && claims.Subject != "" {
		key = "sub:" + claims.Subject
	}

	allowed, retryAfter := rl.allow(key, time.Now())
	if !allowed {
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds()+0.5)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("too many requests"))
		return
	}
	c.Next()
}

func (rl *rateLimiter) allow(key string, now time.Time) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[key]
	if !ok || now.After(e.windowEnd) {
		e = &rateEntry{windowEnd: now.Add(rl.window)}
		rl.entries[key] = e
	}
	e.count++
	if e.count > rl.limit {
		return false, e.windowEnd.Sub(now)
	}
	return true, 0
}

func (rl *rateLimiter) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := rl.purge(now); n > 0 {
				log.Debug().Int("purged", n).Msg("rate limiter: expired entries purged")
			}
		}
	}
}

func (rl *rateLimiter) purge(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	purged := 0
	for k, e := range rl.entries {
		if now.After(e.windowEnd) {
			delete(rl.entries, k)
			purged++
		}
	}
	return purged
}
