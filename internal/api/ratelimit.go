// Per-client throttling for the job endpoints. A resynthesis pass is
// CPU-bound, so job submission must not be free: each client IP gets a
// token bucket that refills at a fixed per-minute rate up to a burst
// ceiling. Stale buckets are swept inline during normal operation, so
// transient clients don't accumulate state and no background goroutine
// is needed.
package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// staleAfter is how long an idle client's bucket survives before the
// next sweep reclaims it. An idle bucket is full by definition, so
// dropping it loses nothing.
const staleAfter = 10 * time.Minute

type tokenBucket struct {
	tokens  float64
	touched time.Time
}

// RateLimiter tracks one token bucket per client IP behind a single
// mutex. Job submissions are infrequent enough that finer locking
// would buy nothing.
type RateLimiter struct {
	mu        sync.Mutex
	perSecond float64
	capacity  float64
	buckets   map[string]*tokenBucket
	lastSweep time.Time
}

// NewRateLimiter allows ratePerMin requests per minute per client,
// with bursts of up to burst requests.
func NewRateLimiter(ratePerMin, burst int) *RateLimiter {
	return &RateLimiter{
		perSecond: float64(ratePerMin) / 60,
		capacity:  float64(burst),
		buckets:   make(map[string]*tokenBucket),
		lastSweep: time.Now(),
	}
}

// take spends one token for client, reporting how long until the next
// token becomes available when the bucket is empty.
func (rl *RateLimiter) take(client string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > staleAfter {
		for ip, b := range rl.buckets {
			if now.Sub(b.touched) > staleAfter {
				delete(rl.buckets, ip)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[client]
	if !ok {
		b = &tokenBucket{tokens: rl.capacity, touched: now}
		rl.buckets[client] = b
	}

	b.tokens += now.Sub(b.touched).Seconds() * rl.perSecond
	if b.tokens > rl.capacity {
		b.tokens = rl.capacity
	}
	b.touched = now

	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / rl.perSecond * float64(time.Second))
		return false, wait
	}
	b.tokens--
	return true, 0
}

// Middleware rejects over-limit requests with 429 and a Retry-After
// header rounded up to whole seconds.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := rl.take(c.ClientIP())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"retryAfter": wait.String(),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
