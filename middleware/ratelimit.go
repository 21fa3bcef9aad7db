package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const rateLimitMessage = "Rate limit exceeded. Please try again later."

// RateLimiter is a token bucket per client key
type RateLimiter struct {
	tokens         map[string]float64
	lastRefill     map[string]time.Time
	mu             sync.Mutex
	rate           float64 // tokens per second
	bucketSize     float64 // maximum tokens
	refillInterval time.Duration
	now            func() time.Time
}

func NewRateLimiter(rate float64, bucketSize float64) *RateLimiter {
	return &RateLimiter{
		tokens:         make(map[string]float64),
		lastRefill:     make(map[string]time.Time),
		rate:           rate,
		bucketSize:     bucketSize,
		refillInterval: time.Second,
		now:            time.Now,
	}
}

// Allow takes one token from key's bucket if one is available
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	if _, exists := rl.lastRefill[key]; !exists {
		rl.tokens[key] = rl.bucketSize
		rl.lastRefill[key] = now
	}

	elapsed := now.Sub(rl.lastRefill[key])
	newTokens := float64(elapsed) / float64(rl.refillInterval) * rl.rate
	rl.tokens[key] = min(rl.bucketSize, rl.tokens[key]+newTokens)
	rl.lastRefill[key] = now

	if rl.tokens[key] < 1 {
		return false
	}
	rl.tokens[key]--
	return true
}

// RateLimit limits requests per client IP. It is applied to the routes
// that reach the provider or the retriever.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			if wantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"error": rateLimitMessage,
				})
				return
			}
			c.Data(http.StatusTooManyRequests, "text/plain; charset=utf-8", []byte(rateLimitMessage))
			c.Abort()
			return
		}

		c.Next()
	}
}
