// internal/api/middleware.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Corphon/SocialGenius/internal/utils"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// RateLimiter is a fixed-window limiter keyed by client
type RateLimiter struct {
	limit    int
	window   time.Duration
	visitors map[string]*Visitor
	mu       sync.Mutex
}

// Visitor is the window state of one client
type Visitor struct {
	Remaining int
	Reset     time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		window:   window,
		visitors: make(map[string]*Visitor),
	}
}

// Run removes expired windows every interval until ctx is done
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup(time.Now())
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, visitor := range rl.visitors {
		if now.After(visitor.Reset) {
			delete(rl.visitors, key)
		}
	}
}

// Allow consumes one request for key and reports whether it fits the window,
// together with the remaining budget and the reset time.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	visitor, exists := rl.visitors[key]
	if !exists || now.After(visitor.Reset) {
		visitor = &Visitor{Remaining: rl.limit, Reset: now.Add(rl.window)}
		rl.visitors[key] = visitor
	}

	if visitor.Remaining <= 0 {
		return false, 0, visitor.Reset
	}
	visitor.Remaining--
	return true, visitor.Remaining, visitor.Reset
}

// RateLimitByIP rejects clients that exceed the limiter's budget
func RateLimitByIP(rl *RateLimiter, rh *ResponseHelper) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, reset := rl.Allow(c.ClientIP())

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))

		if !allowed {
			rh.Error(c, http.StatusTooManyRequests, ErrorRateLimited, "Too many requests. Please slow down.")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestID tags each request with the caller's X-Request-ID or a new UUID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestMetrics records status and latency of every routed request
func RequestMetrics(metrics *utils.GenerationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordAPIRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// RequestLogger writes one structured line per request
func RequestLogger() gin.HandlerFunc {
	logger := utils.GetLogger().WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("Request handled", map[string]interface{}{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
	}
}
