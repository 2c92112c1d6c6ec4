package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// rateLimitEntry tracks request counts for a single IP within a window.
type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// RateLimit returns middleware that limits requests per IP to maxRequests
// within the given window. Intended for the credential endpoints, where the
// MFA attempt counter alone does not stop online guessing across many
// accounts. Returns 429 with a Retry-After header when exceeded.
//
// State is in-process: each instance enforces its own budget. The Redis
// counters behind the MFA manager remain the cross-instance backstop.
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	var mu sync.Mutex
	entries := make(map[string]*rateLimitEntry)

	// Drop stale entries so the map does not grow with one-off IPs.
	go func() {
		for {
			time.Sleep(time.Minute)
			mu.Lock()
			now := time.Now()
			for ip, entry := range entries {
				if now.Sub(entry.windowStart) > 2*window {
					delete(entries, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			now := time.Now()

			mu.Lock()
			entry, ok := entries[ip]
			if !ok || now.Sub(entry.windowStart) > window {
				entries[ip] = &rateLimitEntry{count: 1, windowStart: now}
				mu.Unlock()
				return next(c)
			}

			entry.count++
			if entry.count > maxRequests {
				retryAfter := window - now.Sub(entry.windowStart)
				mu.Unlock()

				c.Response().Header().Set("Retry-After",
					strconv.Itoa(int(retryAfter.Seconds())+1))
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"kind":    "rate_limited",
					"message": "too many requests, slow down",
				})
			}
			mu.Unlock()
			return next(c)
		}
	}
}
