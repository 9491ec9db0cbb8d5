package api

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"mediavault/internal/server/access"
	"mediavault/internal/server/service"

	"github.com/labstack/echo/v4"
)

// visitor tracks the rate limit state for a single client.
type visitor struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter is a token-bucket rate limiter keyed by the authenticated
// account, or by IP for anonymous requests.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     float64 // tokens per second
	burst    int     // max tokens
}

// NewRateLimiter creates a rate limiter with the given rate (requests/sec) and burst size.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rps,
		burst:    burst,
	}

	// Clean up stale entries every 5 minutes
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			rl.cleanup()
		}
	}()

	return rl
}

// Middleware returns an echo middleware function that enforces rate limits.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := clientKey(c)
			if !rl.allow(key) {
				slog.Warn("rate limit exceeded", "client", key, "ip", c.RealIP())
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "rate limit exceeded, try again later",
				})
			}
			return next(c)
		}
	}
}

// clientKey must run after Authenticate.
func clientKey(c echo.Context) string {
	if v := viewerFrom(c); v.Authenticated {
		return "account:" + v.ID.String()
	}
	return "ip:" + c.RealIP()
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	now := time.Now()

	if !exists {
		rl.visitors[key] = &visitor{
			tokens:    float64(rl.burst) - 1,
			lastCheck: now,
		}
		return true
	}

	// Add tokens based on elapsed time
	elapsed := now.Sub(v.lastCheck).Seconds()
	v.tokens += elapsed * rl.rate
	if v.tokens > float64(rl.burst) {
		v.tokens = float64(rl.burst)
	}
	v.lastCheck = now

	if v.tokens < 1 {
		return false
	}

	v.tokens--
	return true
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for key, v := range rl.visitors {
		if v.lastCheck.Before(cutoff) {
			delete(rl.visitors, key)
		}
	}
}

// RequestLogger returns an echo middleware that logs requests using slog.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			slog.Info("request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"latency_ms", time.Since(start).Milliseconds(),
				"ip", c.RealIP(),
				"user_agent", req.UserAgent(),
				"bytes_out", res.Size,
			)

			return err
		}
	}
}

const viewerKey = "viewer"

// Authenticate resolves a bearer token to the request's viewer. Requests
// without an Authorization header continue anonymously; a bad token is
// rejected with 401.
func Authenticate(accounts *service.AccountService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return next(c)
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "malformed authorization header",
				})
			}

			a, err := accounts.Authenticate(c.Request().Context(), strings.TrimSpace(token))
			if err != nil {
				return mapServiceError(c, err)
			}
			c.Set(viewerKey, a.Viewer())
			return next(c)
		}
	}
}

// viewerFrom returns the authenticated viewer, or an anonymous one.
func viewerFrom(c echo.Context) access.Viewer {
	if v, ok := c.Get(viewerKey).(access.Viewer); ok {
		return v
	}
	return access.Anonymous()
}
