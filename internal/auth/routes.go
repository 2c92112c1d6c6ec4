package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/gatekeeper/internal/middleware"
	"github.com/keyxmakerx/gatekeeper/internal/session"
)

// RegisterRoutes sets up the auth endpoints under /api/v1/auth.
//
// Credential endpoints are rate-limited to slow brute-force and credential
// stuffing: 5 registrations and 10 logins per IP per minute, 10 code
// submissions. Refresh is limited more loosely since well-behaved clients
// hit it on a timer.
func RegisterRoutes(e *echo.Echo, h *Handler, sessions *session.Manager) {
	g := e.Group("/api/v1/auth")

	g.POST("/register", h.Register, middleware.RateLimit(5, time.Minute))
	g.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))
	g.POST("/verify", h.Verify, middleware.RateLimit(10, time.Minute))
	g.POST("/refresh", h.Refresh, middleware.RateLimit(30, time.Minute))

	// Logout authenticates by the presented token itself, not the
	// middleware: it must work for expired access tokens too.
	g.POST("/logout", h.Logout)

	g.GET("/me", h.Me, RequireAuth(sessions))
}
