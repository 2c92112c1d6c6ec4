// Package app is the application bootstrap and dependency injection root.
// It creates and holds the shared infrastructure (DB pool, Redis client,
// Echo instance) and wires the authentication flow together.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
	"github.com/keyxmakerx/gatekeeper/internal/config"
	"github.com/keyxmakerx/gatekeeper/internal/middleware"
)

// App holds the shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the MySQL connection pool (identities, security events).
	DB *sql.DB

	// Redis is the Redis client backing challenges, counters, and the
	// refresh whitelist / access blacklist.
	Redis *redis.Client

	// Echo is the HTTP server instance.
	Echo *echo.Echo
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Trust reverse proxy headers from private ranges so c.RealIP()
	// returns the actual client. The rate limits and every audit record
	// depend on accurate IPs.
	middleware.TrustedProxies(e, []string{
		"127.0.0.0/8",    // Localhost
		"10.0.0.0/8",     // Docker default bridge
		"172.16.0.0/12",  // Docker bridge (alternate range)
		"192.168.0.0/16", // Common LAN
		"fd00::/8",       // IPv6 private
	})

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Echo:   e,
	}

	app.setupMiddleware()

	// Map AppErrors to JSON responses centrally.
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: recovery is outermost so it catches panics from the rest.
func (a *App) setupMiddleware() {
	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(middleware.SecurityHeaders())
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   []string{a.Config.BaseURL},
		AllowCredentials: true,
	}))
}

// errorHandler is the custom Echo error handler. It maps domain errors
// (AppError) to JSON responses, including the side-channel fields clients
// act on: remaining attempts for a wrong code, retry-after for a lockout,
// the offending field for validation failures.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if the response is already committed.
	if c.Response().Committed {
		return
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		// Echo's built-in HTTP errors (404 from the router, method not
		// allowed) keep their code; everything else is a 500.
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			message := http.StatusText(echoErr.Code)
			if msg, ok := echoErr.Message.(string); ok {
				message = msg
			}
			appErr = &apperror.AppError{
				Code:    echoErr.Code,
				Kind:    "http_error",
				Message: message,
			}
		} else {
			appErr = apperror.NewInternal(err)
		}
	}

	// Only internal errors carry a cause worth logging here; the request
	// logger already records the status line for the rest.
	if appErr.Internal != nil {
		slog.Error("internal error",
			slog.String("kind", appErr.Kind),
			slog.Any("internal", appErr.Internal),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if appErr.Code == http.StatusTooManyRequests && appErr.RetryAfterSeconds > 0 {
		c.Response().Header().Set("Retry-After",
			fmt.Sprintf("%d", appErr.RetryAfterSeconds))
	}

	// The AppError itself is the response body; Code is excluded from the
	// JSON, empty side-channel fields are omitted.
	if err := c.JSON(appErr.Code, appErr); err != nil {
		slog.Error("failed to write error response", slog.Any("error", err))
	}
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting Gatekeeper server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}
