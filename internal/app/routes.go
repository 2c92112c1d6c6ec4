package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/gatekeeper/internal/audit"
	"github.com/keyxmakerx/gatekeeper/internal/auth"
	"github.com/keyxmakerx/gatekeeper/internal/kvstore"
	"github.com/keyxmakerx/gatekeeper/internal/mfa"
	"github.com/keyxmakerx/gatekeeper/internal/monitor"
	"github.com/keyxmakerx/gatekeeper/internal/notify"
	"github.com/keyxmakerx/gatekeeper/internal/session"
	"github.com/keyxmakerx/gatekeeper/internal/token"
	"github.com/keyxmakerx/gatekeeper/internal/user"
)

// RegisterRoutes builds the service graph and sets up all routes. This is
// the single place where the stores, managers, and the auth flow are wired
// together.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// Health check endpoint for container orchestration.
	e.GET("/healthz", a.healthz)

	store := kvstore.New(a.Redis)
	codec := token.NewCodec(a.Config.JWT)
	mfaMgr := mfa.NewManager(store, a.Config.MFA)
	sessions := session.NewManager(store, codec)
	users := user.NewRepository(a.DB)
	events := audit.NewRepository(a.DB)

	mailer := a.buildMailer()
	mon := monitor.NewService(mfaMgr, users, events, mailer, a.Config.Security)

	service := auth.NewAuthService(users, mfaMgr, sessions, codec, mon, mailer)
	auth.RegisterRoutes(e, auth.NewHandler(service), sessions)
}

// buildMailer picks real SMTP delivery when configured, otherwise a
// log-only mailer so development setups work without a mail relay.
func (a *App) buildMailer() notify.Mailer {
	if a.Config.SMTP.Host == "" {
		slog.Warn("SMTP not configured, codes and notifications go to the log only")
		return notify.NewLogMailer()
	}
	return notify.NewSMTPMailer(a.Config.SMTP)
}

// healthz reports liveness of the process and its two stores.
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := a.DB.PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded", "mysql": err.Error(),
		})
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded", "redis": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
