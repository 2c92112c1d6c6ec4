package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
	"github.com/keyxmakerx/gatekeeper/internal/session"
)

// contextKeyUserID stores the authenticated user's id in the Echo context.
const contextKeyUserID = "auth_user_id"

// RequireAuth returns middleware that validates the Bearer access token,
// rejects revoked tokens, and injects the user id into the request context.
func RequireAuth(sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accessToken := bearerToken(c)
			if accessToken == "" {
				return apperror.NewInvalidToken("missing bearer token")
			}

			userID, err := sessions.ValidateAccess(c.Request().Context(), accessToken)
			if err != nil {
				return err
			}

			c.Set(contextKeyUserID, userID)
			return next(c)
		}
	}
}

// GetUserID retrieves the authenticated user's id from the Echo context.
// Returns empty string if RequireAuth was not applied.
func GetUserID(c echo.Context) string {
	userID, ok := c.Get(contextKeyUserID).(string)
	if !ok {
		return ""
	}
	return userID
}
