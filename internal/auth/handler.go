package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
)

// Handler handles HTTP requests for the authentication flow. Handlers are
// thin: they bind the request, call the service, and shape the response.
// No business logic lives here.
type Handler struct {
	service AuthService
}

// NewHandler creates a new auth handler with the given service.
func NewHandler(service AuthService) *Handler {
	return &Handler{service: service}
}

// Register creates a new account (POST /api/v1/auth/register).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewValidation("body", "invalid request body")
	}

	u, err := h.service.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	})
}

// Login runs the password step and issues the MFA challenge
// (POST /api/v1/auth/login).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewValidation("body", "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return apperror.NewValidation("body", "username and password are required")
	}

	resp, err := h.service.Login(c.Request().Context(), req.Username, req.Password, c.RealIP())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// Verify exchanges the MFA token and code for a session grant
// (POST /api/v1/auth/verify).
func (h *Handler) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewValidation("body", "invalid request body")
	}
	if req.MFAToken == "" {
		return apperror.NewValidation("mfa_token", "mfa token is required")
	}
	if len(req.Code) != 6 {
		return apperror.NewValidation("code", "code must be exactly 6 digits")
	}

	pair, err := h.service.VerifyMFA(c.Request().Context(), req.MFAToken, req.Code, c.RealIP())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newTokenResponse(pair))
}

// Refresh rotates a refresh token (POST /api/v1/auth/refresh).
func (h *Handler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewValidation("body", "invalid request body")
	}
	if req.RefreshToken == "" {
		return apperror.NewValidation("refresh_token", "refresh token is required")
	}

	pair, err := h.service.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newTokenResponse(pair))
}

// Logout revokes the caller's tokens (POST /api/v1/auth/logout). The access
// token comes from the Authorization header, the refresh token optionally
// from the body. Returns 204 even for already-expired access tokens.
func (h *Handler) Logout(c echo.Context) error {
	accessToken := bearerToken(c)
	if accessToken == "" {
		return apperror.NewInvalidToken("missing bearer token")
	}

	// The body is optional; a bind failure just means no refresh token.
	var req LogoutRequest
	_ = c.Bind(&req)

	if err := h.service.Logout(c.Request().Context(), accessToken, req.RefreshToken); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated identity (GET /api/v1/auth/me).
func (h *Handler) Me(c echo.Context) error {
	userID := GetUserID(c)
	if userID == "" {
		return apperror.NewInvalidToken("missing bearer token")
	}

	u, err := h.service.CurrentUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	})
}

// bearerToken extracts the token from the Authorization header, or ""
// when the header is missing or not a Bearer scheme.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
