// Package auth is the HTTP-facing authentication flow: registration, the
// two-step login (password then one-time code), token refresh, and logout.
// Handlers bind requests and shape responses; the service orchestrates the
// identity store, MFA manager, session manager, and security monitor.
package auth

import "github.com/keyxmakerx/gatekeeper/internal/token"

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the first-step login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// VerifyRequest is the second-step payload: the intermediate MFA token from
// login plus the 6-digit code delivered by email.
type VerifyRequest struct {
	MFAToken string `json:"mfa_token"`
	Code     string `json:"code"`
}

// RefreshRequest carries the refresh token being rotated.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest optionally carries the refresh token to revoke alongside
// the access token from the Authorization header. The body may be absent.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserResponse is the public view of an identity. Never includes the hash.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// MFAResponse is the successful first-step login response: an intermediate
// token that only the verify endpoint accepts.
type MFAResponse struct {
	MFAToken  string `json:"mfa_token"`
	ExpiresIn int64  `json:"expires_in"`
}

// TokenResponse is a full session grant.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	AccessExpiresIn  int64  `json:"access_expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}

// newTokenResponse shapes a token pair for the wire.
func newTokenResponse(pair token.Pair) TokenResponse {
	return TokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		AccessExpiresIn:  pair.AccessExpiresIn,
		RefreshExpiresIn: pair.RefreshExpiresIn,
	}
}
