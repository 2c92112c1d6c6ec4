// Package token builds and verifies the signed bearer tokens Gatekeeper
// issues: the ephemeral MFA token handed out after a password check, and
// the access/refresh pair minted after code verification. All three share
// one claim schema and differ only in the "type" claim and lifetime.
//
// The codec is stateless. Revocation state (whitelist, blacklist) lives in
// the counter store and is enforced by the session manager, not here.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/keyxmakerx/gatekeeper/internal/config"
)

// Token type claim values.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
	TypeMFA     = "mfa"
)

// Typed parse failures. Callers distinguish an expired-but-authentic token
// (zero remaining TTL, not an attack) from a malformed or forged one.
var (
	// ErrExpired means the signature verified but the token is past its expiry.
	ErrExpired = errors.New("token expired")

	// ErrMalformed means the token could not be parsed or its signature is wrong.
	ErrMalformed = errors.New("malformed token")

	// ErrWrongType means the token is authentic but its type claim does not
	// match what the caller expected. Always fail closed on this.
	ErrWrongType = errors.New("wrong token type")
)

// Claims is the single claim schema shared by all three token types.
// Subject carries the user ID, ID (jti) the unique token identifier.
type Claims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Pair is an access/refresh token pair with lifetimes in seconds, shaped
// for the token response payload.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresIn  int64
	RefreshExpiresIn int64
}

// Codec signs and verifies bearer tokens with a symmetric HS256 key.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	mfaTTL     time.Duration
}

// NewCodec creates a codec from the JWT configuration.
func NewCodec(cfg config.JWTConfig) *Codec {
	return &Codec{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		mfaTTL:     cfg.MFATTL,
	}
}

// GeneratePair builds a new access/refresh token pair for the given user.
// Each token gets its own jti so they can be revoked independently.
func (c *Codec) GeneratePair(userID string) (Pair, error) {
	now := time.Now()

	access, err := c.build(userID, TypeAccess, now, c.accessTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("building access token: %w", err)
	}

	refresh, err := c.build(userID, TypeRefresh, now, c.refreshTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("building refresh token: %w", err)
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresIn:  int64(c.accessTTL.Seconds()),
		RefreshExpiresIn: int64(c.refreshTTL.Seconds()),
	}, nil
}

// GenerateMFAToken builds the short-lived token that authorizes one MFA
// verification attempt sequence. Returns the token and its lifetime in seconds.
func (c *Codec) GenerateMFAToken(userID string) (string, int64, error) {
	tok, err := c.build(userID, TypeMFA, time.Now(), c.mfaTTL)
	if err != nil {
		return "", 0, fmt.Errorf("building mfa token: %w", err)
	}
	return tok, int64(c.mfaTTL.Seconds()), nil
}

// ValidateAccess verifies signature, expiry, and type, returning the user ID.
func (c *Codec) ValidateAccess(tokenString string) (string, error) {
	return c.validate(tokenString, TypeAccess)
}

// ValidateRefresh verifies signature, expiry, and type, returning the user ID.
func (c *Codec) ValidateRefresh(tokenString string) (string, error) {
	return c.validate(tokenString, TypeRefresh)
}

// ValidateMFA verifies signature, expiry, and type, returning the user ID.
func (c *Codec) ValidateMFA(tokenString string) (string, error) {
	return c.validate(tokenString, TypeMFA)
}

// ExtractID returns the token's unique identifier (jti). The signature is
// verified but expiry is NOT: logout needs the jti of an expired access
// token to decide that no blacklist entry is required.
func (c *Codec) ExtractID(tokenString string) (string, error) {
	claims, err := c.parse(tokenString, jwt.WithoutClaimsValidation())
	if err != nil {
		return "", err
	}
	return claims.ID, nil
}

// ExtractRefreshID returns the jti of a refresh token, failing closed with
// ErrWrongType if the token is authentic but not of type refresh.
func (c *Codec) ExtractRefreshID(tokenString string) (string, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.TokenType != TypeRefresh {
		return "", ErrWrongType
	}
	return claims.ID, nil
}

// RemainingTTL returns how long until the token expires. An expired token
// yields zero rather than an error; a malformed one yields ErrMalformed.
func (c *Codec) RemainingTTL(tokenString string) (time.Duration, error) {
	claims, err := c.parse(tokenString, jwt.WithoutClaimsValidation())
	if err != nil {
		return 0, err
	}
	if claims.ExpiresAt == nil {
		return 0, ErrMalformed
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// build signs a token with a fresh jti, the user ID as subject, and the
// given type claim and lifetime.
func (c *Codec) build(userID, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// validate parses the token, enforcing signature, expiry, and type claim.
func (c *Codec) validate(tokenString, expectedType string) (string, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.TokenType != expectedType {
		return "", ErrWrongType
	}
	return claims.Subject, nil
}

// parse verifies the signature and returns the claims, collapsing the JWT
// library's error zoo into the package's typed failures.
func (c *Codec) parse(tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}
	return claims, nil
}
