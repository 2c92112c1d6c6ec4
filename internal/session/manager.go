// Package session manages long-lived session credentials: issuing
// access/refresh token pairs, single-use refresh rotation against a
// whitelist, and access-token revocation via a blacklist.
//
// A refresh token is valid only while its whitelist entry exists; deleting
// the entry is the sole revocation mechanism. An access token is valid
// until expiry unless its jti appears on the blacklist.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
	"github.com/keyxmakerx/gatekeeper/internal/kvstore"
	"github.com/keyxmakerx/gatekeeper/internal/token"
)

// Store key prefixes, keyed by token jti.
const (
	refreshKeyPrefix   = "refresh:"
	blacklistKeyPrefix = "blacklist:"
)

// Manager issues and revokes session credentials. Stateless; all revocation
// state lives in the counter store.
type Manager struct {
	store kvstore.Store
	codec *token.Codec
}

// NewManager creates a session manager on the given store and codec.
func NewManager(store kvstore.Store, codec *token.Codec) *Manager {
	return &Manager{store: store, codec: codec}
}

// IssuePair mints a fresh access/refresh pair for the user and whitelists
// the refresh token's jti with a TTL equal to the token's lifetime.
func (m *Manager) IssuePair(ctx context.Context, userID string) (token.Pair, error) {
	pair, err := m.codec.GeneratePair(userID)
	if err != nil {
		return token.Pair{}, apperror.NewInternal(err)
	}

	refreshID, err := m.codec.ExtractRefreshID(pair.RefreshToken)
	if err != nil {
		return token.Pair{}, apperror.NewInternal(fmt.Errorf("extracting refresh id: %w", err))
	}

	ttl := time.Duration(pair.RefreshExpiresIn) * time.Second
	if err := m.store.SetWithTTL(ctx, refreshKeyPrefix+refreshID, userID, ttl); err != nil {
		return token.Pair{}, apperror.NewInternal(fmt.Errorf("whitelisting refresh token: %w", err))
	}

	return pair, nil
}

// Refresh rotates a refresh token: verifies it, checks whitelist
// membership, deletes the old entry, and issues a new whitelisted pair.
//
// Rotation is single-use. The deletion here is a plain delete, not a
// compare-and-delete, so two requests racing on the same token can both
// pass the existence check and each mint a successor pair. Deployments
// needing strict exactly-once rotation must upgrade the store deletion to
// a conditional primitive.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	userID, err := m.codec.ValidateRefresh(refreshToken)
	if err != nil {
		return token.Pair{}, invalidToken(err)
	}

	oldID, err := m.codec.ExtractRefreshID(refreshToken)
	if err != nil {
		return token.Pair{}, invalidToken(err)
	}

	exists, err := m.store.Exists(ctx, refreshKeyPrefix+oldID)
	if err != nil {
		return token.Pair{}, apperror.NewInternal(fmt.Errorf("checking refresh whitelist: %w", err))
	}
	if !exists {
		// Covers genuine revocation and replay of an already-rotated token.
		return token.Pair{}, apperror.NewInvalidToken("refresh token not found or revoked")
	}

	if err := m.store.Delete(ctx, refreshKeyPrefix+oldID); err != nil {
		return token.Pair{}, apperror.NewInternal(fmt.Errorf("rotating refresh token: %w", err))
	}

	return m.IssuePair(ctx, userID)
}

// RevokeForLogout invalidates the presented credentials. The access token's
// jti is blacklisted for its remaining lifetime -- an already-expired token
// is skipped, it is unusable anyway and blacklisting it would only grow the
// store. A non-blank refresh token has its whitelist entry deleted
// unconditionally.
func (m *Manager) RevokeForLogout(ctx context.Context, accessToken, refreshToken string) error {
	jti, err := m.codec.ExtractID(accessToken)
	if err != nil {
		return invalidToken(err)
	}

	remaining, err := m.codec.RemainingTTL(accessToken)
	if err != nil {
		return invalidToken(err)
	}

	if remaining > 0 {
		if err := m.store.SetWithTTL(ctx, blacklistKeyPrefix+jti, "revoked", remaining); err != nil {
			return apperror.NewInternal(fmt.Errorf("blacklisting access token: %w", err))
		}
	}

	if refreshToken != "" {
		refreshID, err := m.codec.ExtractRefreshID(refreshToken)
		if err != nil {
			return invalidToken(err)
		}
		if err := m.store.Delete(ctx, refreshKeyPrefix+refreshID); err != nil {
			return apperror.NewInternal(fmt.Errorf("revoking refresh token: %w", err))
		}
	}

	return nil
}

// ValidateAccess verifies an access token for protected-resource use:
// signature, type, and expiry via the codec, then blacklist membership by
// jti. A blacklisted jti fails even when the token is otherwise valid.
func (m *Manager) ValidateAccess(ctx context.Context, accessToken string) (string, error) {
	jti, err := m.codec.ExtractID(accessToken)
	if err != nil {
		return "", invalidToken(err)
	}

	revoked, err := m.store.Exists(ctx, blacklistKeyPrefix+jti)
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("checking blacklist: %w", err))
	}
	if revoked {
		return "", apperror.NewInvalidToken("token revoked")
	}

	userID, err := m.codec.ValidateAccess(accessToken)
	if err != nil {
		return "", invalidToken(err)
	}

	return userID, nil
}

// IsWhitelisted reports whether a refresh token jti is still valid.
func (m *Manager) IsWhitelisted(ctx context.Context, refreshID string) (bool, error) {
	return m.store.Exists(ctx, refreshKeyPrefix+refreshID)
}

// IsBlacklisted reports whether an access token jti has been revoked.
func (m *Manager) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	return m.store.Exists(ctx, blacklistKeyPrefix+jti)
}

// invalidToken maps codec failures onto the client-facing error kind with
// a reason that does not leak parser internals.
func invalidToken(err error) *apperror.AppError {
	switch {
	case errors.Is(err, token.ErrExpired):
		return apperror.NewInvalidToken("token expired")
	case errors.Is(err, token.ErrWrongType):
		return apperror.NewInvalidToken("wrong token type")
	default:
		return apperror.NewInvalidToken("malformed token")
	}
}
