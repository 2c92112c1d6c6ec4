// Package mfa manages the one-time-code challenge lifecycle: issuing 6-digit
// codes, verifying submissions, counting failed attempts, and blocking an
// account once the attempt threshold is crossed.
//
// Per user there is at most one live challenge. The code and its attempt
// counter are stored under separate keys but share one expiry clock: both
// are (re)armed with the code TTL whenever a new code is issued. The block
// flag is the only lockout mechanism and clears itself on expiry -- there
// is no explicit unblock operation.
package mfa

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
	"github.com/keyxmakerx/gatekeeper/internal/config"
	"github.com/keyxmakerx/gatekeeper/internal/kvstore"
)

// Store key prefixes, all keyed by user ID except none.
const (
	codeKeyPrefix     = "mfa:code:"
	attemptsKeyPrefix = "mfa:attempts:"
	blockKeyPrefix    = "mfa:block:"
)

// codeLength is the number of digits in a challenge code.
const codeLength = 6

// Manager owns the per-user challenge state machine. All state lives in the
// counter store; the manager itself is stateless and safe for concurrent use.
type Manager struct {
	store       kvstore.Store
	codeTTL     time.Duration
	blockTTL    time.Duration
	maxAttempts int
}

// NewManager creates a challenge manager on the given store.
func NewManager(store kvstore.Store, cfg config.MFAConfig) *Manager {
	return &Manager{
		store:       store,
		codeTTL:     cfg.CodeTTL,
		blockTTL:    cfg.BlockTTL,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Issue generates a fresh challenge code for the user, overwriting any
// existing one, and resets the attempt counter to zero with the same TTL
// as the code. Returns the plaintext code for out-of-band delivery.
func (m *Manager) Issue(ctx context.Context, userID string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("generating mfa code: %w", err))
	}

	if err := m.store.SetWithTTL(ctx, codeKeyPrefix+userID, code, m.codeTTL); err != nil {
		return "", apperror.NewInternal(fmt.Errorf("storing mfa code: %w", err))
	}
	if err := m.store.SetWithTTL(ctx, attemptsKeyPrefix+userID, "0", m.codeTTL); err != nil {
		return "", apperror.NewInternal(fmt.Errorf("resetting mfa attempts: %w", err))
	}

	return code, nil
}

// Verify checks a submitted code against the stored challenge and advances
// the state machine:
//
//   - blocked user        -> AccountBlocked with the flag's remaining TTL
//   - no stored code      -> ChallengeExpired
//   - wrong code          -> attempt counter incremented atomically; the
//     attempt that reaches the configured maximum sets the block flag and
//     destroys the challenge, otherwise CodeInvalid with remaining guesses
//   - correct code        -> challenge consumed, nil
//
// The returned attempt number is non-zero only on the wrong-code paths and
// feeds the security signal sink.
func (m *Manager) Verify(ctx context.Context, userID, submitted string) (int, error) {
	blocked, err := m.IsBlocked(ctx, userID)
	if err != nil {
		return 0, apperror.NewInternal(err)
	}
	if blocked {
		ttl, err := m.BlockTTL(ctx, userID)
		if err != nil {
			return 0, apperror.NewInternal(err)
		}
		return 0, apperror.NewAccountBlocked(ttl)
	}

	stored, ok, err := m.store.Get(ctx, codeKeyPrefix+userID)
	if err != nil {
		return 0, apperror.NewInternal(fmt.Errorf("reading mfa code: %w", err))
	}
	if !ok {
		return 0, apperror.NewChallengeExpired()
	}

	if stored != submitted {
		return m.handleFailedAttempt(ctx, userID)
	}

	if err := m.DeleteChallenge(ctx, userID); err != nil {
		return 0, apperror.NewInternal(err)
	}
	return 0, nil
}

// handleFailedAttempt increments the counter atomically and either blocks
// the user (count reached the maximum) or reports the remaining guesses.
func (m *Manager) handleFailedAttempt(ctx context.Context, userID string) (int, error) {
	attempts, err := m.IncrementAttempts(ctx, userID)
	if err != nil {
		return 0, apperror.NewInternal(err)
	}

	if attempts >= m.maxAttempts {
		if err := m.Block(ctx, userID); err != nil {
			return attempts, apperror.NewInternal(err)
		}
		ttl, err := m.BlockTTL(ctx, userID)
		if err != nil {
			return attempts, apperror.NewInternal(err)
		}
		return attempts, apperror.NewAccountBlocked(ttl)
	}

	return attempts, apperror.NewCodeInvalid(m.maxAttempts - attempts)
}

// Code returns the stored challenge code for the user, if any.
func (m *Manager) Code(ctx context.Context, userID string) (string, bool, error) {
	return m.store.Get(ctx, codeKeyPrefix+userID)
}

// DeleteChallenge removes the stored code and its attempt counter.
func (m *Manager) DeleteChallenge(ctx context.Context, userID string) error {
	if err := m.store.Delete(ctx, codeKeyPrefix+userID); err != nil {
		return fmt.Errorf("deleting mfa code: %w", err)
	}
	if err := m.store.Delete(ctx, attemptsKeyPrefix+userID); err != nil {
		return fmt.Errorf("deleting mfa attempts: %w", err)
	}
	return nil
}

// IncrementAttempts atomically bumps the user's failure counter and returns
// the new count. Also used by the security signal sink for login failures,
// which share this counter.
func (m *Manager) IncrementAttempts(ctx context.Context, userID string) (int, error) {
	n, err := m.store.Increment(ctx, attemptsKeyPrefix+userID)
	if err != nil {
		return 0, fmt.Errorf("incrementing mfa attempts: %w", err)
	}
	return int(n), nil
}

// Attempts returns the current failure count for the user.
func (m *Manager) Attempts(ctx context.Context, userID string) (int, error) {
	val, ok, err := m.store.Get(ctx, attemptsKeyPrefix+userID)
	if err != nil {
		return 0, fmt.Errorf("reading mfa attempts: %w", err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("parsing mfa attempts %q: %w", val, err)
	}
	return n, nil
}

// Block sets the block flag with the configured lockout TTL and destroys
// any live challenge so a stale code cannot outlive the block.
func (m *Manager) Block(ctx context.Context, userID string) error {
	if err := m.store.SetWithTTL(ctx, blockKeyPrefix+userID, "blocked", m.blockTTL); err != nil {
		return fmt.Errorf("setting block flag: %w", err)
	}
	return m.DeleteChallenge(ctx, userID)
}

// IsBlocked reports whether the user's block flag is live.
func (m *Manager) IsBlocked(ctx context.Context, userID string) (bool, error) {
	return m.store.Exists(ctx, blockKeyPrefix+userID)
}

// BlockTTL returns the remaining lockout time in seconds, zero if not blocked.
func (m *Manager) BlockTTL(ctx context.Context, userID string) (int64, error) {
	ttl, err := m.store.RemainingTTL(ctx, blockKeyPrefix+userID)
	if err != nil {
		return 0, err
	}
	return int64(ttl.Seconds()), nil
}

// MaxAttempts returns the configured attempt threshold.
func (m *Manager) MaxAttempts() int {
	return m.maxAttempts
}

// generateCode draws each of the 6 digits independently from a
// cryptographically strong source. Drawing per digit keeps every digit
// uniform on 0-9 and lets leading zeros appear naturally.
func generateCode() (string, error) {
	var b strings.Builder
	for i := 0; i < codeLength; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteString(d.String())
	}
	return b.String(), nil
}
