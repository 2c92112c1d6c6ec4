package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyxmakerx/gatekeeper/internal/config"
)

func newTestCodec() *Codec {
	return NewCodec(config.JWTConfig{
		Secret:     "test-secret-key-that-is-long-enough!",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 168 * time.Hour,
		MFATTL:     5 * time.Minute,
	})
}

// newExpiredCodec issues tokens that are already past their expiry.
func newExpiredCodec() *Codec {
	return NewCodec(config.JWTConfig{
		Secret:     "test-secret-key-that-is-long-enough!",
		AccessTTL:  -time.Minute,
		RefreshTTL: -time.Minute,
		MFATTL:     -time.Minute,
	})
}

func TestGeneratePair_RoundTrip(t *testing.T) {
	c := newTestCodec()

	pair, err := c.GeneratePair("user-123")
	require.NoError(t, err)
	assert.Equal(t, int64(900), pair.AccessExpiresIn)
	assert.Equal(t, int64(604800), pair.RefreshExpiresIn)

	// Every issued token validates back to the subject and type it was
	// issued with.
	userID, err := c.ValidateAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)

	userID, err = c.ValidateRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestGeneratePair_DistinctIDs(t *testing.T) {
	c := newTestCodec()

	pair, err := c.GeneratePair("user-123")
	require.NoError(t, err)

	accessID, err := c.ExtractID(pair.AccessToken)
	require.NoError(t, err)
	refreshID, err := c.ExtractID(pair.RefreshToken)
	require.NoError(t, err)

	assert.NotEmpty(t, accessID)
	assert.NotEmpty(t, refreshID)
	assert.NotEqual(t, accessID, refreshID)
}

func TestGenerateMFAToken_RoundTrip(t *testing.T) {
	c := newTestCodec()

	tok, expiresIn, err := c.GenerateMFAToken("user-123")
	require.NoError(t, err)
	assert.Equal(t, int64(300), expiresIn)

	userID, err := c.ValidateMFA(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestValidate_WrongType(t *testing.T) {
	c := newTestCodec()

	pair, err := c.GeneratePair("user-123")
	require.NoError(t, err)

	// An access token never passes refresh or MFA validation.
	_, err = c.ValidateRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongType)

	_, err = c.ValidateMFA(pair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongType)

	_, err = c.ValidateAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestValidate_WrongKey(t *testing.T) {
	c := newTestCodec()
	other := NewCodec(config.JWTConfig{
		Secret:     "a-completely-different-signing-key!!",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 168 * time.Hour,
		MFATTL:     5 * time.Minute,
	})

	pair, err := c.GeneratePair("user-123")
	require.NoError(t, err)

	// Tokens signed with a different key always fail verification.
	_, err = other.ValidateAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = other.ExtractID(pair.AccessToken)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestValidate_Expired(t *testing.T) {
	c := newExpiredCodec()

	pair, err := c.GeneratePair("user-123")
	require.NoError(t, err)

	_, err = c.ValidateAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestValidate_Garbage(t *testing.T) {
	c := newTestCodec()

	_, err := c.ValidateAccess("not-a-token")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = c.ValidateAccess("")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestExtractID_ExpiredToken(t *testing.T) {
	c := newExpiredCodec()

	pair, err := c.GeneratePair("user-123")
	require.NoError(t, err)

	// Logout must still read the jti of an expired access token.
	id, err := c.ExtractID(pair.AccessToken)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestExtractRefreshID(t *testing.T) {
	c := newTestCodec()

	pair, err := c.GeneratePair("user-123")
	require.NoError(t, err)

	id, err := c.ExtractRefreshID(pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	// Fails closed when handed an access token.
	_, err = c.ExtractRefreshID(pair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestRemainingTTL(t *testing.T) {
	c := newTestCodec()

	pair, err := c.GeneratePair("user-123")
	require.NoError(t, err)

	ttl, err := c.RemainingTTL(pair.AccessToken)
	require.NoError(t, err)
	assert.Greater(t, ttl, 14*time.Minute)
	assert.LessOrEqual(t, ttl, 15*time.Minute)
}

func TestRemainingTTL_ExpiredIsZeroNotError(t *testing.T) {
	c := newExpiredCodec()

	pair, err := c.GeneratePair("user-123")
	require.NoError(t, err)

	ttl, err := c.RemainingTTL(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), ttl)
}

func TestRemainingTTL_Malformed(t *testing.T) {
	c := newTestCodec()

	_, err := c.RemainingTTL("garbage")
	assert.ErrorIs(t, err, ErrMalformed)
}
