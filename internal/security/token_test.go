package security

import (
	"testing"
	"time"

	"estate-market-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager(secret, time.Hour, 24*time.Hour)

	t.Run("Access", func(t *testing.T) {
		tok, err := tm.GenerateAccessToken("u-1", domain.UserRoleSeller)
		require.NoError(t, err)

		claims, err := tm.ValidateToken(tok)
		require.NoError(t, err)
		assert.Equal(t, "u-1", claims.UserID)
		assert.Equal(t, TokenTypeAccess, claims.Type)
		assert.Equal(t, domain.Principal{UserID: "u-1", Role: domain.UserRoleSeller}, claims.Principal())
		assert.NotEmpty(t, claims.ID)
		assert.InDelta(t, time.Hour.Seconds(), claims.RemainingTTL().Seconds(), 5)
	})

	t.Run("Refresh tokens get distinct ids", func(t *testing.T) {
		a, err := tm.GenerateRefreshToken("u-1", domain.UserRoleBuyer)
		require.NoError(t, err)
		b, err := tm.GenerateRefreshToken("u-1", domain.UserRoleBuyer)
		require.NoError(t, err)

		ca, err := tm.ValidateToken(a)
		require.NoError(t, err)
		cb, err := tm.ValidateToken(b)
		require.NoError(t, err)
		assert.Equal(t, TokenTypeRefresh, ca.Type)
		assert.NotEqual(t, ca.ID, cb.ID)
	})
}

func TestTokenManager_ValidateToken(t *testing.T) {
	tm := NewTokenManager(secret, time.Hour, time.Hour)

	t.Run("Expired", func(t *testing.T) {
		expired := NewTokenManager(secret, -time.Minute, time.Hour)
		tok, err := expired.GenerateAccessToken("u-1", domain.UserRoleBuyer)
		require.NoError(t, err)

		_, err = tm.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		other := NewTokenManager("ffffffffffffffffffffffffffffffff", time.Hour, time.Hour)
		tok, err := other.GenerateAccessToken("u-1", domain.UserRoleBuyer)
		require.NoError(t, err)

		_, err = tm.ValidateToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Unsigned", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, UserClaims{UserID: "u-1", Type: TokenTypeAccess})
		s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = tm.ValidateToken(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := tm.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
