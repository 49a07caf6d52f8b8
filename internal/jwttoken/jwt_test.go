package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
)

func TestValidateToken(t *testing.T) {
	svc := NewService("test-signing-key", "verdant", "verdant-api")
	userID := id.NewUserID()

	t.Run("round-trips the actor identity", func(t *testing.T) {
		token, err := svc.GenerateAccessToken(userID, "Avery Chen", time.Hour)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)
		assert.Equal(t, "Avery Chen", claims.UserName)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		token, err := svc.GenerateAccessToken(userID, "Avery Chen", -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("rejects a token signed with a different key", func(t *testing.T) {
		other := NewService("other-key", "verdant", "verdant-api")
		token, err := other.GenerateAccessToken(userID, "Avery Chen", time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects a token from a different issuer", func(t *testing.T) {
		other := NewService("test-signing-key", "someone-else", "verdant-api")
		token, err := other.GenerateAccessToken(userID, "Avery Chen", time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects a token minted for a different audience", func(t *testing.T) {
		other := NewService("test-signing-key", "verdant", "some-other-api")
		token, err := other.GenerateAccessToken(userID, "Avery Chen", time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-jwt")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
