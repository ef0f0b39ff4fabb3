package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gopan-drive/config"
	"gopan-drive/internal/logger"
)

func init() {
	logger.Replace(zap.NewNop())
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := &config.JWTConfig{Secret: "secret", Expiration: "1h"}

	token, err := GenerateToken("u1", "alice", cfg)
	require.NoError(t, err)

	claims, err := ValidateToken(token, cfg)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	_, err = ValidateToken(token, &config.JWTConfig{Secret: "other"})
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ValidateToken("garbage", cfg)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	cfg := &config.JWTConfig{Secret: "secret", Expiration: "-1m"}
	token, err := GenerateToken("u1", "alice", cfg)
	require.NoError(t, err)

	_, err = ValidateToken(token, cfg)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, CheckPassword("hunter22", hash))
	assert.False(t, CheckPassword("hunter23", hash))
}

func TestServiceRegisterLogin(t *testing.T) {
	svc := NewService(&config.JWTConfig{Secret: "secret"})

	sess, err := svc.Register("alice", "password1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.DisplayName)
	assert.NotEmpty(t, sess.Token)

	_, err = svc.Register("alice", "password2", "")
	assert.ErrorIs(t, err, ErrUserExists)
	_, err = svc.Register("al", "password2", "")
	assert.ErrorIs(t, err, ErrWeakCredentials)
	_, err = svc.Register("bobby", "123", "")
	assert.ErrorIs(t, err, ErrWeakCredentials)

	login, err := svc.Login("alice", "password1")
	require.NoError(t, err)
	claims, err := svc.Validate(login.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, sess.UserID, claims.UserID)

	_, err = svc.Login("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login("nobody", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	u, err := svc.User("alice")
	require.NoError(t, err)
	assert.False(t, u.LastLoginAt.IsZero())
	_, err = svc.User("nobody")
	assert.ErrorIs(t, err, ErrUnknownUser)
}
