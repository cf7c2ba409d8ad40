package auth

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, userID int, expiry time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyValidToken(t *testing.T) {
	verifier := NewJWTVerifier("secret")

	userID, err := verifier.Verify(context.Background(), signToken(t, "secret", 42, time.Hour))
	require.NoError(t, err)
	require.Equal(t, 42, userID)
}

func TestVerifyEmptyToken(t *testing.T) {
	verifier := NewJWTVerifier("secret")

	_, err := verifier.Verify(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingCredential)
}

func TestVerifyExpiredToken(t *testing.T) {
	verifier := NewJWTVerifier("secret")

	_, err := verifier.Verify(context.Background(), signToken(t, "secret", 42, -time.Minute))
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestVerifyWrongSecret(t *testing.T) {
	verifier := NewJWTVerifier("secret")

	_, err := verifier.Verify(context.Background(), signToken(t, "other", 42, time.Hour))
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestVerifyNonNumericSubject(t *testing.T) {
	verifier := NewJWTVerifier("secret")

	claims := jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidCredential)
}
