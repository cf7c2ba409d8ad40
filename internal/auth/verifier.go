package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
)

// Verifier resolves a bearer credential to a user id. It is the seam to the
// external identity provider; implementations must treat the token as opaque
// input and never trust client-supplied identity beyond it.
type Verifier interface {
	Verify(ctx context.Context, token string) (int, error)
}

// JWTVerifier validates HS256-signed session tokens issued by the identity
// provider, sharing its signing secret.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier constructs a JWTVerifier.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify checks signature and expiry and returns the user id from the subject
// claim.
func (v *JWTVerifier) Verify(_ context.Context, token string) (int, error) {
	if token == "" {
		return 0, ErrMissingCredential
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidCredential
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return 0, ErrInvalidCredential
	}
	userID, err := strconv.Atoi(subject)
	if err != nil || userID <= 0 {
		return 0, ErrInvalidCredential
	}
	return userID, nil
}
