package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the bearer token claims the service understands. Tokens are issued elsewhere.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens and turns them into sessions.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates tokenString.
func (v *Verifier) Verify(tokenString string) (Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Session{}, err
	}
	if !token.Valid {
		return Session{}, errors.New("invalid token")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Session{}, fmt.Errorf("invalid user_id claim: %w", err)
	}
	role := Role(claims.Role)
	if !IsValidRole(role) {
		return Session{}, fmt.Errorf("invalid role claim: %q", claims.Role)
	}
	return NewSession(userID, role), nil
}
