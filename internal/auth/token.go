package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer is the iss claim of every session token.
const tokenIssuer = "carlog"

// MinSecretLen is the shortest accepted signing secret, in bytes.
const MinSecretLen = 16

var (
	// ErrInvalidToken is returned for tokens that are malformed, forged or expired.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrWeakSecret is returned when the signing secret is too short.
	ErrWeakSecret = errors.New("session secret too short")
)

// TokenSigner signs and verifies session cookie values.
// The token carries only the session ID; all state lives server-side.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenSigner creates a TokenSigner using HS256 with the given secret.
func NewTokenSigner(secret string, ttl time.Duration) (*TokenSigner, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrWeakSecret
	}
	return &TokenSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Sign returns a signed token for sessionID.
func (s *TokenSigner) Sign(sessionID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns the session ID it carries.
func (s *TokenSigner) Parse(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}

// TTL returns the lifetime of issued tokens.
func (s *TokenSigner) TTL() time.Duration {
	return s.ttl
}
