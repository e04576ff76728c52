package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrExpired    = errors.New("jwtx: token expired")
	ErrNoKey      = errors.New("jwtx: signing key is empty")
)

// HS256 signs and verifies tokens with a shared secret. It backs the
// development API and tests, production tokens are minted by the backend.
type HS256 struct {
	Key []byte

	// Leeway allows small clock skew when validating exp.
	Leeway time.Duration
}

// Sign serialises claims into a compact JWS.
func (h *HS256) Sign(c Claims) (string, error) {
	if len(h.Key) == 0 {
		return "", ErrNoKey
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(h.Key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the claims.
func (h *HS256) Verify(token string) (Claims, error) {
	if len(h.Key) == 0 {
		return Claims{}, ErrNoKey
	}

	var c Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(h.Leeway),
	)
	_, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return h.Key, nil
	})
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrInvalidSig
	default:
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
