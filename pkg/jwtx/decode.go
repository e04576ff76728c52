package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// unverified parses payloads without checking signatures. The client has no
// key material, the server is the only party that verifies.
var unverified = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode reads the claims of a bearer token without verifying it.
// Any structural failure (segments, encoding, JSON) reports false.
func Decode(token string) (Claims, bool) {
	if token == "" {
		return Claims{}, false
	}

	var c Claims
	if _, _, err := unverified.ParseUnverified(token, &c); err != nil {
		return Claims{}, false
	}

	return c, true
}

// IsExpired reports whether token can no longer be used at now. Undecodable
// tokens and tokens without exp count as expired.
func IsExpired(token string, now time.Time) bool {
	c, ok := Decode(token)
	if !ok {
		return true
	}
	return c.ExpiredAt(now)
}
