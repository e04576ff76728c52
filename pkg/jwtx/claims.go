package jwtx

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL mirrors the lifetime the StreamIt backend issues.
// Only the dev API and tests mint tokens, real ones come from the server.
const DefaultAccessTokenTTL = 15 * time.Minute

// Claims are the access-token claims the StreamIt backend puts in its
// bearer tokens. The client only ever reads them, it never trusts them for
// anything beyond scheduling a refresh and showing who is logged in.
type Claims struct {
	jwt.RegisteredClaims

	// Role of the user, e.g. "USER" or "ADMIN"
	Role string `json:"role,omitempty"`

	// Name is the display name for the user
	Name string `json:"name,omitempty"`

	// UserID is the backend's numeric user id. Some deployments send it as
	// a string so both are accepted.
	UserID UserID `json:"userId,omitempty"`
}

// NewClaims builds minimally-correct claims for a user.
func NewClaims(subject, role, name string, userID UserID, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:   role,
		Name:   name,
		UserID: userID,
	}
}

// Expiry returns the exp claim, or the zero time when it is missing.
func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// ExpiredAt reports whether the claims are expired at now. A token without
// an exp claim is treated as expired.
func (c Claims) ExpiredAt(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return !c.ExpiresAt.After(now)
}

// UserID is a user identifier that unmarshals from either a JSON number or
// a JSON string.
type UserID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = UserID(n.String())
	return nil
}

// MarshalJSON emits numeric identifiers as JSON numbers so tokens minted
// locally look like the ones the backend issues.
func (id UserID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil && id[0] != '+' {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// String returns the identifier as a string.
func (id UserID) String() string { return string(id) }
