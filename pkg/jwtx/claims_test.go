package jwtx_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/aussiebroadwan/streamit/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func mint(t *testing.T, c jwtx.Claims) string {
	t.Helper()
	h := &jwtx.HS256{Key: testKey}
	tok, err := h.Sign(c)
	require.NoError(t, err)
	return tok
}

func TestDecode(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	tok := mint(t, jwtx.NewClaims("alice@example.com", "USER", "Alice", "42", time.Minute, now))

	c, ok := jwtx.Decode(tok)
	require.True(t, ok)
	require.Equal(t, "alice@example.com", c.Subject)
	require.Equal(t, "USER", c.Role)
	require.Equal(t, "Alice", c.Name)
	require.Equal(t, jwtx.UserID("42"), c.UserID)
	require.Equal(t, now.Add(time.Minute).Unix(), c.Expiry().Unix())
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":`))
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

	cases := map[string]string{
		"empty":          "",
		"one segment":    "abc",
		"two segments":   "abc.def",
		"bad base64":     "%%%.%%%.%%%",
		"bad json":       header + "." + payload + ".sig",
		"wrong exp type": header + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"exp":"soon"}`)) + ".sig",
	}

	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			require.NotPanics(t, func() {
				_, ok := jwtx.Decode(tok)
				require.False(t, ok)
			})
		})
	}
}

func TestIsExpired(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)

	t.Run("future exp", func(t *testing.T) {
		tok := mint(t, jwtx.NewClaims("u", "", "", "", time.Minute, now))
		require.False(t, jwtx.IsExpired(tok, now))
	})

	t.Run("exp equals now", func(t *testing.T) {
		tok := mint(t, jwtx.NewClaims("u", "", "", "", 0, now))
		require.True(t, jwtx.IsExpired(tok, now))
	})

	t.Run("past exp", func(t *testing.T) {
		tok := mint(t, jwtx.NewClaims("u", "", "", "", -time.Minute, now))
		require.True(t, jwtx.IsExpired(tok, now))
	})

	t.Run("missing exp", func(t *testing.T) {
		tok := mint(t, jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}})
		require.True(t, jwtx.IsExpired(tok, now))
	})

	t.Run("undecodable", func(t *testing.T) {
		require.True(t, jwtx.IsExpired("garbage", now))
	})
}

func TestUserIDJSON(t *testing.T) {
	t.Parallel()

	var c struct {
		ID jwtx.UserID `json:"userId"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"userId": 7}`), &c))
	require.Equal(t, jwtx.UserID("7"), c.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"userId": "u-7"}`), &c))
	require.Equal(t, jwtx.UserID("u-7"), c.ID)

	out, err := json.Marshal(jwtx.UserID("7"))
	require.NoError(t, err)
	require.JSONEq(t, `7`, string(out))

	out, err = json.Marshal(jwtx.UserID("u-7"))
	require.NoError(t, err)
	require.JSONEq(t, `"u-7"`, string(out))
}

func TestHS256Verify(t *testing.T) {
	t.Parallel()

	now := time.Now()
	h := &jwtx.HS256{Key: testKey}

	t.Run("valid", func(t *testing.T) {
		tok := mint(t, jwtx.NewClaims("u", "USER", "U", "1", time.Minute, now))
		c, err := h.Verify(tok)
		require.NoError(t, err)
		require.Equal(t, "u", c.Subject)
	})

	t.Run("expired", func(t *testing.T) {
		tok := mint(t, jwtx.NewClaims("u", "", "", "", -time.Minute, now))
		_, err := h.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := &jwtx.HS256{Key: []byte("another-key-another-key-another!")}
		tok, err := other.Sign(jwtx.NewClaims("u", "", "", "", time.Minute, now))
		require.NoError(t, err)

		_, err = h.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := h.Verify("nope")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("no key", func(t *testing.T) {
		_, err := (&jwtx.HS256{}).Sign(jwtx.Claims{})
		require.ErrorIs(t, err, jwtx.ErrNoKey)
	})
}
