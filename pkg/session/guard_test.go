package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/streamit/pkg/tokenstore"
	"github.com/stretchr/testify/require"
)

func TestGuard(t *testing.T) {
	t.Parallel()

	protected := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("dashboard"))
	})

	serve := func(sess *Session, opts ...Option) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		Guard(sess, opts...)(protected).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		return rec
	}

	t.Run("initializing shows waiting page", func(t *testing.T) {
		t.Parallel()

		sess := New(tokenstore.NewMemory(), WithLogger(discardLogger()))
		rec := serve(sess)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "1", rec.Header().Get("Retry-After"))
		require.Equal(t, "Loading...", rec.Body.String())
		require.Empty(t, rec.Header().Get("Location"))
	})

	t.Run("unauthenticated redirects to login", func(t *testing.T) {
		t.Parallel()

		sess := New(tokenstore.NewMemory(), WithLogger(discardLogger()))
		require.NoError(t, sess.Bootstrap(t.Context()))
		rec := serve(sess)

		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("custom login path", func(t *testing.T) {
		t.Parallel()

		sess := New(tokenstore.NewMemory(), WithLogger(discardLogger()))
		require.NoError(t, sess.Bootstrap(t.Context()))
		rec := serve(sess, WithLoginPath("/signin"))

		require.Equal(t, "/signin", rec.Header().Get("Location"))
	})

	t.Run("expired token redirects", func(t *testing.T) {
		t.Parallel()

		sess := New(tokenstore.NewMemory(), WithLogger(discardLogger()))
		require.NoError(t, sess.Bootstrap(t.Context()))
		require.NoError(t, sess.SetToken(t.Context(), mint(t, "alice", time.Now().Add(-time.Minute))))
		rec := serve(sess)

		require.Equal(t, http.StatusFound, rec.Code)
	})

	t.Run("authenticated renders view", func(t *testing.T) {
		t.Parallel()

		store := tokenstore.NewMemory()
		require.NoError(t, store.Write(t.Context(), mint(t, "alice", time.Now().Add(time.Hour))))
		sess := New(store, WithLogger(discardLogger()))
		require.NoError(t, sess.Bootstrap(t.Context()))
		rec := serve(sess)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "dashboard", rec.Body.String())
	})
}
