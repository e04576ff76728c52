package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/streamit/pkg/httpx"
	"github.com/aussiebroadwan/streamit/pkg/idx"
	"github.com/stretchr/testify/require"
)

func recordingTransport(seen *[]*http.Request) http.RoundTripper {
	return httpx.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		*seen = append(*seen, req)
		rec := httptest.NewRecorder()
		rec.WriteHeader(http.StatusNoContent)
		return rec.Result(), nil
	})
}

func tag(name string, order *[]string) httpx.Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return httpx.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			*order = append(*order, name)
			return next.RoundTrip(req)
		})
	}
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	var seen []*http.Request
	rt := httpx.Chain(recordingTransport(&seen), tag("a", &order), nil, tag("b", &order), tag("c", &order))

	resp, err := rt.RoundTrip(httptest.NewRequest(http.MethodGet, "http://api.test/me", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, []string{"a", "b", "c"}, order)
	require.Len(t, seen, 1)
}

func TestChainNilBase(t *testing.T) {
	t.Parallel()

	require.Equal(t, http.DefaultTransport, httpx.Chain(nil))
}

func TestHasHeader(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	require.False(t, httpx.HasHeader(h, "Authorization"))

	h.Set("Authorization", "Bearer abc")
	require.True(t, httpx.HasHeader(h, "authorization"))

	raw := http.Header{"authorization": {"Bearer abc"}}
	require.True(t, httpx.HasHeader(raw, "Authorization"))

	empty := http.Header{"Authorization": {""}}
	require.False(t, httpx.HasHeader(empty, "Authorization"))
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	t.Run("stamps missing id without touching caller request", func(t *testing.T) {
		t.Parallel()

		var seen []*http.Request
		rt := httpx.Chain(recordingTransport(&seen), httpx.RequestID())

		req := httptest.NewRequest(http.MethodGet, "http://api.test/me", nil)
		_, err := rt.RoundTrip(req)
		require.NoError(t, err)

		require.Empty(t, req.Header.Get(httpx.HeaderRequestID))
		require.Len(t, seen, 1)
		_, err = idx.Parse(seen[0].Header.Get(httpx.HeaderRequestID))
		require.NoError(t, err)
	})

	t.Run("keeps caller supplied id", func(t *testing.T) {
		t.Parallel()

		var seen []*http.Request
		rt := httpx.Chain(recordingTransport(&seen), httpx.RequestID())

		req := httptest.NewRequest(http.MethodGet, "http://api.test/me", nil)
		req.Header.Set(httpx.HeaderRequestID, "fixed")
		_, err := rt.RoundTrip(req)
		require.NoError(t, err)
		require.Equal(t, "fixed", seen[0].Header.Get(httpx.HeaderRequestID))
	})
}

func TestChainHandlerOrder(t *testing.T) {
	t.Parallel()

	var order []string
	wrap := func(name string) httpx.HandlerMiddleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.ChainHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), wrap("a"), nil, wrap("b"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "handler"}, order)
}
