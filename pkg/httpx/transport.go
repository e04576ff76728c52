package httpx

import (
	"net/http"
	"strings"
)

// Middleware wraps an outbound http.RoundTripper. Client pipelines are built
// from an ordered list of these at construction time.
type Middleware func(http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain composes middlewares around base. The first middleware is the
// outermost: it sees the request first and the response last.
//
//	Chain(base, a, b, c) == a(b(c(base)))
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	rt := base
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		rt = mws[i](rt)
	}
	return rt
}

// OnRequest turns a request transform into a Middleware. The transform must
// return a clone when it changes anything, RoundTrippers may not mutate the
// caller's request.
func OnRequest(fn func(*http.Request) *http.Request) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return next.RoundTrip(fn(req))
		})
	}
}

// HasHeader reports whether h carries key, compared case-insensitively
// against every stored key so non-canonical entries are found too.
func HasHeader(h http.Header, key string) bool {
	if h.Get(key) != "" {
		return true
	}
	for k, v := range h {
		if len(v) > 0 && v[0] != "" && strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}
