package slogx

import (
	"log/slog"
	"net/http"
	"time"
)

// Transport logs every outbound request after it completes. The request's
// context logger is used when present so callers can attach fields.
//
// The returned function has the shape of a client middleware
// (func(http.RoundTripper) http.RoundTripper).
func Transport(base *slog.Logger) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripper{base: base, next: next}
	}
}

type roundTripper struct {
	base *slog.Logger
	next http.RoundTripper
}

func (t roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	logger := t.base
	if l, ok := req.Context().Value(ctxKey{}).(*slog.Logger); ok {
		logger = l
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(
		"req_id", req.Header.Get("X-Request-ID"),
		"method", req.Method,
		"path", req.URL.Path,
	)

	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("http_client_request", "err", err, "duration_ms", duration)
		return nil, err
	}

	logger.Debug("http_client_request",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
