package httpx

import (
	"net/http"

	"github.com/aussiebroadwan/streamit/pkg/idx"
)

// HeaderRequestID is the header carrying the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// RequestID stamps every outbound request with an X-Request-ID unless the
// caller already set one. Replays keep the id of the original attempt.
func RequestID() Middleware {
	return OnRequest(func(req *http.Request) *http.Request {
		if req.Header.Get(HeaderRequestID) != "" {
			return req
		}
		clone := req.Clone(req.Context())
		clone.Header.Set(HeaderRequestID, idx.New().String())
		return clone
	})
}
