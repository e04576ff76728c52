package httpx

import "net/http"

// HandlerMiddleware wraps an inbound http.Handler.
type HandlerMiddleware func(http.Handler) http.Handler

// ChainHandler applies middlewares to h. The first middleware is the
// outermost, matching Chain.
func ChainHandler(h http.Handler, mws ...HandlerMiddleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		h = mws[i](h)
	}
	return h
}
