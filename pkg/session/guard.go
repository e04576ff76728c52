package session

import (
	"io"
	"net/http"

	"github.com/aussiebroadwan/streamit/pkg/httpx"
)

// Guard gates protected views on the session state. While the session is
// initializing it serves a neutral waiting page; unauthenticated requests
// are redirected to the login path.
func Guard(sess *Session, opts ...Option) httpx.HandlerMiddleware {
	cfg := newConfig(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := sess.Snapshot()

			switch {
			case snap.Initializing:
				httpx.NoCache(w)
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, "Loading...")
			case !snap.Authenticated:
				http.Redirect(w, r, cfg.loginPath, http.StatusFound)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
