package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/streamit/pkg/httpx"
	"github.com/aussiebroadwan/streamit/pkg/slogx"
	"github.com/aussiebroadwan/streamit/pkg/tokenstore"
)

type retriedKey struct{}

func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

// IsRetried reports whether ctx belongs to a request that has already been
// replayed after a refresh.
func IsRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// InjectAuth sets "Authorization: Bearer <token>" from store on requests
// that do not already carry an Authorization header.
func InjectAuth(store tokenstore.Store) httpx.Middleware {
	return httpx.OnRequest(func(req *http.Request) *http.Request {
		if httpx.HasHeader(req.Header, "Authorization") {
			return req
		}

		ctx := req.Context()
		token, err := store.Read(ctx)
		if err != nil {
			if !errors.Is(err, tokenstore.ErrNotFound) {
				slogx.FromContext(ctx).Warn("failed to read token, sending unauthenticated", "err", err)
			}
			return req
		}

		clone := req.Clone(ctx)
		clone.Header.Set("Authorization", "Bearer "+token)
		return clone
	})
}

// Transport recovers requests rejected with 401. It belongs after
// InjectAuth in the pipeline; replays go straight to the wrapped transport
// carrying the new token.
func (c *Coordinator) Transport() httpx.Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return &recoverTransport{c: c, next: next}
	}
}

type recoverTransport struct {
	c    *Coordinator
	next http.RoundTripper
}

func (t *recoverTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	ctx := req.Context()
	log := slogx.FromContext(ctx).With("method", req.Method, "path", req.URL.Path)

	if t.c.isRefreshRequest(req) {
		// The coordinator redirects once the exchange has failed
		log.Warn("refresh exchange rejected")
		if cerr := t.c.sess.Clear(context.WithoutCancel(ctx)); cerr != nil {
			log.Error("failed to clear session", "err", cerr)
		}
		return resp, nil
	}

	if IsRetried(ctx) {
		log.Debug("replayed request rejected again")
		return resp, nil
	}

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		log.Warn("cannot replay request without GetBody")
		return resp, nil
	}

	token, rerr := t.c.Refresh(ctx)
	drainAndClose(resp)
	if rerr != nil {
		return nil, rerr
	}

	replay := req.Clone(markRetried(ctx))
	if req.GetBody != nil {
		body, berr := req.GetBody()
		if berr != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", berr)
		}
		replay.Body = body
	}
	replay.Header.Set("Authorization", "Bearer "+token)

	t.c.metrics.replayed()
	log.Debug("replaying request with refreshed token")
	return t.RoundTrip(replay)
}

func (c *Coordinator) isRefreshRequest(req *http.Request) bool {
	return strings.HasSuffix(strings.TrimSuffix(req.URL.Path, "/"), c.refreshPath)
}

// drainAndClose lets the connection be reused.
func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
