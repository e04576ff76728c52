package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RefreshFunc performs the refresh exchange and returns the new bearer
// token.
type RefreshFunc func(ctx context.Context) (string, error)

// RefreshError reports a failed refresh exchange. Every request that waited
// on the failed cycle receives the same error.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("session: token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Coordinator de-duplicates refresh exchanges. At most one refresh is in
// flight at a time; callers arriving while it runs wait for its result and
// are released in arrival order.
type Coordinator struct {
	refresh     RefreshFunc
	sess        *Session
	refreshPath string
	timeout     time.Duration
	log         *slog.Logger
	metrics     *Metrics

	mu       sync.Mutex
	inFlight bool
	waiters  []*waiter
}

type waiter struct {
	ch chan refreshResult
}

type refreshResult struct {
	token string
	err   error
}

// NewCoordinator returns a coordinator that renews sess through refresh.
func NewCoordinator(refresh RefreshFunc, sess *Session, opts ...Option) *Coordinator {
	cfg := newConfig(opts)

	return &Coordinator{
		refresh:     refresh,
		sess:        sess,
		refreshPath: cfg.refreshPath,
		timeout:     cfg.refreshTimeout,
		log:         cfg.logger,
		metrics:     cfg.metrics,
	}
}

// Refresh returns a fresh token. If a refresh is already running the call
// joins it instead of starting another one. On success the session holds
// the new token before any caller is released; on failure the session has
// been expired. If the session is cleared while the exchange runs, the new
// token is dropped and callers get a RefreshError wrapping ErrCleared.
//
// A caller whose ctx ends while waiting returns ctx.Err(); the exchange
// itself is not tied to any one caller and always runs to completion.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.inFlight {
		w := &waiter{ch: make(chan refreshResult, 1)}
		c.waiters = append(c.waiters, w)
		position := len(c.waiters)
		c.mu.Unlock()

		c.metrics.queued()
		c.log.Debug("waiting for in-flight refresh", "position", position)

		select {
		case res := <-w.ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.inFlight = true
	c.mu.Unlock()

	return c.lead(ctx)
}

// InFlight reports whether a refresh exchange is running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Coordinator) lead(ctx context.Context) (string, error) {
	start := time.Now()

	rctx := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, c.timeout)
		defer cancel()
	}

	epoch := c.sess.epoch.Load()

	c.log.Debug("refreshing token")
	token, err := c.refresh(rctx)
	if err == nil && token == "" {
		err = ErrNoToken
	}

	if err != nil {
		err = &RefreshError{Err: err}
		c.log.Warn("token refresh failed", "err", err)
		if _, xerr := c.sess.Expire(rctx); xerr != nil {
			c.log.Error("failed to expire session", "err", xerr)
		}
	} else {
		superseded, serr := c.sess.setTokenSince(rctx, token, epoch)
		if serr != nil {
			// The session already holds the token in memory
			c.log.Error("failed to persist refreshed token", "err", serr)
		}
		if superseded {
			// Logged out or logged in again while the exchange ran
			token = c.sess.Token()
			if token == "" {
				err = &RefreshError{Err: ErrCleared}
			}
			c.log.Info("discarding refreshed token, session changed during refresh", "cleared", token == "")
		}
	}

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.inFlight = false
	c.mu.Unlock()

	for i, w := range waiters {
		w.ch <- refreshResult{token: token, err: err}
		c.log.Debug("waiter released", "position", i+1, "ok", err == nil)
	}

	c.metrics.refreshed(err, time.Since(start))
	if err != nil {
		return "", err
	}

	c.log.Info("token refreshed", "waiters", len(waiters))
	return token, nil
}
