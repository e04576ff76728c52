package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/streamit/pkg/tokenstore"
	"github.com/stretchr/testify/require"
)

type callResult struct {
	status int
	err    error
}

func get(ctx context.Context, client *http.Client, url string) callResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return callResult{err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return callResult{err: err}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return callResult{status: resp.StatusCode}
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 3, 10} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			t.Parallel()

			now := time.Now()
			t1 := mint(t, "alice", now.Add(time.Minute))
			t2 := mint(t, "alice", now.Add(15*time.Minute))

			store := tokenstore.NewMemory()
			sess := New(store, WithLogger(discardLogger()))
			require.NoError(t, sess.SetToken(t.Context(), t1))

			api := newFakeAPI(t2)
			refresh := &gatedRefresh{gate: make(chan struct{}), token: t2}
			coord := NewCoordinator(refresh.refresh, sess, WithLogger(discardLogger()))
			client := newTestClient(api, store, coord)

			results := make(chan callResult, n)
			for range n {
				go func() { results <- get(t.Context(), client, "http://api.test/data") }()
			}

			require.Eventually(t, func() bool {
				return refresh.calls.Load() == 1 && coord.queued() == n-1
			}, 5*time.Second, time.Millisecond)
			close(refresh.gate)

			for range n {
				res := <-results
				require.NoError(t, res.err)
				require.Equal(t, http.StatusOK, res.status)
			}

			require.EqualValues(t, 1, refresh.calls.Load(), "exactly one refresh on the wire")
			require.False(t, coord.InFlight())

			var stale, fresh int
			for _, authz := range api.seen("/data") {
				switch authz {
				case "Bearer " + t1:
					stale++
				case "Bearer " + t2:
					fresh++
				}
			}
			require.Equal(t, n, stale)
			require.Equal(t, n, fresh, "every request replayed once with the new token")

			stored, err := store.Read(t.Context())
			require.NoError(t, err)
			require.Equal(t, t2, stored)
			require.Equal(t, t2, sess.Token())
		})
	}
}

func TestWaitersReleasedInArrivalOrder(t *testing.T) {
	t.Parallel()

	capture := &captureHandler{}
	logger := slog.New(capture)

	t2 := mint(t, "alice", time.Now().Add(15*time.Minute))
	sess := New(tokenstore.NewMemory(), WithLogger(logger))
	refresh := &gatedRefresh{gate: make(chan struct{}), token: t2}
	coord := NewCoordinator(refresh.refresh, sess, WithLogger(logger))

	type outcome struct {
		token   string
		current string
		err     error
	}
	leader := make(chan outcome, 1)
	go func() {
		tok, err := coord.Refresh(t.Context())
		leader <- outcome{token: tok, err: err}
	}()
	require.Eventually(t, coord.InFlight, 5*time.Second, time.Millisecond)

	waiters := make([]chan outcome, 3)
	for i := range waiters {
		waiters[i] = make(chan outcome, 1)
		go func(ch chan outcome) {
			tok, err := coord.Refresh(t.Context())
			ch <- outcome{token: tok, current: sess.Token(), err: err}
		}(waiters[i])
		require.Eventually(t, func() bool { return coord.queued() == i+1 }, 5*time.Second, time.Millisecond)
	}

	close(refresh.gate)

	res := <-leader
	require.NoError(t, res.err)
	require.Equal(t, t2, res.token)
	for _, ch := range waiters {
		res := <-ch
		require.NoError(t, res.err)
		require.Equal(t, t2, res.token)
		require.Equal(t, t2, res.current, "session is updated before waiters are released")
	}

	require.Equal(t, []int64{1, 2, 3}, capture.intAttrs("waiter released", "position"))
	require.Equal(t, []int64{1, 2, 3}, capture.intAttrs("waiting for in-flight refresh", "position"))
	require.EqualValues(t, 1, refresh.calls.Load())
}

func TestRetriedRequestIsNotRecoveredAgain(t *testing.T) {
	t.Parallel()

	now := time.Now()
	t1 := mint(t, "alice", now.Add(time.Minute))
	t2 := mint(t, "alice", now.Add(15*time.Minute))

	store := tokenstore.NewMemory()
	sess := New(store, WithLogger(discardLogger()))
	require.NoError(t, sess.SetToken(t.Context(), t1))

	api := newFakeAPI(t2)
	api.rejectAll = true
	refresh := &gatedRefresh{token: t2}
	coord := NewCoordinator(refresh.refresh, sess, WithLogger(discardLogger()))
	client := newTestClient(api, store, coord)

	res := get(t.Context(), client, "http://api.test/data")
	require.NoError(t, res.err)
	require.Equal(t, http.StatusUnauthorized, res.status, "second 401 is surfaced to the caller")
	require.EqualValues(t, 1, refresh.calls.Load())
	require.Equal(t, []string{"Bearer " + t1, "Bearer " + t2}, api.seen("/data"))

	// The session itself is still fine, only that request failed
	require.Equal(t, t2, sess.Token())
}

func TestRefreshRejectedExpiresSession(t *testing.T) {
	t.Parallel()

	t1 := mint(t, "alice", time.Now().Add(time.Minute))

	store := &spyStore{Store: tokenstore.NewMemory()}
	loc := NewLocation("/channels")
	redirects := navigations(loc)

	sess := New(store, WithNavigator(loc), WithLogger(discardLogger()))
	require.NoError(t, sess.SetToken(t.Context(), t1))

	api := newFakeAPI("revoked")
	api.refreshStatus = http.StatusUnauthorized

	var client *http.Client
	refresh := func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://api.test"+DefaultRefreshPath, nil)
		if err != nil {
			return "", err
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", errors.New("refresh: " + resp.Status)
		}
		return "", errors.New("unexpected success")
	}
	coord := NewCoordinator(refresh, sess, WithLogger(discardLogger()))
	client = newTestClient(api, store, coord)

	const n = 3
	results := make(chan callResult, n)
	for range n {
		go func() { results <- get(t.Context(), client, "http://api.test/data") }()
	}

	for range n {
		res := <-results
		var rerr *RefreshError
		if res.err != nil {
			require.ErrorAs(t, res.err, &rerr)
			continue
		}
		// A straggler that only sent its request after the session was
		// cleared goes out unauthenticated and gets its own 401 back.
		require.Equal(t, http.StatusUnauthorized, res.status)
	}

	_, err := store.Read(t.Context())
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
	require.Empty(t, sess.Token())
	require.False(t, sess.Authenticated())
	require.Equal(t, "/login", loc.Location())
	require.EqualValues(t, 1, redirects.Load(), "exactly one redirect")
}

func TestRefreshRejectedWithoutTokenRedirects(t *testing.T) {
	t.Parallel()

	store := tokenstore.NewMemory()
	loc := NewLocation("/channels")
	redirects := navigations(loc)

	sess := New(store, WithNavigator(loc), WithLogger(discardLogger()))
	require.NoError(t, sess.Bootstrap(t.Context()))
	require.Empty(t, sess.Token())

	api := newFakeAPI("")
	api.rejectAll = true
	api.refreshStatus = http.StatusUnauthorized

	var client *http.Client
	refresh := func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://api.test"+DefaultRefreshPath, nil)
		if err != nil {
			return "", err
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		return "", errors.New("refresh: " + resp.Status)
	}
	coord := NewCoordinator(refresh, sess, WithLogger(discardLogger()))
	client = newTestClient(api, store, coord)

	res := get(t.Context(), client, "http://api.test/data")
	var rerr *RefreshError
	require.ErrorAs(t, res.err, &rerr)

	require.Len(t, api.seen(DefaultRefreshPath), 1)
	require.Equal(t, "/login", loc.Location())
	require.EqualValues(t, 1, redirects.Load())

	// A second failed cycle while already on the login view stays put
	res = get(t.Context(), client, "http://api.test/data")
	require.ErrorAs(t, res.err, &rerr)
	require.Len(t, api.seen(DefaultRefreshPath), 2)
	require.EqualValues(t, 1, redirects.Load())
}

func TestClearDuringRefreshDiscardsToken(t *testing.T) {
	t.Parallel()

	t1 := mint(t, "alice", time.Now().Add(time.Minute))
	t2 := mint(t, "alice", time.Now().Add(time.Hour))

	store := tokenstore.NewMemory()
	loc := NewLocation("/channels")
	redirects := navigations(loc)
	sess := New(store, WithNavigator(loc), WithLogger(discardLogger()))
	require.NoError(t, sess.SetToken(t.Context(), t1))

	refresh := &gatedRefresh{gate: make(chan struct{}), token: t2}
	coord := NewCoordinator(refresh.refresh, sess, WithLogger(discardLogger()))

	type result struct {
		token string
		err   error
	}
	leader := make(chan result, 1)
	go func() {
		tok, err := coord.Refresh(t.Context())
		leader <- result{tok, err}
	}()
	require.Eventually(t, func() bool { return refresh.calls.Load() == 1 }, 5*time.Second, time.Millisecond)

	waiter := make(chan result, 1)
	go func() {
		tok, err := coord.Refresh(t.Context())
		waiter <- result{tok, err}
	}()
	require.Eventually(t, func() bool { return coord.queued() == 1 }, 5*time.Second, time.Millisecond)

	// Logout lands while the exchange is still running
	require.NoError(t, sess.Clear(t.Context()))
	close(refresh.gate)

	for _, ch := range []chan result{leader, waiter} {
		res := <-ch
		require.Empty(t, res.token)
		var rerr *RefreshError
		require.ErrorAs(t, res.err, &rerr)
		require.ErrorIs(t, res.err, ErrCleared)
	}

	require.Empty(t, sess.Token())
	require.False(t, sess.Authenticated())
	_, err := store.Read(t.Context())
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
	require.Zero(t, redirects.Load(), "logout is not an expiry")
}

func TestLoginDuringRefreshKeepsNewerToken(t *testing.T) {
	t.Parallel()

	t1 := mint(t, "alice", time.Now().Add(time.Minute))
	refreshed := mint(t, "alice", time.Now().Add(time.Hour))
	login := mint(t, "bob", time.Now().Add(2*time.Hour))

	store := tokenstore.NewMemory()
	sess := New(store, WithLogger(discardLogger()))
	require.NoError(t, sess.SetToken(t.Context(), t1))

	refresh := &gatedRefresh{gate: make(chan struct{}), token: refreshed}
	coord := NewCoordinator(refresh.refresh, sess, WithLogger(discardLogger()))

	done := make(chan error, 1)
	var got string
	go func() {
		var err error
		got, err = coord.Refresh(t.Context())
		done <- err
	}()
	require.Eventually(t, func() bool { return refresh.calls.Load() == 1 }, 5*time.Second, time.Millisecond)

	require.NoError(t, sess.SetToken(t.Context(), login))
	close(refresh.gate)

	require.NoError(t, <-done)
	require.Equal(t, login, got)
	require.Equal(t, login, sess.Token())
	stored, err := store.Read(t.Context())
	require.NoError(t, err)
	require.Equal(t, login, stored)
}

func TestRefreshFailureReachesEveryWaiter(t *testing.T) {
	t.Parallel()

	t1 := mint(t, "alice", time.Now().Add(time.Minute))
	boom := errors.New("boom")

	store := tokenstore.NewMemory()
	loc := NewLocation("/")
	redirects := navigations(loc)
	sess := New(store, WithNavigator(loc), WithLogger(discardLogger()))
	require.NoError(t, sess.SetToken(t.Context(), t1))

	api := newFakeAPI("other")
	refresh := &gatedRefresh{gate: make(chan struct{}), err: boom}
	coord := NewCoordinator(refresh.refresh, sess, WithLogger(discardLogger()))
	client := newTestClient(api, store, coord)

	const n = 3
	results := make(chan callResult, n)
	for range n {
		go func() { results <- get(t.Context(), client, "http://api.test/data") }()
	}
	require.Eventually(t, func() bool { return coord.queued() == n-1 }, 5*time.Second, time.Millisecond)
	close(refresh.gate)

	for range n {
		res := <-results
		var rerr *RefreshError
		require.ErrorAs(t, res.err, &rerr)
		require.ErrorIs(t, res.err, boom)
	}

	require.EqualValues(t, 1, refresh.calls.Load())
	require.EqualValues(t, 1, redirects.Load())
	require.Empty(t, sess.Token())
	_, err := store.Read(t.Context())
	require.ErrorIs(t, err, tokenstore.ErrNotFound)
}

func TestLateArrivalStartsNewCycle(t *testing.T) {
	t.Parallel()

	t2 := mint(t, "alice", time.Now().Add(15*time.Minute))
	sess := New(tokenstore.NewMemory(), WithLogger(discardLogger()))
	refresh := &gatedRefresh{token: t2}
	coord := NewCoordinator(refresh.refresh, sess, WithLogger(discardLogger()))

	for range 2 {
		tok, err := coord.Refresh(t.Context())
		require.NoError(t, err)
		require.Equal(t, t2, tok)
	}
	require.EqualValues(t, 2, refresh.calls.Load())
}

func TestCancelledWaiterDoesNotStrandOthers(t *testing.T) {
	t.Parallel()

	t2 := mint(t, "alice", time.Now().Add(15*time.Minute))
	sess := New(tokenstore.NewMemory(), WithLogger(discardLogger()))
	refresh := &gatedRefresh{gate: make(chan struct{}), token: t2}
	coord := NewCoordinator(refresh.refresh, sess, WithLogger(discardLogger()))

	leaderCtx, cancelLeader := context.WithCancel(t.Context())
	leader := make(chan error, 1)
	go func() {
		_, err := coord.Refresh(leaderCtx)
		leader <- err
	}()
	require.Eventually(t, coord.InFlight, 5*time.Second, time.Millisecond)

	waiterCtx, cancelWaiter := context.WithCancel(t.Context())
	waiter := make(chan error, 1)
	go func() {
		_, err := coord.Refresh(waiterCtx)
		waiter <- err
	}()
	require.Eventually(t, func() bool { return coord.queued() == 1 }, 5*time.Second, time.Millisecond)

	cancelWaiter()
	require.ErrorIs(t, <-waiter, context.Canceled)

	// Cancelling the leader's caller does not abort the exchange
	cancelLeader()
	close(refresh.gate)
	require.NoError(t, <-leader)
	require.Nil(t, refresh.ctxErr.Load())
	require.Equal(t, t2, sess.Token())
	require.False(t, coord.InFlight())
}

func TestReplayRewindsBody(t *testing.T) {
	t.Parallel()

	now := time.Now()
	t1 := mint(t, "alice", now.Add(time.Minute))
	t2 := mint(t, "alice", now.Add(15*time.Minute))

	store := tokenstore.NewMemory()
	sess := New(store, WithLogger(discardLogger()))
	require.NoError(t, sess.SetToken(t.Context(), t1))

	api := newFakeAPI(t2)
	coord := NewCoordinator((&gatedRefresh{token: t2}).refresh, sess, WithLogger(discardLogger()))
	client := newTestClient(api, store, coord)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, "http://api.test/data", strings.NewReader(`{"content":"hi"}`))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{`{"content":"hi"}`, `{"content":"hi"}`}, api.bodiesFor("/data"))
}

func TestUnreplayableBodyIsNotRecovered(t *testing.T) {
	t.Parallel()

	now := time.Now()
	t1 := mint(t, "alice", now.Add(time.Minute))
	t2 := mint(t, "alice", now.Add(15*time.Minute))

	store := tokenstore.NewMemory()
	sess := New(store, WithLogger(discardLogger()))
	require.NoError(t, sess.SetToken(t.Context(), t1))

	api := newFakeAPI(t2)
	refresh := &gatedRefresh{token: t2}
	coord := NewCoordinator(refresh.refresh, sess, WithLogger(discardLogger()))
	client := newTestClient(api, store, coord)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, "http://api.test/data", io.NopCloser(strings.NewReader("stream")))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, refresh.calls.Load())
}

func TestPassThrough(t *testing.T) {
	t.Parallel()

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()

		dialErr := errors.New("connection refused")
		refresh := &gatedRefresh{token: "unused"}
		sess := New(tokenstore.NewMemory(), WithLogger(discardLogger()))
		coord := NewCoordinator(refresh.refresh, sess, WithLogger(discardLogger()))

		rt := coord.Transport()(roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, dialErr
		}))
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://api.test/data", nil)
		require.NoError(t, err)

		_, err = rt.RoundTrip(req)
		require.ErrorIs(t, err, dialErr)
		require.Zero(t, refresh.calls.Load())
	})

	t.Run("non 401 status", func(t *testing.T) {
		t.Parallel()

		refresh := &gatedRefresh{token: "unused"}
		sess := New(tokenstore.NewMemory(), WithLogger(discardLogger()))
		coord := NewCoordinator(refresh.refresh, sess, WithLogger(discardLogger()))

		rt := coord.Transport()(roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return newResponse(req, http.StatusForbidden, ""), nil
		}))
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://api.test/data", nil)
		require.NoError(t, err)

		resp, err := rt.RoundTrip(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.Zero(t, refresh.calls.Load())
	})
}

func TestRefreshReturningEmptyTokenFails(t *testing.T) {
	t.Parallel()

	sess := New(tokenstore.NewMemory(), WithLogger(discardLogger()))
	coord := NewCoordinator((&gatedRefresh{}).refresh, sess, WithLogger(discardLogger()))

	_, err := coord.Refresh(t.Context())
	require.ErrorIs(t, err, ErrNoToken)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
