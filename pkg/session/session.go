package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aussiebroadwan/streamit/pkg/clock"
	"github.com/aussiebroadwan/streamit/pkg/jwtx"
	"github.com/aussiebroadwan/streamit/pkg/tokenstore"
)

var (
	// ErrNoToken is returned when an empty token is offered as a credential.
	ErrNoToken = errors.New("session: no token")

	// ErrCleared is returned to refresh callers when the session was cleared
	// while the exchange was running. The new token is discarded.
	ErrCleared = errors.New("session: cleared during refresh")
)

// Snapshot is a consistent view of the session at one instant.
type Snapshot struct {
	Token         string
	Claims        jwtx.Claims
	Authenticated bool
	Initializing  bool
}

// Session is the single source of truth for the current bearer token. It
// mirrors the token held by the TokenStore and tells subscribers whenever
// it changes.
//
// Mutations are serialised and subscribers are called synchronously while
// the mutation is still held, so they must not call SetToken, Clear or
// Expire themselves.
type Session struct {
	store     tokenstore.Store
	clock     clock.Clock
	nav       Navigator
	loginPath string
	log       *slog.Logger
	metrics   *Metrics

	bootOnce sync.Once
	mutMu    sync.Mutex
	navMu    sync.Mutex

	// epoch counts mutations of the token. Written under mutMu.
	epoch atomic.Uint64

	mu           sync.RWMutex
	token        string
	claims       jwtx.Claims
	initializing bool

	subsMu  sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// New returns a session backed by store. It starts initializing and holds
// no token until Bootstrap or SetToken is called.
func New(store tokenstore.Store, opts ...Option) *Session {
	cfg := newConfig(opts)

	nav := cfg.navigator
	if nav == nil {
		nav = NewLocation("/")
	}

	return &Session{
		store:        store,
		clock:        cfg.clock,
		nav:          nav,
		loginPath:    cfg.loginPath,
		log:          cfg.logger,
		metrics:      cfg.metrics,
		initializing: true,
		subs:         make(map[int]func(Snapshot)),
	}
}

// =====================================
// Lifecycle
// =====================================

// Bootstrap adopts a persisted token exactly once. A token that is present
// and unexpired becomes current without any network call; an expired or
// undecodable one is removed from the store. Initializing is false once
// Bootstrap returns, whatever the outcome.
func (s *Session) Bootstrap(ctx context.Context) error {
	var err error
	s.bootOnce.Do(func() {
		err = s.bootstrap(ctx)
	})
	return err
}

func (s *Session) bootstrap(ctx context.Context) error {
	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	defer func() {
		s.mu.Lock()
		s.initializing = false
		s.mu.Unlock()
		s.notify()
	}()

	s.mu.RLock()
	adopted := s.token != ""
	s.mu.RUnlock()
	if adopted {
		// SetToken won the race with bootstrap, keep the newer token
		return nil
	}

	token, err := s.store.Read(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		s.log.Debug("no stored session")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read stored token: %w", err)
	}

	claims, ok := jwtx.Decode(token)
	if !ok || claims.ExpiredAt(s.clock.Now()) {
		s.log.Info("discarding stored token", "decodable", ok)
		if err := s.store.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear stale token: %w", err)
		}
		return nil
	}

	s.epoch.Add(1)
	s.mu.Lock()
	s.token = token
	s.claims = claims
	s.mu.Unlock()

	s.log.Info("session restored", "sub", claims.Subject, "exp", claims.Expiry())
	return nil
}

// SetToken makes token current, persists it and notifies subscribers. The
// in-memory session is updated even if persisting fails; the store error is
// returned.
func (s *Session) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoToken
	}

	claims, ok := jwtx.Decode(token)
	if !ok {
		s.log.Warn("accepted token is not a decodable JWT")
	}

	s.mutMu.Lock()
	defer s.mutMu.Unlock()
	return s.setTokenLocked(ctx, token, claims)
}

// setTokenSince is SetToken for a token obtained while the session was at
// epoch. If SetToken or Clear ran since then the token is dropped and
// superseded is true.
func (s *Session) setTokenSince(ctx context.Context, token string, epoch uint64) (superseded bool, err error) {
	claims, _ := jwtx.Decode(token)

	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	if s.epoch.Load() != epoch {
		return true, nil
	}
	return false, s.setTokenLocked(ctx, token, claims)
}

func (s *Session) setTokenLocked(ctx context.Context, token string, claims jwtx.Claims) error {
	s.epoch.Add(1)

	s.mu.Lock()
	s.token = token
	s.claims = claims
	s.mu.Unlock()

	err := s.store.Write(ctx, token)
	if err != nil {
		err = fmt.Errorf("failed to persist token: %w", err)
	}

	s.notify()
	return err
}

// Clear removes the token from memory and the store. Clearing an already
// cleared session touches nothing and notifies nobody.
func (s *Session) Clear(ctx context.Context) error {
	_, err := s.clear(ctx)
	return err
}

// Expire ends the session after an unrecoverable refresh failure: it
// clears the session like Clear and then sends the navigator to the login
// view unless it is already there. The redirect happens whether or not
// there was a token to clear. It reports whether the session changed.
func (s *Session) Expire(ctx context.Context) (bool, error) {
	changed, err := s.clear(ctx)

	s.metrics.expired()
	s.log.Warn("session expired", "cleared", changed)

	s.redirectToLogin()
	return changed, err
}

// redirectToLogin navigates to the login view unless the navigator is
// already under it. Concurrent callers redirect once.
func (s *Session) redirectToLogin() {
	s.navMu.Lock()
	defer s.navMu.Unlock()

	if loc := s.nav.Location(); strings.HasPrefix(loc, s.loginPath) {
		return
	}
	s.nav.Navigate(s.loginPath)
}

func (s *Session) clear(ctx context.Context) (bool, error) {
	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	s.epoch.Add(1)

	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.claims = jwtx.Claims{}
	s.mu.Unlock()

	if !had {
		// Memory is empty, but a token written behind our back may still
		// be persisted.
		if _, err := s.store.Read(ctx); errors.Is(err, tokenstore.ErrNotFound) {
			return false, nil
		}
	}

	var err error
	if cerr := s.store.Clear(ctx); cerr != nil {
		err = fmt.Errorf("failed to clear stored token: %w", cerr)
	}

	s.notify()
	return true, err
}

// =====================================
// Readers
// =====================================

// Token returns the current token, or "" when there is none.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Claims returns the decoded claims of the current token.
func (s *Session) Claims() (jwtx.Claims, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims, s.token != "" && s.claims.ExpiresAt != nil
}

// Authenticated reports whether a token is present and its exp lies in
// the future.
func (s *Session) Authenticated() bool {
	return s.Snapshot().Authenticated
}

// Initializing reports whether Bootstrap has yet to complete.
func (s *Session) Initializing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initializing
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Token:         s.token,
		Claims:        s.claims,
		Authenticated: s.token != "" && !s.claims.ExpiredAt(s.clock.Now()),
		Initializing:  s.initializing,
	}
}

// =====================================
// Observation
// =====================================

// Subscribe calls fn with a snapshot after every state change. The returned
// function removes the subscription.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// subscribeCurrent is Subscribe followed by a call to fn with the current
// snapshot. No mutation can slip between the two, so fn never sees an
// older state after a newer one.
func (s *Session) subscribeCurrent(fn func(Snapshot)) (unsubscribe func()) {
	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	unsubscribe = s.Subscribe(fn)
	fn(s.Snapshot())
	return unsubscribe
}

// notify must be called with mutMu held.
func (s *Session) notify() {
	snap := s.Snapshot()
	s.metrics.observe(snap)

	s.subsMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
