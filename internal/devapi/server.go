// Package devapi is an in-process stand-in for the StreamIt backend. It
// implements the auth contract (code exchange, cookie-backed refresh,
// logout) and enough of the chat API to exercise a client end to end.
package devapi

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/streamit/pkg/httpx"
	"github.com/aussiebroadwan/streamit/pkg/jwtx"
	"github.com/aussiebroadwan/streamit/pkg/slogx"
)

const (
	// Version is reported by the liveness probe.
	Version = "v0.1.0"

	// SessionCookie carries the refresh session.
	SessionCookie = "STREAMIT_SESSION"

	DefaultTokenTTL   = jwtx.DefaultAccessTokenTTL
	DefaultSessionTTL = 7 * 24 * time.Hour
	DefaultCodeTTL    = 5 * time.Minute
)

type Config struct {
	// Secret signs access tokens. A random secret is generated when empty.
	Secret []byte
	// TokenTTL is the access token lifetime (default: 15m)
	TokenTTL time.Duration
	// SessionTTL is the refresh session lifetime (default: 7d)
	SessionTTL time.Duration
	// CallbackURL is where the login entry point redirects with ?code=
	// (default: /auth/callback)
	CallbackURL string
	// HousekeepingInterval controls how often expired state is purged
	// (default: 1m)
	HousekeepingInterval time.Duration
	Logger               *slog.Logger
}

// Server is the development API.
type Server struct {
	cfg    Config
	logger *slog.Logger

	signer atomic.Pointer[jwtx.HS256]

	mu       sync.Mutex
	users    map[jwtx.UserID]User
	codes    map[string]authCode
	sessions map[string]refreshSession
	data     *chatData

	startTime time.Time
	exchanges atomic.Int64
	refreshes atomic.Int64

	housekeeping *housekeeper
	handler      http.Handler
}

// User is an account known to the development API.
type User struct {
	ID    jwtx.UserID
	Email string
	Name  string
	Role  string
}

type authCode struct {
	userID    jwtx.UserID
	expiresAt time.Time
}

type refreshSession struct {
	userID    jwtx.UserID
	expiresAt time.Time
}

// Seeded accounts.
var (
	Alice = User{ID: "7", Email: "alice@streamit.test", Name: "Alice", Role: "USER"}
	Bob   = User{ID: "9", Email: "bob@streamit.test", Name: "Bob", Role: "USER"}
)

// New builds a development API with Alice and Bob seeded and a "general"
// channel owned by Alice.
func New(cfg Config) *Server {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.CallbackURL == "" {
		cfg.CallbackURL = "/auth/callback"
	}
	if cfg.HousekeepingInterval <= 0 {
		cfg.HousekeepingInterval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		logger:    cfg.Logger,
		startTime: time.Now(),
		users: map[jwtx.UserID]User{
			Alice.ID: Alice,
			Bob.ID:   Bob,
		},
		codes:    make(map[string]authCode),
		sessions: make(map[string]refreshSession),
		data:     newChatData(),
	}

	secret := cfg.Secret
	if len(secret) == 0 {
		secret = randomSecret()
	}
	s.signer.Store(&jwtx.HS256{Key: secret})

	s.data.createChannel(Alice, "general", "Everyone hangs out here", "PUBLIC", time.Now())
	s.housekeeping = newHousekeeper(s, cfg.HousekeepingInterval)
	s.handler = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	authn := httpx.BearerAuth(s)

	protected := func(h http.HandlerFunc) http.Handler {
		return httpx.ChainHandler(h, authn)
	}

	// Auth
	mux.HandleFunc("GET /oauth2/authorization/{provider}", s.handleAuthorize)
	mux.HandleFunc("POST /auth/exchange-token", s.handleExchange)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)

	// Probes
	mux.HandleFunc("GET /livez", s.handleLivez)
	mux.HandleFunc("GET /public", s.handlePublic)
	mux.Handle("GET /private", protected(s.handlePrivate))
	mux.Handle("GET /me", protected(s.handleMe))

	// Channels
	mux.Handle("GET /api/channels", protected(s.handleListChannels))
	mux.Handle("POST /api/channels", protected(s.handleCreateChannel))
	mux.Handle("GET /api/channels/{id}/open", protected(s.handleOpenChannel))
	mux.Handle("POST /api/channels/{id}/join", protected(s.handleJoinChannel))
	mux.Handle("POST /api/channels/{id}/leave", protected(s.handleLeaveChannel))
	mux.Handle("POST /api/channels/{id}/test-send", protected(s.handleTestSend))

	// Invites
	mux.Handle("POST /api/invites/send", protected(s.handleSendInvite))
	mux.Handle("GET /api/invites/my", protected(s.handleMyInvites))
	mux.Handle("POST /api/invites/{id}/accept", protected(s.handleAnswerInvite(inviteAccepted)))
	mux.Handle("POST /api/invites/{id}/reject", protected(s.handleAnswerInvite(inviteRejected)))

	return httpx.ChainHandler(mux, slogx.HTTPMiddleware(s.logger))
}

// Verify implements httpx.TokenVerifier with the current signing secret.
func (s *Server) Verify(token string) (jwtx.Claims, error) {
	return s.signer.Load().Verify(token)
}

// RotateSecret replaces the signing secret, invalidating every access
// token issued so far. Refresh sessions are unaffected.
func (s *Server) RotateSecret() {
	s.signer.Store(&jwtx.HS256{Key: randomSecret()})
	s.logger.Info("signing secret rotated")
}

// RevokeSessions ends every refresh session, so the next refresh fails
// with 401.
func (s *Server) RevokeSessions() {
	s.mu.Lock()
	clear(s.sessions)
	s.mu.Unlock()
	s.logger.Info("refresh sessions revoked")
}

// IssueCode mints a one-time authorization code for u, as the provider
// callback would.
func (s *Server) IssueCode(u User) string {
	code := randomID()

	s.mu.Lock()
	s.codes[code] = authCode{userID: u.ID, expiresAt: time.Now().Add(DefaultCodeTTL)}
	s.mu.Unlock()

	return code
}

// Refreshes returns how many refresh exchanges succeeded.
func (s *Server) Refreshes() int64 { return s.refreshes.Load() }

// Exchanges returns how many codes were exchanged.
func (s *Server) Exchanges() int64 { return s.exchanges.Load() }

// Start launches background housekeeping.
func (s *Server) Start() { s.housekeeping.Start() }

// Stop halts background housekeeping.
func (s *Server) Stop() { s.housekeeping.Stop() }

func (s *Server) mintToken(u User) (string, error) {
	claims := jwtx.NewClaims(u.Email, u.Role, u.Name, u.ID, s.cfg.TokenTTL, time.Now())
	return s.signer.Load().Sign(claims)
}

func randomSecret() []byte {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return b
}
