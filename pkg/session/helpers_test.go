package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/streamit/pkg/httpx"
	"github.com/aussiebroadwan/streamit/pkg/jwtx"
	"github.com/aussiebroadwan/streamit/pkg/tokenstore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSigner = &jwtx.HS256{Key: []byte("session-test-key")}

// mint signs a token for sub that expires at exp.
func mint(t *testing.T, sub string, exp time.Time) string {
	t.Helper()

	c := jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role:   "USER",
		Name:   sub,
		UserID: "7",
	}
	tok, err := testSigner.Sign(c)
	require.NoError(t, err)
	return tok
}

// queued returns the number of callers parked behind the running refresh.
func (c *Coordinator) queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// gatedRefresh is a RefreshFunc that blocks on gate (when set) so tests can
// pile callers up behind it.
type gatedRefresh struct {
	gate  chan struct{}
	token string
	err   error

	calls  atomic.Int32
	ctxErr atomic.Value
}

func (g *gatedRefresh) refresh(ctx context.Context) (string, error) {
	g.calls.Add(1)
	if g.gate != nil {
		<-g.gate
	}
	if err := ctx.Err(); err != nil {
		g.ctxErr.Store(err)
	}
	return g.token, g.err
}

// fakeAPI is a backend that accepts exactly one bearer token.
type fakeAPI struct {
	mu             sync.Mutex
	valid          string
	rejectAll      bool
	refreshStatus  int
	authorizations map[string][]string
	bodies         map[string][]string
}

func newFakeAPI(valid string) *fakeAPI {
	return &fakeAPI{
		valid:          valid,
		refreshStatus:  http.StatusOK,
		authorizations: make(map[string][]string),
		bodies:         make(map[string][]string),
	}
}

func (f *fakeAPI) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		_ = req.Body.Close()
		body = string(b)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := req.URL.Path
	authz := req.Header.Get("Authorization")
	f.authorizations[path] = append(f.authorizations[path], authz)
	f.bodies[path] = append(f.bodies[path], body)

	if path == DefaultRefreshPath {
		return newResponse(req, f.refreshStatus, `{"token":"`+f.valid+`"}`), nil
	}
	if f.rejectAll || authz != "Bearer "+f.valid {
		return newResponse(req, http.StatusUnauthorized, `{"message":"unauthorized"}`), nil
	}
	return newResponse(req, http.StatusOK, "ok"), nil
}

func (f *fakeAPI) seen(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authorizations[path]...)
}

func (f *fakeAPI) bodiesFor(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies[path]...)
}

func newResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func newTestClient(base http.RoundTripper, store tokenstore.Store, coord *Coordinator) *http.Client {
	return &http.Client{Transport: httpx.Chain(base, InjectAuth(store), coord.Transport())}
}

// navigations counts redirects issued through a Location.
func navigations(loc *Location) *atomic.Int32 {
	var n atomic.Int32
	loc.OnNavigate(func(string) { n.Add(1) })
	return &n
}

// spyStore counts mutations on a wrapped store.
type spyStore struct {
	tokenstore.Store
	writes atomic.Int32
	clears atomic.Int32
}

func (s *spyStore) Write(ctx context.Context, token string) error {
	s.writes.Add(1)
	return s.Store.Write(ctx, token)
}

func (s *spyStore) Clear(ctx context.Context) error {
	s.clears.Add(1)
	return s.Store.Clear(ctx)
}

// captureHandler keeps every record it sees.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r.Clone())
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

// intAttrs returns the value of key on every record with message msg.
func (h *captureHandler) intAttrs(msg, key string) []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []int64
	for _, r := range h.records {
		if r.Message != msg {
			continue
		}
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == key {
				out = append(out, a.Value.Int64())
				return false
			}
			return true
		})
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
