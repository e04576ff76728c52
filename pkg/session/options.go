package session

import (
	"log/slog"
	"time"

	"github.com/aussiebroadwan/streamit/pkg/clock"
)

const (
	// DefaultLoginPath is where expired sessions are sent.
	DefaultLoginPath = "/login"
	// DefaultRefreshPath identifies the refresh exchange endpoint.
	DefaultRefreshPath = "/auth/refresh"
	// DefaultRefreshLead is how long before exp the scheduler renews.
	DefaultRefreshLead = 30 * time.Second
	// DefaultRefreshTimeout bounds a single refresh exchange.
	DefaultRefreshTimeout = 30 * time.Second
)

// Option configures a Session, Coordinator, Scheduler or Guard. Each
// constructor reads only the settings that concern it.
type Option func(*config)

type config struct {
	logger         *slog.Logger
	clock          clock.Clock
	navigator      Navigator
	loginPath      string
	refreshPath    string
	refreshLead    time.Duration
	refreshTimeout time.Duration
	metrics        *Metrics
}

func newConfig(opts []Option) config {
	cfg := config{
		clock:          clock.Real{},
		loginPath:      DefaultLoginPath,
		refreshPath:    DefaultRefreshPath,
		refreshLead:    DefaultRefreshLead,
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return cfg
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clk clock.Clock) Option {
	return func(c *config) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithNavigator sets where Expire redirects to the login view.
func WithNavigator(n Navigator) Option {
	return func(c *config) { c.navigator = n }
}

// WithLoginPath overrides DefaultLoginPath.
func WithLoginPath(path string) Option {
	return func(c *config) {
		if path != "" {
			c.loginPath = path
		}
	}
}

// WithRefreshPath overrides DefaultRefreshPath.
func WithRefreshPath(path string) Option {
	return func(c *config) {
		if path != "" {
			c.refreshPath = path
		}
	}
}

// WithRefreshLead overrides DefaultRefreshLead.
func WithRefreshLead(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.refreshLead = d
		}
	}
}

// WithRefreshTimeout overrides DefaultRefreshTimeout. Zero disables the
// bound.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.refreshTimeout = d
		}
	}
}

// WithMetrics records session activity on m.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}
