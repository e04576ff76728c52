// Package app wires the session layer, the StreamIt SDK and the ambient
// stack into one client application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/publicsuffix"

	"github.com/aussiebroadwan/streamit/pkg/clock"
	"github.com/aussiebroadwan/streamit/pkg/httpx"
	"github.com/aussiebroadwan/streamit/pkg/session"
	"github.com/aussiebroadwan/streamit/pkg/slogx"
	"github.com/aussiebroadwan/streamit/pkg/streamsdk"
	"github.com/aussiebroadwan/streamit/pkg/tokenstore"
	"github.com/aussiebroadwan/streamit/pkg/tokenstore/sqlite"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	// HomePath is where a successful login lands.
	HomePath = "/"
)

// Application is a StreamIt client with an authenticated HTTP pipeline.
type Application struct {
	cfg    Config
	logger *slog.Logger

	store     tokenstore.Store
	closers   []func() error
	registry  *prometheus.Registry
	metrics   *session.Metrics
	navigator session.Navigator

	session   *session.Session
	coord     *session.Coordinator
	scheduler *session.Scheduler

	api *streamsdk.Client
}

// Option overrides a dependency New would otherwise build from Config.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	store     tokenstore.Store
	clock     clock.Clock
	transport http.RoundTripper
	navigator session.Navigator
}

// WithLogger replaces the logger built from Config.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStore replaces the token store selected by Config.TokenStore.
func WithStore(s tokenstore.Store) Option {
	return func(o *options) { o.store = s }
}

// WithClock replaces the wall clock used for expiry decisions.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithTransport replaces the wire transport at the bottom of the pipeline.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithNavigator replaces the in-memory location.
func WithNavigator(n session.Navigator) Option {
	return func(o *options) { o.navigator = n }
}

// New builds the application. Call Start before issuing requests and
// Close when done.
func New(cfg Config, opts ...Option) (*Application, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &Application{
		cfg:    cfg,
		logger: o.logger,
	}
	if app.logger == nil {
		app.logger = slogx.New(slogx.Config{
			Service: "streamit",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}

	app.store = o.store
	if app.store == nil {
		if err := app.initStore(); err != nil {
			return nil, fmt.Errorf("failed to initialize token store: %w", err)
		}
	}

	app.initMetrics()

	app.navigator = o.navigator
	if app.navigator == nil {
		app.navigator = session.NewLocation(HomePath)
	}

	sessionOpts := []session.Option{
		session.WithLogger(app.logger),
		session.WithClock(o.clock),
		session.WithNavigator(app.navigator),
		session.WithLoginPath(cfg.LoginPath),
		session.WithRefreshPath(streamsdk.PathRefresh),
		session.WithRefreshLead(cfg.RefreshLead),
		session.WithRefreshTimeout(cfg.RefreshTimeout),
		session.WithMetrics(app.metrics),
	}

	app.session = session.New(app.store, sessionOpts...)
	app.coord = session.NewCoordinator(func(ctx context.Context) (string, error) {
		return app.api.Refresh(ctx)
	}, app.session, sessionOpts...)

	httpClient, err := app.newHTTPClient(o.transport)
	if err != nil {
		app.close()
		return nil, err
	}
	app.api = streamsdk.NewClient(cfg.APIBaseURL, httpClient)

	app.scheduler = session.NewScheduler(app.session, app.coord, sessionOpts...)

	return app, nil
}

func (app *Application) initStore() error {
	switch app.cfg.TokenStore {
	case StoreMemory:
		app.store = tokenstore.NewMemory()

	case StoreSQLite:
		db, err := sqlite.NewStore(app.cfg.TokenDatabaseFile)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		app.store = db
		app.closers = append(app.closers, db.Close)

	case StoreFile, "":
		app.store = tokenstore.NewFile(app.cfg.TokenFile)

	default:
		return fmt.Errorf("unknown token store %q", app.cfg.TokenStore)
	}

	app.logger.Debug("token store ready", "backend", app.cfg.TokenStore)
	return nil
}

func (app *Application) initMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = session.NewMetrics(app.registry)
}

// newHTTPClient builds the authenticated pipeline. The order matters:
// tokens are injected before the 401 recovery sees the response, and
// replays re-enter below recovery so they are never recovered twice.
func (app *Application) newHTTPClient(base http.RoundTripper) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &http.Client{
		Jar:     jar,
		Timeout: app.cfg.HTTPTimeout,
		Transport: httpx.Chain(base,
			httpx.RequestID(),
			session.InjectAuth(app.store),
			app.coord.Transport(),
			httpx.RateLimit(app.cfg.RateLimit),
			slogx.Transport(app.logger),
		),
	}, nil
}

// Start restores a persisted session. It is safe to call more than once.
func (app *Application) Start(ctx context.Context) error {
	if err := app.session.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	snap := app.session.Snapshot()
	app.logger.Info("streamit client started",
		"api", app.cfg.APIBaseURL,
		"authenticated", snap.Authenticated,
		"version", BuildVersion,
	)
	return nil
}

// Login exchanges an authorization code for a token and starts the
// session. Success navigates home; failure navigates to the login view.
func (app *Application) Login(ctx context.Context, code string) error {
	token, err := app.api.ExchangeToken(ctx, code)
	if err != nil {
		app.logger.Warn("login failed", "err", err)
		app.navigator.Navigate(app.loginPath())
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	// A store failure leaves the session usable for this process only.
	if err := app.session.SetToken(ctx, token); err != nil {
		app.logger.Warn("token not persisted", "err", err)
	}

	app.logger.Info("logged in")
	app.navigator.Navigate(HomePath)
	return nil
}

// Logout ends the server session when possible and always clears the
// local one.
func (app *Application) Logout(ctx context.Context) error {
	if err := app.api.Logout(ctx); err != nil {
		app.logger.Warn("server logout failed, clearing locally", "err", err)
	}

	// Clearing disarms the scheduler and makes an in-flight refresh drop
	// its token; a later Login re-arms it.
	if err := app.session.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	app.navigator.Navigate(app.loginPath())
	app.logger.Info("logged out")
	return nil
}

// Close stops background work and releases the token store.
func (app *Application) Close() error {
	app.scheduler.Stop()
	return app.close()
}

func (app *Application) close() error {
	var errs []error
	for _, c := range app.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

func (app *Application) loginPath() string {
	if app.cfg.LoginPath == "" {
		return session.DefaultLoginPath
	}
	return app.cfg.LoginPath
}

// Session returns the session state.
func (app *Application) Session() *session.Session { return app.session }

// Coordinator returns the refresh coordinator.
func (app *Application) Coordinator() *session.Coordinator { return app.coord }

// Scheduler returns the proactive refresh scheduler.
func (app *Application) Scheduler() *session.Scheduler { return app.scheduler }

// API returns the StreamIt client running on the authenticated pipeline.
func (app *Application) API() *streamsdk.Client { return app.api }

// Navigator returns where session redirects go.
func (app *Application) Navigator() session.Navigator { return app.navigator }

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Config returns the configuration the application was built with.
func (app *Application) Config() Config { return app.cfg }

// MetricsHandler serves the application's Prometheus registry.
func (app *Application) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{Registry: app.registry})
}
