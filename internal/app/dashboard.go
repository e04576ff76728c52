package app

import (
	"html/template"
	"net/http"

	"github.com/aussiebroadwan/streamit/pkg/httpx"
	"github.com/aussiebroadwan/streamit/pkg/session"
	"github.com/aussiebroadwan/streamit/pkg/slogx"
	"github.com/aussiebroadwan/streamit/pkg/streamsdk"
)

var loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<title>StreamIt</title>
<h1>StreamIt</h1>
<p><a href="{{.}}">Sign in</a></p>
`))

// SessionInfo is the view of the current session served by the dashboard
// and printed by the CLI.
type SessionInfo struct {
	Authenticated bool   `json:"authenticated"`
	Initializing  bool   `json:"initializing"`
	UserID        string `json:"userId,omitempty"`
	Name          string `json:"name,omitempty"`
	Subject       string `json:"subject,omitempty"`
	Role          string `json:"role,omitempty"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
	RefreshArmed  bool   `json:"refreshArmed"`
}

// Info describes the current session.
func (app *Application) Info() SessionInfo {
	snap := app.session.Snapshot()
	w := SessionInfo{
		Authenticated: snap.Authenticated,
		Initializing:  snap.Initializing,
		RefreshArmed:  app.scheduler.Armed(),
	}
	if snap.Token != "" {
		w.UserID = snap.Claims.UserID.String()
		w.Name = snap.Claims.Name
		w.Subject = snap.Claims.Subject
		w.Role = snap.Claims.Role
		if exp := snap.Claims.Expiry(); !exp.IsZero() {
			w.ExpiresAt = exp.UTC().Format(http.TimeFormat)
		}
	}
	return w
}

// Dashboard is a small local web front end over the session. Protected
// views sit behind the session guard, the login flow and metrics do not.
func (app *Application) Dashboard() http.Handler {
	mux := http.NewServeMux()
	guard := session.Guard(app.session, session.WithLoginPath(app.loginPath()))

	mux.HandleFunc("GET "+app.loginPath(), app.handleLoginPage)
	mux.HandleFunc("GET /auth/callback", app.handleCallback)
	mux.HandleFunc("POST /logout", app.handleLogout)
	mux.Handle("GET /metrics", app.MetricsHandler())

	mux.Handle("GET /{$}", httpx.ChainHandler(http.HandlerFunc(app.handleHome), guard))
	mux.Handle("GET /channels", httpx.ChainHandler(http.HandlerFunc(app.handleChannels), guard))

	return httpx.ChainHandler(mux, slogx.HTTPMiddleware(app.logger))
}

func (app *Application) handleLoginPage(w http.ResponseWriter, _ *http.Request) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginPage.Execute(w, app.api.LoginURL())
}

func (app *Application) handleCallback(w http.ResponseWriter, r *http.Request) {
	code, err := streamsdk.ParseAuthCallback(r.URL.String())
	if err == nil {
		err = app.Login(r.Context(), code)
	}
	if err != nil {
		slogx.FromContext(r.Context()).Warn("login callback failed", "err", err)
		http.Redirect(w, r, app.loginPath(), http.StatusFound)
		return
	}
	http.Redirect(w, r, HomePath, http.StatusFound)
}

func (app *Application) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := app.Logout(r.Context()); err != nil {
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{"message": err.Error()})
		return
	}
	http.Redirect(w, r, app.loginPath(), http.StatusSeeOther)
}

func (app *Application) handleHome(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, app.Info())
}

func (app *Application) handleChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := app.api.ListChannels(r.Context())
	if err != nil {
		if !app.session.Authenticated() {
			http.Redirect(w, r, app.loginPath(), http.StatusFound)
			return
		}
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]string{"message": err.Error()})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, channels)
}
