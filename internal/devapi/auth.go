package devapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/streamit/pkg/httpx"
	"github.com/aussiebroadwan/streamit/pkg/idx"
	"github.com/aussiebroadwan/streamit/pkg/jwtx"
	"github.com/aussiebroadwan/streamit/pkg/slogx"
	"github.com/aussiebroadwan/streamit/pkg/streamsdk"
)

// handleAuthorize stands in for the identity provider: it logs in as the
// user named by ?as= (alice by default) and redirects to the callback
// with a fresh code.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	u := Alice
	if as := r.URL.Query().Get("as"); as != "" {
		found, ok := s.userByName(as)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown user")
			return
		}
		u = found
	}

	code := s.IssueCode(u)
	slogx.FromContext(r.Context()).Info("authorization code issued",
		"provider", r.PathValue("provider"),
		"user_id", u.ID,
	)

	target, err := url.Parse(s.cfg.CallbackURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "invalid callback url")
		return
	}
	q := target.Query()
	q.Set("code", code)
	target.RawQuery = q.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	now := time.Now()

	s.mu.Lock()
	ac, ok := s.codes[req.Code]
	delete(s.codes, req.Code)
	s.mu.Unlock()

	if !ok || now.After(ac.expiresAt) {
		log.Warn("code exchange rejected")
		writeError(w, http.StatusUnauthorized, "invalid or expired code")
		return
	}

	u, ok := s.user(ac.userID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}

	token, err := s.mintToken(u)
	if err != nil {
		log.Error("failed to mint token", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	sid := idx.NewAt(now).String()
	s.mu.Lock()
	s.sessions[sid] = refreshSession{userID: u.ID, expiresAt: now.Add(s.cfg.SessionTTL)}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/auth",
		Expires:  now.Add(s.cfg.SessionTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	s.exchanges.Add(1)
	log.Info("code exchanged", "user_id", u.ID)
	httpx.WriteJSON(w, http.StatusOK, streamsdk.TokenResponse{Token: token})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	u, ok := s.sessionUser(r)
	if !ok {
		log.Info("refresh rejected")
		writeError(w, http.StatusUnauthorized, "session expired")
		return
	}

	token, err := s.mintToken(u)
	if err != nil {
		log.Error("failed to mint token", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	s.refreshes.Add(1)
	log.Debug("token refreshed", "user_id", u.ID)
	httpx.WriteJSON(w, http.StatusOK, streamsdk.TokenResponse{Token: token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// =====================================
// Probes
// =====================================

func (s *Server) handleLivez(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, streamsdk.HealthResponse{
		Status:  "ok",
		Uptime:  time.Since(s.startTime).String(),
		Version: Version,
	})
}

func (s *Server) handlePublic(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "public endpoint"})
}

func (s *Server) handlePrivate(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "hello " + claims.Name,
	})
}

// meResponse mirrors the shape of the backend's /me.
type meResponse struct {
	ID    jwtx.UserID `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  string      `json:"role"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())
	u, ok := s.user(claims.UserID)
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, meResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role})
}

// =====================================
// Helpers
// =====================================

func (s *Server) sessionUser(r *http.Request) (User, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return User{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[c.Value]
	if !ok || time.Now().After(sess.expiresAt) {
		delete(s.sessions, c.Value)
		return User{}, false
	}
	u, ok := s.users[sess.userID]
	return u, ok
}

func (s *Server) user(id jwtx.UserID) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *Server) userByName(name string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Name, name) {
			return u, true
		}
	}
	return User{}, false
}

func currentUser(r *http.Request) (User, bool) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		return User{}, false
	}
	return User{ID: claims.UserID, Email: claims.Subject, Name: claims.Name, Role: claims.Role}, true
}

func writeError(w http.ResponseWriter, code int, msg string) {
	httpx.WriteJSON(w, code, map[string]string{"message": msg})
}

func randomID() string { return idx.New().String() }
