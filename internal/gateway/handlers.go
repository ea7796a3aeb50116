package gateway

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-sso/gatehouse/internal/audit"
	"github.com/gatehouse-sso/gatehouse/internal/registry"
)

// buildRootRouter creates the router for the gateway's own domain:
// login, home, logout, health, and account activity.
func (s *Server) buildRootRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/", s.handleHome)
	r.Post("/", s.handleLogin)
	r.Handle("/logout", http.HandlerFunc(s.handleLogout))
	r.Get("/health", s.handleHealth)
	r.Get("/account/activity", s.handleActivity)

	return r
}

// handleHome serves the login page for anonymous visitors and the
// filtered application list for authenticated users.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	username := s.sessions.Username(r)
	if username == "" {
		s.renderTemplate(w, "login.html", loginData{
			Logout:  r.URL.Query().Get("logout") == "1",
			Invalid: r.URL.Query().Get("invalid") == "1",
		})
		return
	}

	user, ok := lookupUser(s.registry.Current(), username)
	if !ok {
		s.logger.Error("session references unknown user",
			"username", username,
			"error", registry.ErrUnknownUser,
		)
		writeInternalError(w)
		return
	}

	var links []appLink
	for _, app := range s.apps {
		if !user.AllowedApp(app.ID) {
			continue
		}
		links = append(links, appLink{
			Name:        app.Name,
			Description: app.Description,
			URL:         app.URL(),
		})
	}

	s.renderTemplate(w, "home.html", homeData{
		Username: username,
		Apps:     links,
	})
}

// handleLogin verifies a submitted username/password pair. Success
// issues a session and redirects home; failure redirects back to the
// login page with the invalid indicator. The response never says which
// of the two inputs was wrong.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/?invalid=1", http.StatusSeeOther)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	if !s.gateway.CheckCredentials(username, password) {
		s.gateway.Audit(r.Context(), audit.Event{
			Action:     audit.ActionLoginFailure,
			Username:   username,
			RemoteAddr: r.RemoteAddr,
		})
		http.Redirect(w, r, "/?invalid=1", http.StatusSeeOther)
		return
	}

	if err := s.sessions.Issue(w, username); err != nil {
		s.logger.Error("issuing session", "username", username, "error", err)
		writeInternalError(w)
		return
	}

	s.gateway.Audit(r.Context(), audit.Event{
		Action:     audit.ActionLoginSuccess,
		Username:   username,
		RemoteAddr: r.RemoteAddr,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout clears the session and redirects to the login page with
// the logged-out indicator.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	username := s.sessions.Username(r)
	s.sessions.Clear(w)

	if username != "" {
		s.gateway.Audit(r.Context(), audit.Event{
			Action:     audit.ActionLogout,
			Username:   username,
			RemoteAddr: r.RemoteAddr,
		})
	}

	http.Redirect(w, r, "/?logout=1", http.StatusFound)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleActivity returns the authenticated user's own recent audit
// events. Responds 404 when auditing is disabled.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	username := s.sessions.Username(r)
	if username == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if s.auditRepo == nil {
		writeNotFound(w)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	result, err := s.auditRepo.List(r.Context(), audit.Filter{
		Username: username,
		Limit:    limit,
	})
	if err != nil {
		s.logger.Error("listing audit events", "username", username, "error", err)
		writeInternalError(w)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
