package gateway

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gatehouse-sso/gatehouse/internal/apps"
	"github.com/gatehouse-sso/gatehouse/internal/audit"
	"github.com/gatehouse-sso/gatehouse/internal/auth"
	"github.com/gatehouse-sso/gatehouse/internal/registry"
)

// Logger defines the logging interface used by the Gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Gateway makes the per-request access decision for every fronted
// application: public bypass, authentication, allow-list authorization.
type Gateway struct {
	registry *registry.Registry
	sessions *auth.Sessions
	domain   string
	audit    audit.Recorder
	logger   Logger
}

// New creates a gateway over the given registry and session codec.
// The domain is where unauthenticated requests are redirected.
func New(reg *registry.Registry, sessions *auth.Sessions, domain string, recorder audit.Recorder, logger Logger) *Gateway {
	if recorder == nil {
		recorder = audit.Noop{}
	}
	return &Gateway{
		registry: reg,
		sessions: sessions,
		domain:   domain,
		audit:    recorder,
		logger:   logger,
	}
}

// CheckCredentials verifies a username/password pair against the
// current registry snapshot. Unknown users and wrong passwords are both
// a plain false.
func (g *Gateway) CheckCredentials(username, password string) bool {
	snap := g.registry.Current()
	if snap == nil {
		return false
	}
	user, ok := snap.Lookup(username)
	if !ok {
		return false
	}
	return user.Credentials.Verify(password)
}

// checkBearer validates an Authorization header of the form
// "Bearer base64(username:password)" and returns the authenticated
// username, or "" on any malformed or failed input.
func (g *Gateway) checkBearer(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}

	raw, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return ""
	}

	username, password, ok := strings.Cut(string(raw), ":")
	if !ok {
		return ""
	}
	if !g.CheckCredentials(username, password) {
		return ""
	}
	return username
}

// Restrict returns the authorization middleware for one application.
//
// The decision sequence per request:
//  1. Public-path bypass: matching requests are forwarded untouched,
//     with no identity attached.
//  2. Authentication: session cookie first, then bearer credentials.
//     Bearer identities are scoped to the single request; no session
//     cookie is written back.
//  3. Challenge: unauthenticated requests are redirected to the
//     gateway's root domain, scheme matching the inbound request.
//  4. Authorization: the identity's allow-list must include the app.
//     A miss responds 404 with an empty body, deliberately
//     indistinguishable from an application that does not exist.
//
// An authenticated identity missing from the current snapshot (a stale
// session for a deleted user) is an internal error for that request,
// not a silent denial.
func (g *Gateway) Restrict(app *apps.App) func(http.Handler) http.Handler {
	public := compilePublic(app.Public)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public.matches(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			username := g.sessions.Username(r)
			if username == "" {
				header := r.Header.Get("Authorization")
				if bearer := g.checkBearer(header); bearer != "" {
					username = bearer
					g.record(r, audit.ActionBearerSuccess, username, app.ID)
				} else {
					if header != "" {
						g.record(r, audit.ActionBearerFailure, "", app.ID)
					}
					g.challenge(w, r)
					return
				}
			}

			snap := g.registry.Current()
			user, ok := lookupUser(snap, username)
			if !ok {
				// A valid session or bearer identity that the registry no
				// longer knows. Surface it rather than treating the caller
				// as anonymous.
				g.logger.Error("authenticated identity not in registry",
					"username", username,
					"app", app.ID,
					"error", registry.ErrUnknownUser,
				)
				writeInternalError(w)
				return
			}

			if !user.AllowedApp(app.ID) {
				g.record(r, audit.ActionDenied, username, app.ID)
				writeNotFound(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), username)))
		})
	}
}

// challenge redirects an unauthenticated request to the gateway's root
// domain. Terminal for the request.
func (g *Gateway) challenge(w http.ResponseWriter, r *http.Request) {
	scheme := "http://"
	if requestIsSecure(r) {
		scheme = "https://"
	}
	http.Redirect(w, r, scheme+g.domain, http.StatusFound)
}

func (g *Gateway) record(r *http.Request, action, username, appID string) {
	g.audit.Record(r.Context(), audit.Event{
		Action:     action,
		Username:   username,
		AppID:      appID,
		RemoteAddr: r.RemoteAddr,
	})
}

// lookupUser is a nil-safe snapshot lookup.
func lookupUser(snap *registry.Snapshot, username string) (*registry.User, bool) {
	if snap == nil {
		return nil, false
	}
	return snap.Lookup(username)
}

// requestIsSecure reports whether the inbound request arrived over
// HTTPS, either directly or via a trusted proxy's forwarded-protocol
// header.
func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// Sessions exposes the session codec for the root-domain handlers.
func (g *Gateway) Sessions() *auth.Sessions {
	return g.sessions
}

// Registry exposes the registry for the root-domain handlers.
func (g *Gateway) Registry() *registry.Registry {
	return g.registry
}

// Audit records an event on behalf of the root-domain handlers.
func (g *Gateway) Audit(ctx context.Context, event audit.Event) {
	g.audit.Record(ctx, event)
}
