// Package apps defines the application descriptors the gateway fronts
// and the built-in handler kinds.
//
// An App binds an application ID to a virtual host and the handler that
// serves it. Handlers are external collaborators as far as the gateway
// is concerned: the two built-in kinds are thin adapters over the
// standard library's file server and reverse proxy, and programmatic
// callers can supply any http.Handler.
package apps

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gatehouse-sso/gatehouse/internal/auth"
	"github.com/gatehouse-sso/gatehouse/internal/infrastructure/config"
)

// IdentityHeader is set on proxied upstream requests to the
// authenticated username, letting upstream applications know who the
// gateway authenticated. It is stripped from inbound requests first so
// clients cannot spoof it.
const IdentityHeader = "X-Gatehouse-User"

// App describes one application fronted by the gateway.
type App struct {
	// ID is the application identifier referenced by user allow-lists.
	ID string

	// Name and Description are shown on the home page.
	Name        string
	Description string

	// Host is the virtual host the app answers on.
	Host string

	// Path is the app's base path, used for the home page link. Defaults
	// to "/".
	Path string

	// Public is the list of path patterns reachable without
	// authentication.
	Public []string

	// Handler serves the application once the gateway has let the
	// request through.
	Handler http.Handler
}

// URL returns the scheme-relative link to the app for the home page.
func (a *App) URL() string {
	p := a.Path
	if p == "" {
		p = "/"
	}
	return "//" + a.Host + p
}

// FromConfig builds application descriptors with their built-in
// handlers from configuration.
func FromConfig(cfgs []config.AppConfig) ([]*App, error) {
	built := make([]*App, 0, len(cfgs))
	for i := range cfgs {
		c := &cfgs[i]

		app := &App{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Host:        c.Host,
			Path:        c.Path,
			Public:      c.Public,
		}

		switch c.Kind {
		case "static":
			app.Handler = Static(c.Root)
		case "proxy":
			h, err := Proxy(c.Target)
			if err != nil {
				return nil, fmt.Errorf("app %q: %w", c.ID, err)
			}
			app.Handler = h
		default:
			return nil, fmt.Errorf("app %q: unknown kind %q", c.ID, c.Kind)
		}

		built = append(built, app)
	}
	return built, nil
}

// Static serves files from a directory root.
func Static(root string) http.Handler {
	return http.FileServer(http.Dir(root))
}

// Proxy forwards requests to an upstream target, rewriting the Host
// header to the target's. The authenticated username, when present, is
// passed upstream in the identity header.
func Proxy(target string) (http.Handler, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy target: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("proxy target %q must be an absolute URL", target)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.SetXForwarded()

			// Act as an origin client towards the upstream.
			pr.Out.Host = u.Host

			pr.Out.Header.Del(IdentityHeader)
			if username := auth.IdentityFrom(pr.In.Context()); username != "" {
				pr.Out.Header.Set(IdentityHeader, username)
			}
		},
	}
	return proxy, nil
}

// NormalizeHost lowercases a host and strips any port and trailing dot,
// so config hosts and request hosts compare consistently.
func NormalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}
