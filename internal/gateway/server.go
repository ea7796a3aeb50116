package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gatehouse-sso/gatehouse/internal/apps"
	"github.com/gatehouse-sso/gatehouse/internal/audit"
	"github.com/gatehouse-sso/gatehouse/internal/auth"
	"github.com/gatehouse-sso/gatehouse/internal/infrastructure/config"
	"github.com/gatehouse-sso/gatehouse/internal/infrastructure/logging"
	"github.com/gatehouse-sso/gatehouse/internal/registry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the gateway server.
type Deps struct {
	Config   *config.Config
	Logger   *logging.Logger
	Registry *registry.Registry
	Apps     []*apps.App

	// Audit is optional; nil disables the audit trail.
	Audit audit.Repository

	Version string
}

// Server is the gateway's HTTP server: the virtual-host router wrapped
// in the global middleware chain, plus the root-domain pages.
type Server struct {
	cfg       *config.Config
	logger    *logging.Logger
	registry  *registry.Registry
	sessions  *auth.Sessions
	gateway   *Gateway
	apps      []*apps.App
	auditRepo audit.Repository
	version   string

	handler http.Handler
	server  *http.Server
}

// NewServer creates the gateway server with the given dependencies.
// The server is not started until Start is called.
func NewServer(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if deps.Config.Session.Secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}

	cfg := deps.Config
	sessions := auth.NewSessions(
		cfg.Session.Secret,
		cfg.Domain,
		cfg.SessionMaxAge(),
		cfg.SecureCookies(),
	)

	var recorder audit.Recorder = audit.Noop{}
	if deps.Audit != nil {
		recorder = deps.Audit
	}

	s := &Server{
		cfg:       cfg,
		logger:    deps.Logger,
		registry:  deps.Registry,
		sessions:  sessions,
		apps:      deps.Apps,
		auditRepo: deps.Audit,
		version:   deps.Version,
	}
	s.gateway = New(deps.Registry, sessions, cfg.Domain, recorder, deps.Logger)
	s.handler = s.buildHandler()

	return s, nil
}

// Gateway returns the authorization gateway, for callers that compose
// their own pipelines.
func (s *Server) Gateway() *Gateway {
	return s.gateway
}

// Handler returns the complete request handler: global middleware
// around the virtual-host router. Useful for tests and custom
// listeners.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// buildHandler composes the full pipeline.
//
// Per application: Restrict (public bypass, authenticate, authorize)
// then the app's own handler. The root domain gets the gateway's own
// routes. Everything sits behind request ID, logging, recovery, and
// (in production behind TLS) HTTPS enforcement.
func (s *Server) buildHandler() http.Handler {
	vhosts := NewVHostRouter(nil)

	for _, app := range s.apps {
		pipeline := s.gateway.Restrict(app)(app.Handler)
		vhosts.Bind(app.Host, pipeline)
		s.logger.Info("app registered",
			"app", app.ID,
			"name", app.Name,
			"host", app.Host,
		)
	}

	vhosts.Bind(s.cfg.Domain, s.buildRootRouter())

	var handler http.Handler = vhosts
	if s.cfg.Production && s.cfg.Server.HTTPS {
		handler = s.httpsRedirectMiddleware(handler)
	}
	handler = s.recoveryMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = s.requestIDMiddleware(handler)
	return handler
}

// Start begins listening for HTTP connections in a background
// goroutine. The server can be stopped with Close.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:           s.handler,
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway server error", "error", err)
		}
	}()

	s.logger.Info("gateway listening",
		"address", s.server.Addr,
		"domain", s.cfg.Domain,
	)
	return nil
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("gateway shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down gateway: %w", err)
	}
	return nil
}
