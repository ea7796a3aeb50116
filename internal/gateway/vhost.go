package gateway

import (
	"net/http"

	"github.com/gatehouse-sso/gatehouse/internal/apps"
)

// VHostRouter dispatches requests to application pipelines by the
// request's target host. Bindings are built once at startup and matched
// exactly (ports and case ignored); unmatched hosts fall through to the
// fallback handler.
type VHostRouter struct {
	bindings []hostBinding
	fallback http.Handler
}

type hostBinding struct {
	host    string
	handler http.Handler
}

// NewVHostRouter creates a router with the given fallback for unmatched
// hosts. A nil fallback responds 404.
func NewVHostRouter(fallback http.Handler) *VHostRouter {
	if fallback == nil {
		fallback = http.NotFoundHandler()
	}
	return &VHostRouter{fallback: fallback}
}

// Bind adds a host binding. Bindings are matched in registration order;
// the first match wins.
func (v *VHostRouter) Bind(host string, handler http.Handler) {
	v.bindings = append(v.bindings, hostBinding{
		host:    apps.NormalizeHost(host),
		handler: handler,
	})
}

// ServeHTTP dispatches to the pipeline bound to the request's host.
func (v *VHostRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host := apps.NormalizeHost(r.Host)
	for _, b := range v.bindings {
		if b.host == host {
			b.handler.ServeHTTP(w, r)
			return
		}
	}
	v.fallback.ServeHTTP(w, r)
}
