package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/billing"
	"github.com/platinummonkey/mediagate/pkg/blob"
	"github.com/platinummonkey/mediagate/pkg/bundles"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/groups"
	"github.com/platinummonkey/mediagate/pkg/observability"
	"github.com/platinummonkey/mediagate/pkg/rbac"
	"github.com/platinummonkey/mediagate/pkg/sharing"
)

// Services are the domain services the HTTP surface drives
type Services struct {
	Profiles *rbac.Manager
	Content  *content.Service
	Resolver *access.Resolver
	Grants   *access.GrantService
	Groups   *groups.Service
	Bundles  *bundles.Service
	Billing  *billing.Service
	Sharing  *sharing.Service
	Blobs    blob.Store
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	api     *mux.Router
	svc     Services
	metrics *observability.Metrics
}

// NewServer creates a new API server. metrics may be nil.
func NewServer(svc Services, metrics *observability.Metrics) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		svc:     svc,
		metrics: metrics,
	}
	s.api = s.router.PathPrefix("/api/v1").Subrouter()
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	for _, registrar := range []RouteRegistrar{
		&ProfileHandlers{s},
		&ContentHandlers{s},
		&AccessHandlers{s},
		&GroupHandlers{s},
		&BundleHandlers{s},
		&BillingHandlers{s},
		&SharingHandlers{s},
		&UploadHandlers{s},
	} {
		registrar.RegisterRoutes(s.api)
	}
}

// Use adds middleware to every API route
func (s *Server) Use(mw ...mux.MiddlewareFunc) {
	s.api.Use(mw...)
}

// Router exposes the root router so health and metrics routes can be mounted beside the API
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

func (s *Server) recordAccess(kind access.SubjectKind, d *access.Decision) {
	if s.metrics != nil && d != nil {
		s.metrics.RecordAccess(string(kind), string(d.Reason), d.Allowed)
	}
}

func (s *Server) recordTransition(action string, err error) {
	if s.metrics != nil {
		s.metrics.RecordTransition(action, err)
	}
}

func (s *Server) recordOrder(o *billing.Order) {
	if s.metrics != nil && o != nil {
		s.metrics.OrdersTotal.WithLabelValues(string(o.Status)).Inc()
	}
}
