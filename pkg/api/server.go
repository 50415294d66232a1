// Package api is the HTTP surface of the engine. Handlers authorize on
// hierarchy and permission claims carried by the bearer token, never on raw
// role names.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/crewsync/crewsync/pkg/audit"
	"github.com/crewsync/crewsync/pkg/claims"
	"github.com/crewsync/crewsync/pkg/httputil"
	"github.com/crewsync/crewsync/pkg/observability"
	"github.com/crewsync/crewsync/pkg/orgs"
	"github.com/crewsync/crewsync/pkg/permissions"
	evsync "github.com/crewsync/crewsync/pkg/sync"
)

// Server wires the service layer to the HTTP routes.
type Server struct {
	service *orgs.Service
	events  evsync.EventStore
	queue   *evsync.Queue
	tokener *claims.Tokener
	authz   *claims.Middleware
	audit   audit.Logger
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewServer creates the API server. auditLog and metrics may be nil; a nil
// tokener disables authorization, for local development only.
func NewServer(service *orgs.Service, events evsync.EventStore, queue *evsync.Queue, tokener *claims.Tokener, auditLog audit.Logger, logger *observability.Logger, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}

	s := &Server{
		service: service,
		events:  events,
		queue:   queue,
		tokener: tokener,
		audit:   auditLog,
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: metrics,
	}
	if tokener != nil {
		s.authz = claims.NewMiddleware(tokener)
	} else {
		logger.Warn("no token secret configured, API authorization is disabled")
	}

	s.setupRoutes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.logger))
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	s.router.Use(httputil.RecoveryMiddleware(s.logger))

	// Catalogs are immutable and public.
	s.router.HandleFunc("/catalog/project-roles", s.listProjectRoles).Methods("GET")
	s.router.HandleFunc("/catalog/org-roles", s.listOrgRoles).Methods("GET")
	s.router.HandleFunc("/catalog/tiers", s.listTiers).Methods("GET")

	// Organizations.
	s.router.Handle("/orgs", s.manage(s.createOrganization)).Methods("POST")
	s.router.Handle("/orgs/{orgID}", s.sameOrg(s.getOrganization)).Methods("GET")
	s.router.Handle("/orgs/{orgID}/tier", s.manageSameOrg(s.updateTier)).Methods("PUT")

	// Members.
	s.router.Handle("/orgs/{orgID}/members", s.sameOrg(s.listMembers)).Methods("GET")
	s.router.Handle("/orgs/{orgID}/members", s.manageSameOrg(s.addMember)).Methods("POST")
	s.router.Handle("/orgs/{orgID}/members/{userID}", s.manageSameOrg(s.removeMember)).Methods("DELETE")

	// Role resolution.
	s.router.Handle("/orgs/{orgID}/members/{userID}/role", s.manageSameOrg(s.assignRole)).Methods("POST")
	s.router.Handle("/orgs/{orgID}/members/{userID}/projects/{projectID}/role", s.manageSameOrg(s.removeRole)).Methods("DELETE")
	s.router.Handle("/orgs/{orgID}/projects/{projectID}/members/{userID}/mapping", s.sameOrg(s.getMapping)).Methods("GET")
	s.router.Handle("/orgs/{orgID}/members/{userID}/token", s.sameOrg(s.issueToken)).Methods("GET")

	// Synchronizer admin view.
	s.router.Handle("/sync/events", s.manage(s.listSyncEvents)).Methods("GET")
	s.router.Handle("/sync/events/{eventID}/requeue", s.manage(s.requeueSyncEvent)).Methods("POST")
}

// manage gates a handler on a valid token with the team-management
// permission.
func (s *Server) manage(h http.HandlerFunc) http.Handler {
	if s.authz == nil {
		return h
	}
	return s.authz.RequireAuth(s.authz.RequirePermission(permissions.NameManageTeam)(h))
}

// sameOrg gates a handler on a valid token scoped to the organization in the
// request path.
func (s *Server) sameOrg(h http.HandlerFunc) http.Handler {
	if s.authz == nil {
		return h
	}
	return s.authz.RequireAuth(s.authz.RequireOrganization(pathOrg)(h))
}

// manageSameOrg combines manage and sameOrg.
func (s *Server) manageSameOrg(h http.HandlerFunc) http.Handler {
	if s.authz == nil {
		return h
	}
	return s.authz.RequireAuth(s.authz.RequireOrganization(pathOrg)(s.authz.RequirePermission(permissions.NameManageTeam)(h)))
}

func pathOrg(r *http.Request) string {
	return mux.Vars(r)["orgID"]
}
