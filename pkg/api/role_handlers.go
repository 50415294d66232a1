package api

import (
	"net/http"

	"github.com/crewsync/crewsync/pkg/audit"
	"github.com/crewsync/crewsync/pkg/claims"
	"github.com/crewsync/crewsync/pkg/httputil"
	"github.com/crewsync/crewsync/pkg/orgs"
	"github.com/crewsync/crewsync/pkg/permissions"
	"github.com/crewsync/crewsync/pkg/roles"
	evsync "github.com/crewsync/crewsync/pkg/sync"
)

func claimsFrom(r *http.Request) *claims.CrewClaims {
	return claims.FromContext(r.Context())
}

type assignRoleRequest struct {
	ProjectID string              `json:"project_id"`
	Template  *roles.RoleTemplate `json:"template,omitempty"`
	Source    string              `json:"source,omitempty"`
}

func (s *Server) assignRole(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "userID")
	if !ok {
		return
	}
	var req assignRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.ProjectID, "project_id") {
		return
	}

	rec, err := s.service.AssignRole(r.Context(), orgs.AssignRoleRequest{
		OrganizationID: orgID,
		UserID:         userID,
		ProjectID:      req.ProjectID,
		Template:       req.Template,
		Source:         evsync.SourceContext(req.Source),
		ActorID:        s.actorID(r),
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, rec)
}

func (s *Server) removeRole(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "userID")
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathStringOrError(w, r, "projectID")
	if !ok {
		return
	}

	if err := s.service.RemoveRole(r.Context(), orgID, userID, projectID, evsync.ContextLicensing, s.actorID(r)); err != nil {
		s.writeStoreError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) getMapping(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "userID")
	if !ok {
		return
	}
	projectID, ok := httputil.ParsePathStringOrError(w, r, "projectID")
	if !ok {
		return
	}

	m, err := s.service.ResolveMapping(r.Context(), userID, projectID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, m)
}

type tokenResponse struct {
	Token string `json:"token"`
}

// issueToken mints a claims token for the user's resolved mapping on one
// project. Users can mint their own token; minting for someone else needs
// the team-management permission.
func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	if s.tokener == nil {
		httputil.WriteErrorMessage(w, http.StatusNotImplemented, "token issuance requires a configured secret")
		return
	}
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "userID")
	if !ok {
		return
	}
	projectID := httputil.ParseQueryString(r, "project", "")
	if !httputil.RequireNonEmpty(w, projectID, "project") {
		return
	}

	if c := claimsFrom(r); c != nil && c.Subject != userID && !c.HasPermission(permissions.NameManageTeam) {
		s.logAudit(r, audit.Denied(r.Context(), c.Subject, audit.ResourceTypeToken, userID, "token requested for another user"))
		httputil.WriteForbidden(w, "cannot mint a token for another user")
		return
	}

	m, err := s.service.ResolveMapping(r.Context(), userID, projectID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	token, err := s.tokener.Issue(claims.FromMapping(userID, orgID, projectID, m))
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.TokensIssuedTotal.Inc()
	}
	event := audit.NewEvent(r.Context(), audit.EventTypeTokenIssued, audit.EventStatusSuccess)
	event.ActorID = s.actorID(r)
	event.UserID = userID
	event.ProjectID = projectID
	event.OrganizationID = orgID
	event.ResourceType = audit.ResourceTypeToken
	event.ResourceID = userID + "/" + projectID
	s.logAudit(r, event)

	httputil.WriteSuccess(w, tokenResponse{Token: token})
}

func (s *Server) logAudit(r *http.Request, event *audit.Event) {
	if err := s.audit.Log(r.Context(), event); err != nil {
		s.logger.WithError(err).Warn("failed to write audit event")
	}
}
