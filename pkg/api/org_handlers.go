package api

import (
	"errors"
	"net/http"

	"github.com/crewsync/crewsync/pkg/httputil"
	"github.com/crewsync/crewsync/pkg/roles"
	"github.com/crewsync/crewsync/pkg/store"
)

// actorID returns the authenticated subject, or "anonymous" when
// authorization is disabled.
func (s *Server) actorID(r *http.Request) string {
	if c := claimsFrom(r); c != nil {
		return c.Subject
	}
	return "anonymous"
}

func (s *Server) listProjectRoles(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, roles.ProjectRoles())
}

func (s *Server) listOrgRoles(w http.ResponseWriter, r *http.Request) {
	type orgRole struct {
		Name      roles.OrgRole `json:"name"`
		Hierarchy int           `json:"hierarchy"`
	}
	out := make([]orgRole, 0, 4)
	for _, role := range roles.OrgRoles() {
		out = append(out, orgRole{Name: role, Hierarchy: role.Hierarchy()})
	}
	httputil.WriteSuccess(w, out)
}

func (s *Server) listTiers(w http.ResponseWriter, r *http.Request) {
	out := make([]roles.TierPolicy, 0, 3)
	for _, tier := range []roles.Tier{roles.TierBasic, roles.TierPro, roles.TierEnterprise} {
		policy, err := roles.PolicyFor(tier)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		out = append(out, policy)
	}
	httputil.WriteSuccess(w, out)
}

type createOrganizationRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Tier string `json:"tier,omitempty"`
}

func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	tier := roles.Tier(req.Tier)
	if req.Tier != "" {
		parsed, err := roles.ParseTier(req.Tier)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		tier = parsed
	}

	org, err := s.service.CreateOrganization(r.Context(), req.ID, req.Name, tier, s.actorID(r))
	if err != nil {
		httputil.WriteConflict(w, err.Error())
		return
	}
	httputil.WriteCreated(w, org)
}

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgID")
	if !ok {
		return
	}
	org, err := s.service.GetOrganization(r.Context(), orgID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

type updateTierRequest struct {
	Tier string `json:"tier"`
}

func (s *Server) updateTier(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgID")
	if !ok {
		return
	}
	var req updateTierRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	tier, err := roles.ParseTier(req.Tier)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := s.service.UpdateTier(r.Context(), orgID, tier, s.actorID(r)); err != nil {
		s.writeStoreError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgID")
	if !ok {
		return
	}
	members, err := s.service.ListMembers(r.Context(), orgID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

type addMemberRequest struct {
	UserID  string `json:"user_id"`
	OrgRole string `json:"org_role"`
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgID")
	if !ok {
		return
	}
	var req addMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "user_id") {
		return
	}
	orgRole, err := roles.ParseOrgRole(req.OrgRole)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	m, err := s.service.InviteMember(r.Context(), orgID, req.UserID, orgRole, s.actorID(r))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	httputil.WriteCreated(w, m)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "userID")
	if !ok {
		return
	}

	if err := s.service.RemoveMember(r.Context(), orgID, userID, s.actorID(r)); err != nil {
		s.writeStoreError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// writeStoreError maps store errors onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteNotFound(w, err.Error())
		return
	}
	if roles.IsUnknownRole(err) || roles.IsConfigurationError(err) {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteInternalError(w, err)
}
