package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewsync/crewsync/pkg/api"
	"github.com/crewsync/crewsync/pkg/bridge"
	"github.com/crewsync/crewsync/pkg/claims"
	"github.com/crewsync/crewsync/pkg/observability"
	"github.com/crewsync/crewsync/pkg/orgs"
	"github.com/crewsync/crewsync/pkg/roles"
	"github.com/crewsync/crewsync/pkg/store/memstore"
	evsync "github.com/crewsync/crewsync/pkg/sync"
)

type apiFixture struct {
	store   *memstore.Store
	service *orgs.Service
	tokener *claims.Tokener
	handler http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	st := memstore.New()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	queue := evsync.NewQueue(st, logger, nil)
	service := orgs.New(st, queue, nil, nil, logger, nil)

	tokener, err := claims.NewTokener([]byte("test-secret-for-handlers"), time.Hour)
	require.NoError(t, err)

	server := api.NewServer(service, st, queue, tokener, nil, logger, nil)
	return &apiFixture{
		store:   st,
		service: service,
		tokener: tokener,
		handler: server.Router(),
	}
}

// token mints a claims token for a user acting under the given org role.
func (f *apiFixture) token(t *testing.T, userID string, orgRole roles.OrgRole) string {
	t.Helper()
	m, err := bridge.Map(orgRole, nil, roles.TierEnterprise)
	require.NoError(t, err)
	tok, err := f.tokener.Issue(claims.FromMapping(userID, "org-1", "", m))
	require.NoError(t, err)
	return tok
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

// seed creates org-1 with a member ready for role assignment.
func (f *apiFixture) seed(t *testing.T, tier roles.Tier) {
	t.Helper()
	ctx := context.Background()
	_, err := f.service.CreateOrganization(ctx, "org-1", "Night Shoot Pictures", tier, "admin-1")
	require.NoError(t, err)
	_, err = f.service.InviteMember(ctx, "org-1", "u1", roles.OrgRoleMember, "admin-1")
	require.NoError(t, err)
}

func TestCatalogEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("project roles are public", func(t *testing.T) {
		rr := f.do(t, "GET", "/catalog/project-roles", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var catalog []roles.ProjectRole
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &catalog))
		assert.Len(t, catalog, len(roles.ProjectRoles()))
	})

	t.Run("org roles", func(t *testing.T) {
		rr := f.do(t, "GET", "/catalog/org-roles", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("tiers carry their ceilings", func(t *testing.T) {
		rr := f.do(t, "GET", "/catalog/tiers", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var tiers []roles.TierPolicy
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tiers))
		require.Len(t, tiers, 3)
		assert.Equal(t, 40, tiers[0].MaxHierarchy)
	})
}

func TestAuthorization(t *testing.T) {
	f := newAPIFixture(t)
	f.seed(t, roles.TierPro)

	t.Run("no token", func(t *testing.T) {
		rr := f.do(t, "GET", "/orgs/org-1/members", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rr := f.do(t, "GET", "/orgs/org-1/members", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("viewer cannot manage members", func(t *testing.T) {
		token := f.token(t, "viewer-1", roles.OrgRoleViewer)
		rr := f.do(t, "POST", "/orgs/org-1/members", token, addMember("u9", "MEMBER"))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("token scoped to another org is rejected", func(t *testing.T) {
		token := f.token(t, "admin-1", roles.OrgRoleOwner)
		rr := f.do(t, "GET", "/orgs/org-2/members", token, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func addMember(userID, role string) map[string]string {
	return map[string]string{"user_id": userID, "org_role": role}
}

func TestOrganizationLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.token(t, "admin-1", roles.OrgRoleOwner)

	rr := f.do(t, "POST", "/orgs", admin, map[string]string{
		"id": "org-1", "name": "Night Shoot Pictures", "tier": "pro",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	t.Run("duplicate create conflicts", func(t *testing.T) {
		rr := f.do(t, "POST", "/orgs", admin, map[string]string{"id": "org-1", "name": "Again"})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("get organization", func(t *testing.T) {
		rr := f.do(t, "GET", "/orgs/org-1", admin, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var org struct {
			Tier roles.Tier `json:"tier"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &org))
		assert.Equal(t, roles.TierPro, org.Tier)
	})

	t.Run("unknown tier rejected", func(t *testing.T) {
		rr := f.do(t, "PUT", "/orgs/org-1/tier", admin, map[string]string{"tier": "PLATINUM"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("tier update", func(t *testing.T) {
		rr := f.do(t, "PUT", "/orgs/org-1/tier", admin, map[string]string{"tier": "ENTERPRISE"})
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func TestRoleAssignmentFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.seed(t, roles.TierPro)
	admin := f.token(t, "admin-1", roles.OrgRoleOwner)

	rr := f.do(t, "POST", "/orgs/org-1/members/u1/role", admin, map[string]interface{}{
		"project_id": "p1",
		"template":   map[string]interface{}{"name": "EDITOR"},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var rec struct {
		Mapping bridge.Mapping `json:"mapping"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "EDITOR", rec.Mapping.ProjectRole.Name)
	assert.Equal(t, bridge.ReasonDirectName, rec.Mapping.Reason)

	t.Run("mapping is readable", func(t *testing.T) {
		rr := f.do(t, "GET", "/orgs/org-1/projects/p1/members/u1/mapping", admin, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var m bridge.Mapping
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
		assert.Equal(t, 60, m.ProjectRole.Hierarchy)
	})

	t.Run("missing mapping is 404", func(t *testing.T) {
		rr := f.do(t, "GET", "/orgs/org-1/projects/p9/members/u1/mapping", admin, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("assignment for non-member is rejected", func(t *testing.T) {
		rr := f.do(t, "POST", "/orgs/org-1/members/stranger/role", admin, map[string]interface{}{
			"project_id": "p1",
		})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("role removal", func(t *testing.T) {
		rr := f.do(t, "DELETE", "/orgs/org-1/members/u1/projects/p1/role", admin, nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = f.do(t, "GET", "/orgs/org-1/projects/p1/members/u1/mapping", admin, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestIssueToken(t *testing.T) {
	f := newAPIFixture(t)
	f.seed(t, roles.TierPro)
	admin := f.token(t, "admin-1", roles.OrgRoleOwner)

	rr := f.do(t, "POST", "/orgs/org-1/members/u1/role", admin, map[string]interface{}{"project_id": "p1"})
	require.Equal(t, http.StatusOK, rr.Code)

	t.Run("manager mints for a member", func(t *testing.T) {
		rr := f.do(t, "GET", "/orgs/org-1/members/u1/token?project=p1", admin, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

		c, err := f.tokener.Parse(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "u1", c.Subject)
		assert.Equal(t, "org-1", c.OrganizationID)
		assert.Equal(t, "PRODUCER", c.DashboardRole)
		assert.GreaterOrEqual(t, c.EffectiveHierarchy, 65)
		assert.NotEmpty(t, c.Permissions)
	})

	t.Run("member cannot mint for someone else", func(t *testing.T) {
		member := f.token(t, "u1", roles.OrgRoleMember)
		rr := f.do(t, "GET", "/orgs/org-1/members/u2/token?project=p1", member, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("project query param is required", func(t *testing.T) {
		rr := f.do(t, "GET", "/orgs/org-1/members/u1/token", admin, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestSyncAdminEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.seed(t, roles.TierPro)
	admin := f.token(t, "admin-1", roles.OrgRoleOwner)
	ctx := context.Background()

	rr := f.do(t, "POST", "/orgs/org-1/members/u1/role", admin, map[string]interface{}{"project_id": "p1"})
	require.Equal(t, http.StatusOK, rr.Code)

	pending, err := f.store.ListByStatus(ctx, evsync.StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, f.store.MarkFailed(ctx, pending[0].ID, "dashboard unreachable"))

	t.Run("lists failed events by default", func(t *testing.T) {
		rr := f.do(t, "GET", "/sync/events", admin, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Total  int64              `json:"total"`
			Events []*evsync.SyncEvent `json:"events"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.Total)
		require.Len(t, resp.Events, 1)
		assert.Equal(t, "dashboard unreachable", resp.Events[0].LastError)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		rr := f.do(t, "GET", "/sync/events?status=EXPLODED", admin, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("requeue returns the event to pending", func(t *testing.T) {
		rr := f.do(t, "POST", "/sync/events/"+pending[0].ID+"/requeue", admin, nil)
		require.Equal(t, http.StatusNoContent, rr.Code)

		e, err := f.store.Get(ctx, pending[0].ID)
		require.NoError(t, err)
		assert.Equal(t, evsync.StatusPending, e.Status)
		assert.Equal(t, 0, e.Attempt)
	})

	t.Run("requeue of a completed event conflicts", func(t *testing.T) {
		require.NoError(t, f.store.MarkCompleted(ctx, pending[0].ID))
		rr := f.do(t, "POST", "/sync/events/"+pending[0].ID+"/requeue", admin, nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("requeue of unknown event is 404", func(t *testing.T) {
		rr := f.do(t, "POST", "/sync/events/nope/requeue", admin, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
