package claims

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewsync/crewsync/pkg/bridge"
	"github.com/crewsync/crewsync/pkg/permissions"
	"github.com/crewsync/crewsync/pkg/roles"
)

var testSecret = []byte("test-secret-0123456789")

func testMapping(t *testing.T) *bridge.Mapping {
	t.Helper()
	m, err := bridge.Map(roles.OrgRoleAdmin, nil, roles.TierPro)
	require.NoError(t, err)
	return m
}

func TestIssueAndParse(t *testing.T) {
	tok, err := NewTokener(testSecret, time.Minute)
	require.NoError(t, err)

	c := FromMapping("user-1", "org-1", "proj-1", testMapping(t))
	signed, err := tok.Issue(c)
	require.NoError(t, err)

	parsed, err := tok.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", parsed.Subject)
	assert.Equal(t, "org-1", parsed.OrganizationID)
	assert.Equal(t, "ADMIN", parsed.TeamMemberRole)
	assert.Equal(t, "MANAGER", parsed.DashboardRole)
	assert.Equal(t, 90, parsed.TeamMemberHierarchy)
	assert.Equal(t, 80, parsed.DashboardHierarchy)
	assert.Equal(t, 90, parsed.EffectiveHierarchy)
	assert.Equal(t, "PRO", parsed.Tier)
	assert.Contains(t, parsed.Permissions, permissions.NameManageTeam)
	assert.True(t, parsed.HasPermission(permissions.NameViewFinancials))
	assert.False(t, parsed.HasPermission(permissions.NameViewFinancials+"X"))
}

func TestParse_WrongSecret(t *testing.T) {
	tok, err := NewTokener(testSecret, time.Minute)
	require.NoError(t, err)
	other, err := NewTokener([]byte("another-secret-abcdef"), time.Minute)
	require.NoError(t, err)

	signed, err := tok.Issue(FromMapping("user-1", "org-1", "", testMapping(t)))
	require.NoError(t, err)

	_, err = other.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Expired(t *testing.T) {
	tok, err := NewTokener(testSecret, time.Minute)
	require.NoError(t, err)
	tok.ttl = -time.Minute

	signed, err := tok.Issue(FromMapping("user-1", "org-1", "", testMapping(t)))
	require.NoError(t, err)

	_, err = tok.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssue_RejectsInconsistentClaims(t *testing.T) {
	tok, err := NewTokener(testSecret, time.Minute)
	require.NoError(t, err)

	c := FromMapping("user-1", "org-1", "", testMapping(t))
	c.EffectiveHierarchy = 55
	_, err = tok.Issue(c)
	require.Error(t, err)

	c = FromMapping("user-1", "", "", testMapping(t))
	_, err = tok.Issue(c)
	require.Error(t, err)
}

func TestNewTokener_EmptySecret(t *testing.T) {
	_, err := NewTokener(nil, time.Minute)
	require.Error(t, err)
}

func issueTestToken(t *testing.T, tok *Tokener, orgRole roles.OrgRole, tier roles.Tier) string {
	t.Helper()
	m, err := bridge.Map(orgRole, nil, tier)
	require.NoError(t, err)
	signed, err := tok.Issue(FromMapping("user-1", "org-1", "proj-1", m))
	require.NoError(t, err)
	return signed
}

func TestMiddleware_RequireAuth(t *testing.T) {
	tok, err := NewTokener(testSecret, time.Minute)
	require.NoError(t, err)
	mw := NewMiddleware(tok)

	var gotClaims *CrewClaims
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No token: deny.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Garbage token: deny.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token: claims land in context.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, tok, roles.OrgRoleAdmin, roles.TierPro))
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, 90, gotClaims.EffectiveHierarchy)
}

func TestMiddleware_RequireHierarchy(t *testing.T) {
	tok, err := NewTokener(testSecret, time.Minute)
	require.NoError(t, err)
	mw := NewMiddleware(tok)

	handler := mw.RequireAuth(mw.RequireHierarchy(90)(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, tok, roles.OrgRoleMember, roles.TierPro))
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, tok, roles.OrgRoleOwner, roles.TierPro))
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_RequireOrganization(t *testing.T) {
	tok, err := NewTokener(testSecret, time.Minute)
	require.NoError(t, err)
	mw := NewMiddleware(tok)

	org := "org-2"
	handler := mw.RequireAuth(mw.RequireOrganization(func(*http.Request) string { return org })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, tok, roles.OrgRoleOwner, roles.TierPro))
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	org = "org-1"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
