package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewsync/crewsync/pkg/bridge"
	"github.com/crewsync/crewsync/pkg/roles"
)

func mappingFor(t *testing.T, orgRole roles.OrgRole, tier roles.Tier) bridge.Mapping {
	t.Helper()
	m, err := bridge.Map(orgRole, nil, tier)
	require.NoError(t, err)
	return *m
}

func TestResolveConflicts(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	event := func(id, user, project string, m bridge.Mapping, created time.Time) *SyncEvent {
		return &SyncEvent{
			ID:             id,
			Type:           EventRoleAssigned,
			SourceContext:  ContextLicensing,
			UserID:         user,
			ProjectID:      project,
			OrganizationID: "org-1",
			Payload:        m,
			Status:         StatusPending,
			CreatedAt:      created,
		}
	}

	admin := mappingFor(t, roles.OrgRoleAdmin, roles.TierEnterprise)
	viewer := mappingFor(t, roles.OrgRoleViewer, roles.TierEnterprise)

	t.Run("higher effective hierarchy wins", func(t *testing.T) {
		low := event("ev-1", "u1", "p1", viewer, base)
		high := event("ev-2", "u1", "p1", admin, base.Add(time.Minute))

		winners, superseded := resolveConflicts([]*SyncEvent{low, high})
		require.Len(t, winners, 1)
		assert.Equal(t, "ev-2", winners[0].ID)
		assert.Equal(t, map[string]string{"ev-1": "ev-2"}, superseded)
	})

	t.Run("equal hierarchy breaks to earlier created", func(t *testing.T) {
		first := event("ev-b", "u1", "p1", admin, base)
		second := event("ev-a", "u1", "p1", admin, base.Add(time.Second))

		winners, superseded := resolveConflicts([]*SyncEvent{second, first})
		require.Len(t, winners, 1)
		assert.Equal(t, "ev-b", winners[0].ID)
		assert.Equal(t, "ev-b", superseded["ev-a"])
	})

	t.Run("equal created breaks to smaller id", func(t *testing.T) {
		a := event("ev-a", "u1", "p1", admin, base)
		b := event("ev-b", "u1", "p1", admin, base)

		winners, _ := resolveConflicts([]*SyncEvent{b, a})
		require.Len(t, winners, 1)
		assert.Equal(t, "ev-a", winners[0].ID)
	})

	t.Run("distinct keys never conflict", func(t *testing.T) {
		e1 := event("ev-1", "u1", "p1", admin, base)
		e2 := event("ev-2", "u1", "p2", viewer, base)
		e3 := event("ev-3", "u2", "p1", viewer, base)

		winners, superseded := resolveConflicts([]*SyncEvent{e1, e2, e3})
		assert.Len(t, winners, 3)
		assert.Empty(t, superseded)
	})

	t.Run("deterministic regardless of batch order", func(t *testing.T) {
		e1 := event("ev-1", "u1", "p1", viewer, base)
		e2 := event("ev-2", "u1", "p1", admin, base.Add(time.Hour))
		e3 := event("ev-3", "u1", "p1", admin, base.Add(2*time.Hour))

		forward, _ := resolveConflicts([]*SyncEvent{e1, e2, e3})
		reversed, _ := resolveConflicts([]*SyncEvent{e3, e2, e1})
		require.Len(t, forward, 1)
		require.Len(t, reversed, 1)
		assert.Equal(t, forward[0].ID, reversed[0].ID)
		assert.Equal(t, "ev-2", forward[0].ID)
	})

	t.Run("winners preserve batch order", func(t *testing.T) {
		e1 := event("ev-1", "u1", "p1", admin, base)
		e2 := event("ev-2", "u2", "p1", viewer, base)
		e3 := event("ev-3", "u3", "p1", viewer, base)

		winners, _ := resolveConflicts([]*SyncEvent{e1, e2, e3})
		require.Len(t, winners, 3)
		assert.Equal(t, []string{"ev-1", "ev-2", "ev-3"}, []string{winners[0].ID, winners[1].ID, winners[2].ID})
	})
}

func TestSyncEventValidate(t *testing.T) {
	admin := mappingFor(t, roles.OrgRoleAdmin, roles.TierEnterprise)

	t.Run("valid assignment", func(t *testing.T) {
		e := NewEvent(EventRoleAssigned, ContextLicensing, "u1", "p1", "org-1", admin)
		assert.NoError(t, e.Validate())
	})

	t.Run("unknown type", func(t *testing.T) {
		e := NewEvent("ROLE_EXPLODED", ContextLicensing, "u1", "p1", "org-1", admin)
		assert.Error(t, e.Validate())
	})

	t.Run("missing ids", func(t *testing.T) {
		e := NewEvent(EventRoleAssigned, ContextLicensing, "", "p1", "org-1", admin)
		assert.Error(t, e.Validate())
	})

	t.Run("removal needs no payload", func(t *testing.T) {
		e := NewEvent(EventRoleRemoved, ContextDashboard, "u1", "p1", "org-1", bridge.Mapping{})
		assert.NoError(t, e.Validate())
	})

	t.Run("inconsistent payload rejected", func(t *testing.T) {
		broken := admin
		broken.EffectiveHierarchy = 7
		e := NewEvent(EventRoleAssigned, ContextLicensing, "u1", "p1", "org-1", broken)
		assert.Error(t, e.Validate())
	})
}
