package orgs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewsync/crewsync/pkg/audit"
	"github.com/crewsync/crewsync/pkg/orgs"
	"github.com/crewsync/crewsync/pkg/roles"
	"github.com/crewsync/crewsync/pkg/store"
	evsync "github.com/crewsync/crewsync/pkg/sync"
)

func TestInviteMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrg(t, roles.TierPro)

	t.Run("creates a membership", func(t *testing.T) {
		m, err := f.service.InviteMember(ctx, "org-1", "u1", roles.OrgRoleMember, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, roles.OrgRoleMember, m.OrgRole)
		assert.Equal(t, "admin-1", m.InvitedBy)
	})

	t.Run("re-invite keeps the original join record", func(t *testing.T) {
		first, err := f.service.GetMembership(ctx, "org-1", "u1")
		require.NoError(t, err)

		updated, err := f.service.InviteMember(ctx, "org-1", "u1", roles.OrgRoleAdmin, "admin-2")
		require.NoError(t, err)
		assert.Equal(t, roles.OrgRoleAdmin, updated.OrgRole)
		assert.Equal(t, first.InvitedBy, updated.InvitedBy)
		assert.Equal(t, first.JoinedAt, updated.JoinedAt)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := f.service.InviteMember(ctx, "org-1", "u2", "SUPERUSER", "admin-1")
		require.Error(t, err)
		assert.True(t, roles.IsUnknownRole(err))
	})

	t.Run("rejects unknown organization", func(t *testing.T) {
		_, err := f.service.InviteMember(ctx, "org-404", "u2", roles.OrgRoleViewer, "admin-1")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestListMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrg(t, roles.TierPro)
	f.seedMember(t, "u1", roles.OrgRoleMember)
	f.seedMember(t, "u2", roles.OrgRoleViewer)

	members, err := f.service.ListMembers(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrg(t, roles.TierPro)
	f.seedMember(t, "u1", roles.OrgRoleMember)
	f.seedMember(t, "u2", roles.OrgRoleMember)

	for _, project := range []string{"p1", "p2"} {
		_, err := f.service.AssignRole(ctx, orgs.AssignRoleRequest{
			OrganizationID: "org-1", UserID: "u1", ProjectID: project, ActorID: "admin-1",
		})
		require.NoError(t, err)
	}
	_, err := f.service.AssignRole(ctx, orgs.AssignRoleRequest{
		OrganizationID: "org-1", UserID: "u2", ProjectID: "p1", ActorID: "admin-1",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.RemoveMember(ctx, "org-1", "u1", "admin-1"))

	t.Run("membership is gone", func(t *testing.T) {
		_, err := f.service.GetMembership(ctx, "org-1", "u1")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("only the removed user's mappings are deleted", func(t *testing.T) {
		_, err := f.service.ResolveMapping(ctx, "u1", "p1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = f.service.ResolveMapping(ctx, "u1", "p2")
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = f.service.ResolveMapping(ctx, "u2", "p1")
		assert.NoError(t, err)
	})

	t.Run("removal events were enqueued", func(t *testing.T) {
		events, err := f.store.ListByStatus(ctx, evsync.StatusPending, 20)
		require.NoError(t, err)
		var removals int
		for _, e := range events {
			if e.Type == evsync.EventRoleRemoved && e.UserID == "u1" {
				removals++
			}
		}
		assert.Equal(t, 2, removals)
	})

	t.Run("audit trail records the offboarding", func(t *testing.T) {
		assert.NotEmpty(t, f.audit.byType(audit.EventTypeOrgMemberRemoved))
		assert.Len(t, f.audit.byType(audit.EventTypeRoleRemoved), 2)
	})
}
