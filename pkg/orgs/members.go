package orgs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crewsync/crewsync/pkg/audit"
	"github.com/crewsync/crewsync/pkg/roles"
	"github.com/crewsync/crewsync/pkg/store"
	evsync "github.com/crewsync/crewsync/pkg/sync"
)

// InviteMember adds a user to an organization with the given organization
// role, or updates the role if the membership already exists.
func (s *Service) InviteMember(ctx context.Context, orgID, userID string, orgRole roles.OrgRole, invitedBy string) (*store.Membership, error) {
	if !orgRole.Valid() {
		return nil, &roles.UnknownRoleError{Name: string(orgRole), Catalog: "organization"}
	}
	if _, err := s.store.GetOrganization(ctx, orgID); err != nil {
		return nil, fmt.Errorf("organization %s: %w", orgID, err)
	}

	now := time.Now().UTC()
	m := &store.Membership{
		OrganizationID: orgID,
		UserID:         userID,
		OrgRole:        orgRole,
		InvitedBy:      invitedBy,
		JoinedAt:       now,
		UpdatedAt:      now,
	}
	if existing, err := s.store.GetMembership(ctx, orgID, userID); err == nil {
		m.InvitedBy = existing.InvitedBy
		m.JoinedAt = existing.JoinedAt
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if err := s.store.UpsertMembership(ctx, m); err != nil {
		return nil, err
	}

	event := audit.NewEvent(ctx, audit.EventTypeOrgMemberInvited, audit.EventStatusSuccess)
	event.ActorID = invitedBy
	event.UserID = userID
	event.OrganizationID = orgID
	event.ResourceType = audit.ResourceTypeMembership
	event.ResourceID = orgID + "/" + userID
	event.Message = fmt.Sprintf("member added with role %s", orgRole)
	s.logAudit(ctx, event)

	return m, nil
}

// GetMembership fetches a user's membership in an organization.
func (s *Service) GetMembership(ctx context.Context, orgID, userID string) (*store.Membership, error) {
	return s.store.GetMembership(ctx, orgID, userID)
}

// ListMembers returns every membership in an organization.
func (s *Service) ListMembers(ctx context.Context, orgID string) ([]*store.Membership, error) {
	return s.store.ListMemberships(ctx, orgID)
}

// RemoveMember offboards a user: the membership is deleted, every role
// mapping the user holds in the organization is removed, and a ROLE_REMOVED
// event propagates each removal to the other context.
func (s *Service) RemoveMember(ctx context.Context, orgID, userID, actorID string) error {
	if err := s.store.DeleteMembership(ctx, orgID, userID); err != nil {
		return err
	}

	recs, err := s.store.ListRoleMappingsByOrg(ctx, orgID)
	if err != nil {
		return fmt.Errorf("listing mappings for offboarding: %w", err)
	}
	for _, rec := range recs {
		if rec.UserID != userID {
			continue
		}
		if err := s.RemoveRole(ctx, orgID, userID, rec.ProjectID, evsync.ContextLicensing, actorID); err != nil {
			return fmt.Errorf("removing mapping for project %s: %w", rec.ProjectID, err)
		}
	}

	event := audit.NewEvent(ctx, audit.EventTypeOrgMemberRemoved, audit.EventStatusSuccess)
	event.ActorID = actorID
	event.UserID = userID
	event.OrganizationID = orgID
	event.ResourceType = audit.ResourceTypeMembership
	event.ResourceID = orgID + "/" + userID
	event.Message = "member removed"
	s.logAudit(ctx, event)

	s.logger.WithFields(map[string]interface{}{
		"organization_id": orgID,
		"user_id":         userID,
	}).Info("member removed")
	return nil
}
