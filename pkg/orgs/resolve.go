package orgs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crewsync/crewsync/pkg/audit"
	"github.com/crewsync/crewsync/pkg/bridge"
	"github.com/crewsync/crewsync/pkg/roles"
	"github.com/crewsync/crewsync/pkg/store"
	evsync "github.com/crewsync/crewsync/pkg/sync"
)

// AssignRoleRequest carries one role assignment through the resolution path.
// Template is optional; without it the default mapping table applies.
type AssignRoleRequest struct {
	OrganizationID string
	UserID         string
	ProjectID      string
	Template       *roles.RoleTemplate
	Source         evsync.SourceContext
	ActorID        string
}

// AssignRole is the single resolution entry point. It resolves the user's
// organization role to a project role under the organization's tier, persists
// the mapping as authoritative state, refreshes the cache, enqueues a sync
// event for the other context, and writes the audit trail. A failure past the
// persist step never rolls the mapping back.
func (s *Service) AssignRole(ctx context.Context, req AssignRoleRequest) (*store.RoleMappingRecord, error) {
	if req.UserID == "" || req.ProjectID == "" || req.OrganizationID == "" {
		return nil, fmt.Errorf("organization, user, and project ids are required")
	}
	if req.Source == "" {
		req.Source = evsync.ContextLicensing
	}

	org, err := s.store.GetOrganization(ctx, req.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("organization %s: %w", req.OrganizationID, err)
	}
	membership, err := s.store.GetMembership(ctx, req.OrganizationID, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("user %s is not a member of organization %s: %w", req.UserID, req.OrganizationID, store.ErrNotFound)
		}
		return nil, err
	}

	mapping, err := s.resolve(ctx, membership.OrgRole, req.Template, org.Tier)
	if err != nil {
		return nil, err
	}

	eventType := evsync.EventRoleAssigned
	auditType := audit.EventTypeRoleAssigned
	if _, err := s.store.GetRoleMapping(ctx, req.UserID, req.ProjectID); err == nil {
		eventType = evsync.EventRoleUpdated
		auditType = audit.EventTypeRoleUpdated
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	rec := &store.RoleMappingRecord{
		UserID:         req.UserID,
		ProjectID:      req.ProjectID,
		OrganizationID: req.OrganizationID,
		Mapping:        *mapping,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.persistRecord(ctx, rec, eventType, req.Source); err != nil {
		return nil, err
	}

	if mapping.Clamped {
		requested := ""
		if req.Template != nil {
			requested = req.Template.Name
		}
		s.auditClamp(ctx, req.ActorID, req.UserID, req.ProjectID, req.OrganizationID, requested, mapping)
	}
	s.logAudit(ctx, audit.RoleChange(ctx, auditType, req.ActorID, req.UserID, req.ProjectID, req.OrganizationID,
		fmt.Sprintf("resolved to %s via %s", mapping.ProjectRole.Name, mapping.Reason)))

	s.logger.WithFields(map[string]interface{}{
		"user_id":      req.UserID,
		"project_id":   req.ProjectID,
		"project_role": mapping.ProjectRole.Name,
		"reason":       string(mapping.Reason),
		"clamped":      mapping.Clamped,
	}).Info("role assigned")
	return rec, nil
}

// ResolveMapping is the read path: cache first, then the authoritative store
// with a cache backfill.
func (s *Service) ResolveMapping(ctx context.Context, userID, projectID string) (*bridge.Mapping, error) {
	if s.mappings != nil {
		if m, ok := s.mappings.Get(ctx, userID, projectID); ok {
			return m, nil
		}
	}

	rec, err := s.store.GetRoleMapping(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if s.mappings != nil {
		if err := s.mappings.Put(ctx, userID, projectID, &rec.Mapping); err != nil {
			s.logger.WithError(err).Debug("cache backfill failed")
		}
	}
	return &rec.Mapping, nil
}

// RemoveRole deletes a user's mapping on one project and propagates the
// removal to the other context.
func (s *Service) RemoveRole(ctx context.Context, orgID, userID, projectID string, source evsync.SourceContext, actorID string) error {
	if source == "" {
		source = evsync.ContextLicensing
	}
	if err := s.store.DeleteRoleMapping(ctx, userID, projectID); err != nil {
		return err
	}
	s.invalidate(ctx, userID, projectID)

	if s.queue != nil {
		e := evsync.NewEvent(evsync.EventRoleRemoved, source, userID, projectID, orgID, bridge.Mapping{})
		if err := s.queue.Enqueue(ctx, e); err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"user_id":    userID,
				"project_id": projectID,
			}).Error("failed to enqueue removal event")
		}
	}

	s.logAudit(ctx, audit.RoleChange(ctx, audit.EventTypeRoleRemoved, actorID, userID, projectID, orgID, "role mapping removed"))
	return nil
}

// resolve runs the bridge and records resolution metrics.
func (s *Service) resolve(ctx context.Context, orgRole roles.OrgRole, template *roles.RoleTemplate, tier roles.Tier) (*bridge.Mapping, error) {
	start := time.Now()
	mapping, err := bridge.Map(orgRole, template, tier)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ResolutionsTotal.WithLabelValues(string(mapping.Reason)).Inc()
		s.metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
		if mapping.Clamped {
			s.metrics.ClampsTotal.Inc()
		}
	}
	return mapping, nil
}

// persistRecord writes the mapping, refreshes the cache, and enqueues the
// sync event. Only the store write can fail the operation.
func (s *Service) persistRecord(ctx context.Context, rec *store.RoleMappingRecord, eventType evsync.EventType, source evsync.SourceContext) error {
	if err := s.store.PutRoleMapping(ctx, rec); err != nil {
		return fmt.Errorf("persisting role mapping: %w", err)
	}

	if s.mappings != nil {
		if err := s.mappings.Put(ctx, rec.UserID, rec.ProjectID, &rec.Mapping); err != nil {
			s.logger.WithError(err).Debug("cache refresh failed")
		}
	}

	if s.queue != nil {
		e := evsync.NewEvent(eventType, source, rec.UserID, rec.ProjectID, rec.OrganizationID, rec.Mapping)
		if err := s.queue.Enqueue(ctx, e); err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"user_id":    rec.UserID,
				"project_id": rec.ProjectID,
			}).Error("failed to enqueue sync event")
		}
	}
	return nil
}

func (s *Service) persistAndPropagate(ctx context.Context, orgID, userID, projectID string, mapping *bridge.Mapping, eventType evsync.EventType, source evsync.SourceContext) error {
	rec := &store.RoleMappingRecord{
		UserID:         userID,
		ProjectID:      projectID,
		OrganizationID: orgID,
		Mapping:        *mapping,
		UpdatedAt:      time.Now().UTC(),
	}
	return s.persistRecord(ctx, rec, eventType, source)
}

func (s *Service) invalidate(ctx context.Context, userID, projectID string) {
	if s.mappings == nil {
		return
	}
	if err := s.mappings.Invalidate(ctx, userID, projectID); err != nil {
		s.logger.WithError(err).Debug("cache invalidation failed")
	}
}

func (s *Service) auditClamp(ctx context.Context, actorID, userID, projectID, orgID, requested string, mapping *bridge.Mapping) {
	event := audit.RoleChange(ctx, audit.EventTypeRoleClamped, actorID, userID, projectID, orgID,
		fmt.Sprintf("clamped to %s by tier %s ceiling", mapping.ProjectRole.Name, mapping.Tier))
	if requested != "" {
		event.Metadata["requested_role"] = requested
	}
	event.Metadata["effective_role"] = mapping.ProjectRole.Name
	s.logAudit(ctx, event)
}
