package orgs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crewsync/crewsync/pkg/audit"
	"github.com/crewsync/crewsync/pkg/cache"
	"github.com/crewsync/crewsync/pkg/observability"
	"github.com/crewsync/crewsync/pkg/roles"
	"github.com/crewsync/crewsync/pkg/store"
	evsync "github.com/crewsync/crewsync/pkg/sync"
)

// Service coordinates organizations, memberships, and role resolution over
// the document store, the mapping cache, and the sync queue.
type Service struct {
	store    store.Store
	queue    *evsync.Queue
	mappings *cache.MappingCache
	audit    audit.Logger
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// New creates the service. mappings, auditLog, and metrics may be nil; a nil
// audit logger discards events.
func New(st store.Store, queue *evsync.Queue, mappings *cache.MappingCache, auditLog audit.Logger, logger *observability.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &Service{
		store:    st,
		queue:    queue,
		mappings: mappings,
		audit:    auditLog,
		logger:   logger,
		metrics:  metrics,
	}
}

// CreateOrganization creates an organization on the given licensing tier. An
// empty tier defaults to BASIC; an empty id gets a generated one.
func (s *Service) CreateOrganization(ctx context.Context, id, name string, tier roles.Tier, actorID string) (*store.Organization, error) {
	if name == "" {
		return nil, fmt.Errorf("organization name is required")
	}
	if id == "" {
		id = uuid.NewString()
	}
	if tier == "" {
		tier = roles.TierBasic
	}
	if !tier.Valid() {
		return nil, fmt.Errorf("unknown tier %q", tier)
	}

	now := time.Now().UTC()
	org := &store.Organization{
		ID:        id,
		Name:      name,
		Tier:      tier,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, err
	}

	event := audit.NewEvent(ctx, audit.EventTypeOrgCreated, audit.EventStatusSuccess)
	event.ActorID = actorID
	event.OrganizationID = org.ID
	event.ResourceType = audit.ResourceTypeOrganization
	event.ResourceID = org.ID
	event.Message = fmt.Sprintf("created organization %s on tier %s", org.Name, org.Tier)
	s.logAudit(ctx, event)

	s.logger.WithFields(map[string]interface{}{
		"organization_id": org.ID,
		"tier":            string(org.Tier),
	}).Info("organization created")
	return org, nil
}

// GetOrganization fetches an organization by id.
func (s *Service) GetOrganization(ctx context.Context, id string) (*store.Organization, error) {
	return s.store.GetOrganization(ctx, id)
}

// UpdateTier changes an organization's licensing tier and re-resolves every
// role mapping in the organization under the new ceiling. Each re-resolved
// mapping is persisted, re-cached, and propagated with a ROLE_UPDATED event.
func (s *Service) UpdateTier(ctx context.Context, orgID string, tier roles.Tier, actorID string) error {
	if !tier.Valid() {
		return fmt.Errorf("unknown tier %q", tier)
	}

	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org.Tier == tier {
		return nil
	}

	if err := s.store.UpdateOrganizationTier(ctx, orgID, tier); err != nil {
		return err
	}

	recs, err := s.store.ListRoleMappingsByOrg(ctx, orgID)
	if err != nil {
		return fmt.Errorf("listing mappings for re-resolution: %w", err)
	}

	for _, rec := range recs {
		// Re-resolve through the current project role as a direct-name
		// template. A downgrade clamps it under the new ceiling; an upgrade
		// keeps it as is, since the pre-clamp request is not retained.
		template := &roles.RoleTemplate{Name: rec.Mapping.ProjectRole.Name}
		mapping, err := s.resolve(ctx, rec.Mapping.OrgRole, template, tier)
		if err != nil {
			return fmt.Errorf("re-resolving mapping for user %s project %s: %w", rec.UserID, rec.ProjectID, err)
		}
		if err := s.persistAndPropagate(ctx, orgID, rec.UserID, rec.ProjectID, mapping, evsync.EventRoleUpdated, evsync.ContextLicensing); err != nil {
			return err
		}
		if mapping.Clamped {
			s.auditClamp(ctx, actorID, rec.UserID, rec.ProjectID, orgID, rec.Mapping.ProjectRole.Name, mapping)
		}
	}

	event := audit.NewEvent(ctx, audit.EventTypeOrgTierChanged, audit.EventStatusSuccess)
	event.ActorID = actorID
	event.OrganizationID = orgID
	event.ResourceType = audit.ResourceTypeOrganization
	event.ResourceID = orgID
	event.Message = fmt.Sprintf("tier changed from %s to %s", org.Tier, tier)
	event.Metadata["old_tier"] = string(org.Tier)
	event.Metadata["new_tier"] = string(tier)
	s.logAudit(ctx, event)

	s.logger.WithFields(map[string]interface{}{
		"organization_id": orgID,
		"old_tier":        string(org.Tier),
		"new_tier":        string(tier),
		"mappings":        len(recs),
	}).Info("organization tier changed, mappings re-resolved")
	return nil
}

// logAudit writes an audit event, logging instead of failing the operation
// when the trail itself is unavailable.
func (s *Service) logAudit(ctx context.Context, event *audit.Event) {
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.WithError(err).WithField("event_type", string(event.EventType)).Warn("failed to write audit event")
	}
}
