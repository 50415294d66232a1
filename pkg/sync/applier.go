package sync

import (
	"context"
	"errors"
	"time"

	"github.com/crewsync/crewsync/pkg/store"
)

// Applier applies a winning event to the target context. Implementations
// classify failures with Transient or Permanent; any unclassified error is
// treated as transient.
type Applier interface {
	Apply(ctx context.Context, e *SyncEvent) error
}

// StoreApplier applies events to the target context's role-mapping
// documents. Invalidator, if set, is called after a successful apply so
// cached mappings never outlive a role change.
type StoreApplier struct {
	Store       store.Store
	Invalidator func(ctx context.Context, userID, projectID string) error
}

// Apply writes (or removes) the role mapping an event carries.
func (a *StoreApplier) Apply(ctx context.Context, e *SyncEvent) error {
	switch e.Type {
	case EventRoleAssigned, EventRoleUpdated:
		// Referential integrity: the organization must still exist.
		if _, err := a.Store.GetOrganization(ctx, e.OrganizationID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Permanent(err)
			}
			return Transient(err)
		}
		rec := &store.RoleMappingRecord{
			UserID:         e.UserID,
			ProjectID:      e.ProjectID,
			OrganizationID: e.OrganizationID,
			Mapping:        e.Payload,
			UpdatedAt:      time.Now().UTC(),
		}
		if err := a.Store.PutRoleMapping(ctx, rec); err != nil {
			return Transient(err)
		}
	case EventRoleRemoved:
		if err := a.Store.DeleteRoleMapping(ctx, e.UserID, e.ProjectID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return Transient(err)
		}
	default:
		return Permanent(errors.New("unknown event type " + string(e.Type)))
	}

	if a.Invalidator != nil {
		if err := a.Invalidator(ctx, e.UserID, e.ProjectID); err != nil {
			return Transient(err)
		}
	}
	return nil
}
