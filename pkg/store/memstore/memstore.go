// Package memstore provides an in-memory implementation of the persistence
// interfaces, used in tests and in single-process development mode. It is
// safe for concurrent use and mirrors the ordering guarantees of the Mongo
// implementation.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/crewsync/crewsync/pkg/roles"
	"github.com/crewsync/crewsync/pkg/store"
	evsync "github.com/crewsync/crewsync/pkg/sync"
)

// Store keeps all documents in maps guarded by one mutex. Values are copied
// on the way in and out so callers can never alias internal state.
type Store struct {
	mu sync.Mutex

	orgs        map[string]store.Organization
	memberships map[string]store.Membership        // org/user
	mappings    map[string]store.RoleMappingRecord // user/project
	events      map[string]evsync.SyncEvent
	applied     map[string]bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		orgs:        make(map[string]store.Organization),
		memberships: make(map[string]store.Membership),
		mappings:    make(map[string]store.RoleMappingRecord),
		events:      make(map[string]evsync.SyncEvent),
		applied:     make(map[string]bool),
	}
}

func membershipKey(organizationID, userID string) string {
	return organizationID + "/" + userID
}

func mappingKey(userID, projectID string) string {
	return userID + "/" + projectID
}

// CreateOrganization stores a new organization document.
func (s *Store) CreateOrganization(_ context.Context, org *store.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[org.ID]; ok {
		return fmt.Errorf("organization %s already exists", org.ID)
	}
	s.orgs[org.ID] = *org
	return nil
}

// GetOrganization returns an organization by id.
func (s *Store) GetOrganization(_ context.Context, id string) (*store.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &org, nil
}

// UpdateOrganizationTier changes an organization's subscription tier.
func (s *Store) UpdateOrganizationTier(_ context.Context, id string, tier roles.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return store.ErrNotFound
	}
	org.Tier = tier
	org.UpdatedAt = time.Now().UTC()
	s.orgs[id] = org
	return nil
}

// UpsertMembership inserts or replaces a membership document.
func (s *Store) UpsertMembership(_ context.Context, m *store.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[membershipKey(m.OrganizationID, m.UserID)] = *m
	return nil
}

// GetMembership returns the membership for (organization, user).
func (s *Store) GetMembership(_ context.Context, organizationID, userID string) (*store.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipKey(organizationID, userID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

// ListMemberships returns all memberships of an organization, ordered by
// user id for deterministic iteration.
func (s *Store) ListMemberships(_ context.Context, organizationID string) ([]*store.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Membership
	for _, m := range s.memberships {
		if m.OrganizationID == organizationID {
			cp := m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// DeleteMembership removes the membership for (organization, user).
func (s *Store) DeleteMembership(_ context.Context, organizationID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey(organizationID, userID)
	if _, ok := s.memberships[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.memberships, key)
	return nil
}

// PutRoleMapping replaces the resolved mapping document for (user, project).
func (s *Store) PutRoleMapping(_ context.Context, rec *store.RoleMappingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[mappingKey(rec.UserID, rec.ProjectID)] = *rec
	return nil
}

// GetRoleMapping returns the resolved mapping for (user, project).
func (s *Store) GetRoleMapping(_ context.Context, userID, projectID string) (*store.RoleMappingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.mappings[mappingKey(userID, projectID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

// DeleteRoleMapping removes the resolved mapping for (user, project).
func (s *Store) DeleteRoleMapping(_ context.Context, userID, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := mappingKey(userID, projectID)
	if _, ok := s.mappings[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.mappings, key)
	return nil
}

// ListRoleMappingsByOrg returns all mappings within an organization, ordered
// by user then project id.
func (s *Store) ListRoleMappingsByOrg(_ context.Context, organizationID string) ([]*store.RoleMappingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.RoleMappingRecord
	for _, rec := range s.mappings {
		if rec.OrganizationID == organizationID {
			cp := rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].ProjectID < out[j].ProjectID
	})
	return out, nil
}

// Enqueue persists a new PENDING sync event.
func (s *Store) Enqueue(_ context.Context, e *evsync.SyncEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("event %s already exists", e.ID)
	}
	s.events[e.ID] = *e
	return nil
}

// PendingBatch returns up to limit due PENDING events, oldest first.
func (s *Store) PendingBatch(_ context.Context, limit int) ([]*evsync.SyncEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var due []*evsync.SyncEvent
	for _, e := range s.events {
		if e.Status == evsync.StatusPending && !e.NextAttemptAt.After(now) {
			cp := e
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].CreatedAt.Equal(due[j].CreatedAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].ID < due[j].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Get returns a sync event by id.
func (s *Store) Get(_ context.Context, id string) (*evsync.SyncEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *Store) updateEvent(id string, fn func(e *evsync.SyncEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&e)
	e.UpdatedAt = time.Now().UTC()
	s.events[id] = e
	return nil
}

// MarkProcessing moves an event to PROCESSING.
func (s *Store) MarkProcessing(_ context.Context, id string) error {
	return s.updateEvent(id, func(e *evsync.SyncEvent) {
		e.Status = evsync.StatusProcessing
	})
}

// MarkCompleted moves an event to COMPLETED.
func (s *Store) MarkCompleted(_ context.Context, id string) error {
	return s.updateEvent(id, func(e *evsync.SyncEvent) {
		e.Status = evsync.StatusCompleted
	})
}

// MarkSuperseded completes an event as superseded by winnerID.
func (s *Store) MarkSuperseded(_ context.Context, id, winnerID string) error {
	return s.updateEvent(id, func(e *evsync.SyncEvent) {
		e.Status = evsync.StatusCompleted
		e.Superseded = true
		e.SupersededBy = winnerID
	})
}

// MarkRetry returns an event to PENDING with a future next-attempt time.
func (s *Store) MarkRetry(_ context.Context, id string, attempt int, nextAttempt time.Time, reason string) error {
	return s.updateEvent(id, func(e *evsync.SyncEvent) {
		e.Status = evsync.StatusPending
		e.Attempt = attempt
		e.NextAttemptAt = nextAttempt
		e.LastError = reason
	})
}

// MarkFailed moves an event to FAILED.
func (s *Store) MarkFailed(_ context.Context, id, reason string) error {
	return s.updateEvent(id, func(e *evsync.SyncEvent) {
		e.Status = evsync.StatusFailed
		e.LastError = reason
	})
}

// Requeue returns a FAILED event to PENDING with a reset attempt counter.
func (s *Store) Requeue(_ context.Context, id string) error {
	return s.updateEvent(id, func(e *evsync.SyncEvent) {
		e.Status = evsync.StatusPending
		e.Attempt = 0
		e.NextAttemptAt = time.Now().UTC()
		e.LastError = ""
	})
}

// ListByStatus returns up to limit events with the given status, newest
// first.
func (s *Store) ListByStatus(_ context.Context, status evsync.Status, limit int) ([]*evsync.SyncEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*evsync.SyncEvent
	for _, e := range s.events {
		if e.Status == status {
			cp := e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountByStatus reports how many events hold the given status.
func (s *Store) CountByStatus(_ context.Context, status evsync.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.events {
		if e.Status == status {
			n++
		}
	}
	return n, nil
}

// WasApplied reports whether an event id is in the applied registry.
func (s *Store) WasApplied(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied[eventID], nil
}

// MarkApplied records an event id as applied.
func (s *Store) MarkApplied(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied[eventID] = true
	return nil
}
