package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crewsync/crewsync/pkg/bridge"
)

// EventType categorizes a role-assignment change.
type EventType string

const (
	EventRoleAssigned EventType = "ROLE_ASSIGNED"
	EventRoleUpdated  EventType = "ROLE_UPDATED"
	EventRoleRemoved  EventType = "ROLE_REMOVED"
)

// SourceContext identifies which side of the product originated an event.
type SourceContext string

const (
	ContextLicensing SourceContext = "licensing"
	ContextDashboard SourceContext = "dashboard"
)

// Status is the synchronization state of an event.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// SyncEvent is the auditable record of one role change awaiting propagation.
// Events are append-only: after reaching a terminal state only the status
// fields ever changed again, and only by explicit operator re-queue.
type SyncEvent struct {
	ID             string         `json:"id" bson:"_id"`
	Type           EventType      `json:"type" bson:"type"`
	SourceContext  SourceContext  `json:"source_context" bson:"source_context"`
	UserID         string         `json:"user_id" bson:"user_id"`
	ProjectID      string         `json:"project_id" bson:"project_id"`
	OrganizationID string         `json:"organization_id" bson:"organization_id"`
	Payload        bridge.Mapping `json:"payload" bson:"payload"`
	Status         Status         `json:"status" bson:"status"`
	Attempt        int            `json:"attempt" bson:"attempt"`
	Superseded     bool           `json:"superseded" bson:"superseded"`
	SupersededBy   string         `json:"superseded_by,omitempty" bson:"superseded_by,omitempty"`
	LastError      string         `json:"last_error,omitempty" bson:"last_error,omitempty"`
	NextAttemptAt  time.Time      `json:"next_attempt_at" bson:"next_attempt_at"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" bson:"updated_at"`
}

// NewEvent builds a PENDING event with a fresh id. The event id doubles as
// the idempotency key for application.
func NewEvent(typ EventType, source SourceContext, userID, projectID, organizationID string, payload bridge.Mapping) *SyncEvent {
	now := time.Now().UTC()
	return &SyncEvent{
		ID:             uuid.NewString(),
		Type:           typ,
		SourceContext:  source,
		UserID:         userID,
		ProjectID:      projectID,
		OrganizationID: organizationID,
		Payload:        payload,
		Status:         StatusPending,
		NextAttemptAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Key identifies the (user, project) pair an event targets; competing
// events with the same key are coalesced before applying.
func (e *SyncEvent) Key() string {
	return e.UserID + "/" + e.ProjectID
}

// Validate checks the structural integrity of an event. A failure is a
// permanent error: the event can never be applied and goes straight to
// FAILED.
func (e *SyncEvent) Validate() error {
	switch e.Type {
	case EventRoleAssigned, EventRoleUpdated, EventRoleRemoved:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.UserID == "" || e.ProjectID == "" || e.OrganizationID == "" {
		return fmt.Errorf("event %s missing user/project/organization ids", e.ID)
	}
	if e.Type != EventRoleRemoved {
		if err := e.Payload.Validate(); err != nil {
			return fmt.Errorf("event %s payload: %w", e.ID, err)
		}
	}
	return nil
}

// EventStore is the persistence interface for the synchronization queue and
// its idempotency registry. Implementations must support concurrent
// enqueuers and a single draining worker.
type EventStore interface {
	// Enqueue persists a new PENDING event.
	Enqueue(ctx context.Context, e *SyncEvent) error

	// PendingBatch returns up to limit PENDING events whose next-attempt
	// time has passed, oldest first.
	PendingBatch(ctx context.Context, limit int) ([]*SyncEvent, error)

	// Get returns an event by id.
	Get(ctx context.Context, id string) (*SyncEvent, error)

	// MarkProcessing moves a PENDING event to PROCESSING.
	MarkProcessing(ctx context.Context, id string) error

	// MarkCompleted moves an event to COMPLETED.
	MarkCompleted(ctx context.Context, id string) error

	// MarkSuperseded completes an event as superseded by winnerID. The
	// event stays in the audit trail.
	MarkSuperseded(ctx context.Context, id, winnerID string) error

	// MarkRetry returns an event to PENDING with an incremented attempt
	// counter and a future next-attempt time.
	MarkRetry(ctx context.Context, id string, attempt int, nextAttempt time.Time, reason string) error

	// MarkFailed moves an event to FAILED (terminal).
	MarkFailed(ctx context.Context, id, reason string) error

	// Requeue moves a FAILED event back to PENDING for another round of
	// attempts. Operator-initiated only.
	Requeue(ctx context.Context, id string) error

	// ListByStatus returns up to limit events with the given status,
	// newest first, for the admin/audit view.
	ListByStatus(ctx context.Context, status Status, limit int) ([]*SyncEvent, error)

	// CountByStatus reports how many events hold the given status.
	CountByStatus(ctx context.Context, status Status) (int64, error)

	// WasApplied reports whether an event id has already been applied to
	// the target context.
	WasApplied(ctx context.Context, eventID string) (bool, error)

	// MarkApplied records an event id as applied.
	MarkApplied(ctx context.Context, eventID string) error
}
