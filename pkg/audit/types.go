package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Role lifecycle events
	EventTypeRoleAssigned EventType = "role.assigned"
	EventTypeRoleUpdated  EventType = "role.updated"
	EventTypeRoleRemoved  EventType = "role.removed"
	EventTypeRoleClamped  EventType = "role.clamped"

	// Organization events
	EventTypeOrgCreated       EventType = "org.created"
	EventTypeOrgTierChanged   EventType = "org.tier_changed"
	EventTypeOrgMemberInvited EventType = "org.member_invited"
	EventTypeOrgMemberRemoved EventType = "org.member_removed"

	// Synchronization events
	EventTypeSyncEventFailed     EventType = "sync.event_failed"
	EventTypeSyncEventSuperseded EventType = "sync.event_superseded"
	EventTypeSyncEventRequeued   EventType = "sync.event_requeued"

	// Token and access events
	EventTypeTokenIssued  EventType = "token.issued"
	EventTypeAccessDenied EventType = "access.denied"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource an event touches
type ResourceType string

const (
	ResourceTypeOrganization ResourceType = "organization"
	ResourceTypeMembership   ResourceType = "membership"
	ResourceTypeRoleMapping  ResourceType = "role_mapping"
	ResourceTypeSyncEvent    ResourceType = "sync_event"
	ResourceTypeToken        ResourceType = "token"
)

// Event represents a single audit log entry
type Event struct {
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
	EventType EventType   `json:"event_type" bson:"event_type"`
	Status    EventStatus `json:"status" bson:"status"`

	// Actor and scope
	ActorID        string `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	UserID         string `json:"user_id,omitempty" bson:"user_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty" bson:"organization_id,omitempty"`
	ProjectID      string `json:"project_id,omitempty" bson:"project_id,omitempty"`

	// Resource
	ResourceType ResourceType `json:"resource_type,omitempty" bson:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty" bson:"resource_id,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty" bson:"request_id,omitempty"`

	// Details
	Message      string                 `json:"message,omitempty" bson:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty" bson:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}
