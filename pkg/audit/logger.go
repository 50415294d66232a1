package audit

import (
	"context"
	"time"

	"github.com/crewsync/crewsync/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered events
	Close() error
}

// contextKey is the type for context keys
type contextKey string

// AuditLoggerKey is the context key for the audit logger
const AuditLoggerKey contextKey = "audit_logger"

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// FromContext retrieves the audit logger from context, or a no-op logger if
// none is set
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NopLogger{}
}

// NopLogger discards every event
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event *Event) error { return nil }
func (NopLogger) Close() error                                { return nil }

// NewEvent creates an event with the timestamp and request id populated
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: observability.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
}

// RoleChange builds a role lifecycle event scoped to (user, project).
func RoleChange(ctx context.Context, eventType EventType, actorID, userID, projectID, organizationID, message string) *Event {
	event := NewEvent(ctx, eventType, EventStatusSuccess)
	event.ActorID = actorID
	event.UserID = userID
	event.ProjectID = projectID
	event.OrganizationID = organizationID
	event.ResourceType = ResourceTypeRoleMapping
	event.ResourceID = userID + "/" + projectID
	event.Message = message
	return event
}

// Denied builds an access-denied event.
func Denied(ctx context.Context, userID string, resourceType ResourceType, resourceID, reason string) *Event {
	event := NewEvent(ctx, EventTypeAccessDenied, EventStatusDenied)
	event.UserID = userID
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = reason
	return event
}
