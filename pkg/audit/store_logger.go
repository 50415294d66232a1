package audit

import "context"

// Inserter is the persistence hook for durable audit storage. The document
// store implements it by appending events to the audit collection.
type Inserter interface {
	InsertAuditEvent(ctx context.Context, event *Event) error
}

// StoreLogger persists audit events through an Inserter, typically the
// MongoDB store, so the trail survives process restarts and is queryable.
type StoreLogger struct {
	inserter Inserter
}

// NewStoreLogger creates a store-backed audit logger
func NewStoreLogger(inserter Inserter) *StoreLogger {
	return &StoreLogger{inserter: inserter}
}

// Log persists an audit event
func (l *StoreLogger) Log(ctx context.Context, event *Event) error {
	return l.inserter.InsertAuditEvent(ctx, event)
}

// Close is a no-op; the underlying store owns its connections
func (l *StoreLogger) Close() error {
	return nil
}
