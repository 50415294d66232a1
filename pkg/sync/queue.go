package sync

import (
	"context"
	"fmt"

	"github.com/crewsync/crewsync/pkg/observability"
)

// Queue is the enqueue side of the synchronizer. Safe for concurrent use by
// any number of request handlers; draining is the Worker's job.
type Queue struct {
	store   EventStore
	logger  *observability.Logger
	metrics *Metrics
}

// NewQueue creates a queue over an event store. logger and metrics may be
// nil.
func NewQueue(store EventStore, logger *observability.Logger, metrics *Metrics) *Queue {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Queue{store: store, logger: logger, metrics: metrics}
}

// Enqueue validates and persists a PENDING event. Malformed events are
// rejected here rather than poisoning the queue.
func (q *Queue) Enqueue(ctx context.Context, e *SyncEvent) error {
	if err := e.Validate(); err != nil {
		return Permanent(err)
	}
	if err := q.store.Enqueue(ctx, e); err != nil {
		return fmt.Errorf("failed to enqueue sync event: %w", err)
	}
	q.metrics.observeEnqueued()
	q.logger.WithFields(map[string]interface{}{
		"event_id":   e.ID,
		"event_type": string(e.Type),
		"user_id":    e.UserID,
		"project_id": e.ProjectID,
	}).Debug("sync event enqueued")
	return nil
}

// Requeue returns a FAILED event to PENDING. Operator-initiated repair.
func (q *Queue) Requeue(ctx context.Context, eventID string) error {
	e, err := q.store.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if e.Status != StatusFailed {
		return fmt.Errorf("event %s is %s, only FAILED events can be requeued", eventID, e.Status)
	}
	if err := q.store.Requeue(ctx, eventID); err != nil {
		return fmt.Errorf("failed to requeue sync event: %w", err)
	}
	q.logger.WithField("event_id", eventID).Info("failed sync event requeued")
	return nil
}
