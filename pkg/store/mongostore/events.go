package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/crewsync/crewsync/pkg/audit"
	"github.com/crewsync/crewsync/pkg/store"
	evsync "github.com/crewsync/crewsync/pkg/sync"
)

// Enqueue persists a new PENDING synchronization event.
func (s *Store) Enqueue(ctx context.Context, e *evsync.SyncEvent) error {
	return s.op(ctx, "insert", collSyncEvents, func(ctx context.Context) error {
		_, err := s.db.Collection(collSyncEvents).InsertOne(ctx, e)
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("event %s already exists", e.ID)
		}
		return err
	})
}

// PendingBatch returns up to limit due PENDING events, oldest first.
func (s *Store) PendingBatch(ctx context.Context, limit int) ([]*evsync.SyncEvent, error) {
	var out []*evsync.SyncEvent
	err := s.op(ctx, "find", collSyncEvents, func(ctx context.Context) error {
		filter := bson.M{
			"status":          evsync.StatusPending,
			"next_attempt_at": bson.M{"$lte": time.Now().UTC()},
		}
		cursor, err := s.db.Collection(collSyncEvents).Find(ctx, filter,
			options.Find().
				SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
				SetLimit(int64(limit)),
		)
		if err != nil {
			return err
		}
		return cursor.All(ctx, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a synchronization event by id.
func (s *Store) Get(ctx context.Context, id string) (*evsync.SyncEvent, error) {
	var e evsync.SyncEvent
	err := s.op(ctx, "find", collSyncEvents, func(ctx context.Context) error {
		return translateErr(s.db.Collection(collSyncEvents).FindOne(ctx, bson.M{"_id": id}).Decode(&e))
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// updateEvent applies a field update to one event, bumping updated_at.
func (s *Store) updateEvent(ctx context.Context, id string, set bson.M) error {
	return s.op(ctx, "update", collSyncEvents, func(ctx context.Context) error {
		set["updated_at"] = time.Now().UTC()
		res, err := s.db.Collection(collSyncEvents).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// MarkProcessing moves an event to PROCESSING.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	return s.updateEvent(ctx, id, bson.M{"status": evsync.StatusProcessing})
}

// MarkCompleted moves an event to COMPLETED.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	return s.updateEvent(ctx, id, bson.M{"status": evsync.StatusCompleted})
}

// MarkSuperseded completes an event as superseded by the winning event. The
// document stays in the collection for the audit trail.
func (s *Store) MarkSuperseded(ctx context.Context, id, winnerID string) error {
	return s.updateEvent(ctx, id, bson.M{
		"status":        evsync.StatusCompleted,
		"superseded":    true,
		"superseded_by": winnerID,
	})
}

// MarkRetry returns an event to PENDING with a future next-attempt time.
func (s *Store) MarkRetry(ctx context.Context, id string, attempt int, nextAttempt time.Time, reason string) error {
	return s.updateEvent(ctx, id, bson.M{
		"status":          evsync.StatusPending,
		"attempt":         attempt,
		"next_attempt_at": nextAttempt.UTC(),
		"last_error":      reason,
	})
}

// MarkFailed moves an event to FAILED.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	return s.updateEvent(ctx, id, bson.M{
		"status":     evsync.StatusFailed,
		"last_error": reason,
	})
}

// Requeue moves a FAILED event back to PENDING with a reset attempt counter.
func (s *Store) Requeue(ctx context.Context, id string) error {
	return s.op(ctx, "update", collSyncEvents, func(ctx context.Context) error {
		res, err := s.db.Collection(collSyncEvents).UpdateOne(ctx,
			bson.M{"_id": id, "status": evsync.StatusFailed},
			bson.M{"$set": bson.M{
				"status":          evsync.StatusPending,
				"attempt":         0,
				"last_error":      "",
				"next_attempt_at": time.Now().UTC(),
				"updated_at":      time.Now().UTC(),
			}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("event %s is not in a failed state", id)
		}
		return nil
	})
}

// ListByStatus returns up to limit events with the given status, newest
// first.
func (s *Store) ListByStatus(ctx context.Context, status evsync.Status, limit int) ([]*evsync.SyncEvent, error) {
	var out []*evsync.SyncEvent
	err := s.op(ctx, "find", collSyncEvents, func(ctx context.Context) error {
		cursor, err := s.db.Collection(collSyncEvents).Find(ctx,
			bson.M{"status": status},
			options.Find().
				SetSort(bson.D{{Key: "created_at", Value: -1}}).
				SetLimit(int64(limit)),
		)
		if err != nil {
			return err
		}
		return cursor.All(ctx, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountByStatus reports the number of events with the given status.
func (s *Store) CountByStatus(ctx context.Context, status evsync.Status) (int64, error) {
	var count int64
	err := s.op(ctx, "count", collSyncEvents, func(ctx context.Context) error {
		var err error
		count, err = s.db.Collection(collSyncEvents).CountDocuments(ctx, bson.M{"status": status})
		return err
	})
	return count, err
}

// appliedRecord is the idempotency registry document.
type appliedRecord struct {
	EventID   string    `bson:"_id"`
	AppliedAt time.Time `bson:"applied_at"`
}

// WasApplied reports whether an event has already been applied.
func (s *Store) WasApplied(ctx context.Context, eventID string) (bool, error) {
	var applied bool
	err := s.op(ctx, "find", collApplied, func(ctx context.Context) error {
		err := s.db.Collection(collApplied).FindOne(ctx, bson.M{"_id": eventID}).Err()
		if err == mongo.ErrNoDocuments {
			return nil
		}
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// MarkApplied records an event in the idempotency registry. Recording the
// same event twice is not an error.
func (s *Store) MarkApplied(ctx context.Context, eventID string) error {
	return s.op(ctx, "insert", collApplied, func(ctx context.Context) error {
		_, err := s.db.Collection(collApplied).InsertOne(ctx, appliedRecord{
			EventID:   eventID,
			AppliedAt: time.Now().UTC(),
		})
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return err
	})
}

// InsertAuditEvent appends an audit event to the audit collection.
func (s *Store) InsertAuditEvent(ctx context.Context, e *audit.Event) error {
	return s.op(ctx, "insert", collAudit, func(ctx context.Context) error {
		_, err := s.db.Collection(collAudit).InsertOne(ctx, e)
		return err
	})
}

// ListAuditEvents returns up to limit audit events for an organization,
// newest first.
func (s *Store) ListAuditEvents(ctx context.Context, organizationID string, limit int) ([]*audit.Event, error) {
	var out []*audit.Event
	err := s.op(ctx, "find", collAudit, func(ctx context.Context) error {
		cursor, err := s.db.Collection(collAudit).Find(ctx,
			bson.M{"organization_id": organizationID},
			options.Find().
				SetSort(bson.D{{Key: "timestamp", Value: -1}}).
				SetLimit(int64(limit)),
		)
		if err != nil {
			return err
		}
		return cursor.All(ctx, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
