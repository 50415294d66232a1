// Package mongostore implements the persistence interfaces on MongoDB.
// It is the authoritative store for organizations, memberships, resolved
// role mappings, the synchronization queue, and the audit trail.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/crewsync/crewsync/pkg/observability"
	"github.com/crewsync/crewsync/pkg/roles"
	"github.com/crewsync/crewsync/pkg/store"
)

// Collection names.
const (
	collOrganizations = "organizations"
	collMemberships   = "memberships"
	collRoleMappings  = "role_mappings"
	collSyncEvents    = "sync_events"
	collApplied       = "applied_events"
	collAudit         = "audit_events"
)

// Config holds MongoDB connection settings.
type Config struct {
	URI              string
	Database         string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() Config {
	return Config{
		URI:              "mongodb://localhost:27017",
		Database:         "crewsync",
		ConnectTimeout:   10 * time.Second,
		OperationTimeout: 5 * time.Second,
	}
}

// Store is the MongoDB-backed document store. Every method bounds its call
// with the configured operation timeout.
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	opTimeout time.Duration
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// Connect establishes the MongoDB connection, verifies it with a ping, and
// ensures the indexes the store relies on.
func Connect(ctx context.Context, cfg Config, logger *observability.Logger, metrics *observability.Metrics) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	s := &Store{
		client:    client,
		db:        client.Database(cfg.Database),
		opTimeout: cfg.OperationTimeout,
		logger:    logger,
		metrics:   metrics,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensuring indexes: %w", err)
	}

	logger.WithField("database", cfg.Database).Info("connected to mongodb")
	return s, nil
}

// Client exposes the underlying client for health checks.
func (s *Store) Client() *mongo.Client {
	return s.client
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		collMemberships: {
			{
				Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		collRoleMappings: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "project_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "organization_id", Value: 1}}},
		},
		collSyncEvents: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "next_attempt_at", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		collAudit: {
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("collection %s: %w", coll, err)
		}
	}
	return nil
}

// op wraps a store operation with a timeout and records metrics for it.
func (s *Store) op(ctx context.Context, operation, collection string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start).Seconds()

	if s.metrics != nil {
		status := "ok"
		if err != nil && err != store.ErrNotFound {
			status = "error"
			s.metrics.StoreErrorsTotal.WithLabelValues(operation, collection).Inc()
		}
		s.metrics.StoreOperationsTotal.WithLabelValues(operation, collection, status).Inc()
		s.metrics.StoreOperationDuration.WithLabelValues(operation, collection).Observe(duration)
	}
	return err
}

// translateErr maps driver sentinel errors onto the store's own.
func translateErr(err error) error {
	if err == mongo.ErrNoDocuments {
		return store.ErrNotFound
	}
	return err
}

// CreateOrganization inserts a new organization document.
func (s *Store) CreateOrganization(ctx context.Context, org *store.Organization) error {
	return s.op(ctx, "insert", collOrganizations, func(ctx context.Context) error {
		_, err := s.db.Collection(collOrganizations).InsertOne(ctx, org)
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("organization %s already exists", org.ID)
		}
		return err
	})
}

// GetOrganization fetches an organization by id.
func (s *Store) GetOrganization(ctx context.Context, id string) (*store.Organization, error) {
	var org store.Organization
	err := s.op(ctx, "find", collOrganizations, func(ctx context.Context) error {
		return translateErr(s.db.Collection(collOrganizations).FindOne(ctx, bson.M{"_id": id}).Decode(&org))
	})
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// UpdateOrganizationTier changes an organization's licensing tier.
func (s *Store) UpdateOrganizationTier(ctx context.Context, id string, tier roles.Tier) error {
	return s.op(ctx, "update", collOrganizations, func(ctx context.Context) error {
		res, err := s.db.Collection(collOrganizations).UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"tier": tier, "updated_at": time.Now().UTC()}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// UpsertMembership creates or replaces a membership keyed by
// (organization, user).
func (s *Store) UpsertMembership(ctx context.Context, m *store.Membership) error {
	return s.op(ctx, "upsert", collMemberships, func(ctx context.Context) error {
		filter := bson.M{"organization_id": m.OrganizationID, "user_id": m.UserID}
		_, err := s.db.Collection(collMemberships).ReplaceOne(ctx, filter, m, options.Replace().SetUpsert(true))
		return err
	})
}

// GetMembership fetches a user's membership in an organization.
func (s *Store) GetMembership(ctx context.Context, organizationID, userID string) (*store.Membership, error) {
	var m store.Membership
	err := s.op(ctx, "find", collMemberships, func(ctx context.Context) error {
		filter := bson.M{"organization_id": organizationID, "user_id": userID}
		return translateErr(s.db.Collection(collMemberships).FindOne(ctx, filter).Decode(&m))
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMemberships returns all memberships in an organization, oldest first.
func (s *Store) ListMemberships(ctx context.Context, organizationID string) ([]*store.Membership, error) {
	var out []*store.Membership
	err := s.op(ctx, "find", collMemberships, func(ctx context.Context) error {
		cursor, err := s.db.Collection(collMemberships).Find(ctx,
			bson.M{"organization_id": organizationID},
			options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}}),
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

// DeleteMembership removes a user's membership from an organization.
func (s *Store) DeleteMembership(ctx context.Context, organizationID, userID string) error {
	return s.op(ctx, "delete", collMemberships, func(ctx context.Context) error {
		filter := bson.M{"organization_id": organizationID, "user_id": userID}
		res, err := s.db.Collection(collMemberships).DeleteOne(ctx, filter)
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// PutRoleMapping replaces the resolved mapping document for a (user, project)
// pair, creating it if absent.
func (s *Store) PutRoleMapping(ctx context.Context, rec *store.RoleMappingRecord) error {
	return s.op(ctx, "upsert", collRoleMappings, func(ctx context.Context) error {
		filter := bson.M{"user_id": rec.UserID, "project_id": rec.ProjectID}
		_, err := s.db.Collection(collRoleMappings).ReplaceOne(ctx, filter, rec, options.Replace().SetUpsert(true))
		return err
	})
}

// GetRoleMapping fetches the resolved mapping for a (user, project) pair.
func (s *Store) GetRoleMapping(ctx context.Context, userID, projectID string) (*store.RoleMappingRecord, error) {
	var rec store.RoleMappingRecord
	err := s.op(ctx, "find", collRoleMappings, func(ctx context.Context) error {
		filter := bson.M{"user_id": userID, "project_id": projectID}
		return translateErr(s.db.Collection(collRoleMappings).FindOne(ctx, filter).Decode(&rec))
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteRoleMapping removes the resolved mapping for a (user, project) pair.
func (s *Store) DeleteRoleMapping(ctx context.Context, userID, projectID string) error {
	return s.op(ctx, "delete", collRoleMappings, func(ctx context.Context) error {
		filter := bson.M{"user_id": userID, "project_id": projectID}
		res, err := s.db.Collection(collRoleMappings).DeleteOne(ctx, filter)
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// ListRoleMappingsByOrg returns every resolved mapping in an organization.
func (s *Store) ListRoleMappingsByOrg(ctx context.Context, organizationID string) ([]*store.RoleMappingRecord, error) {
	var out []*store.RoleMappingRecord
	err := s.op(ctx, "find", collRoleMappings, func(ctx context.Context) error {
		cursor, err := s.db.Collection(collRoleMappings).Find(ctx,
			bson.M{"organization_id": organizationID},
			options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}, {Key: "project_id", Value: 1}}),
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
