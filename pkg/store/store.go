package store

import (
	"context"
	"errors"
	"time"

	"github.com/crewsync/crewsync/pkg/bridge"
	"github.com/crewsync/crewsync/pkg/roles"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// Organization is the organization-scope configuration document. The tier is
// the input to every ceiling and permission decision for its members.
type Organization struct {
	ID        string     `json:"id" bson:"_id"`
	Name      string     `json:"name" bson:"name"`
	Tier      roles.Tier `json:"tier" bson:"tier"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

// Membership is the mutable assignment of an organization role to a user
// within one organization. The role enumeration itself is immutable; only
// this assignment changes over a user's lifecycle.
type Membership struct {
	OrganizationID string        `json:"organization_id" bson:"organization_id"`
	UserID         string        `json:"user_id" bson:"user_id"`
	OrgRole        roles.OrgRole `json:"org_role" bson:"org_role"`
	InvitedBy      string        `json:"invited_by,omitempty" bson:"invited_by,omitempty"`
	JoinedAt       time.Time     `json:"joined_at" bson:"joined_at"`
	UpdatedAt      time.Time     `json:"updated_at" bson:"updated_at"`
}

// RoleMappingRecord is the authoritative resolved mapping for one user on
// one project. It is derived data, recomputed whenever its inputs change and
// always replaced whole.
type RoleMappingRecord struct {
	UserID         string         `json:"user_id" bson:"user_id"`
	ProjectID      string         `json:"project_id" bson:"project_id"`
	OrganizationID string         `json:"organization_id" bson:"organization_id"`
	Mapping        bridge.Mapping `json:"mapping" bson:"mapping"`
	UpdatedAt      time.Time      `json:"updated_at" bson:"updated_at"`
}

// Store is the document-database interface for the engine's authoritative
// state. All methods take a context; implementations bound each call with an
// explicit timeout.
type Store interface {
	// Organizations.
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	UpdateOrganizationTier(ctx context.Context, id string, tier roles.Tier) error

	// Memberships, keyed by (organization, user).
	UpsertMembership(ctx context.Context, m *Membership) error
	GetMembership(ctx context.Context, organizationID, userID string) (*Membership, error)
	ListMemberships(ctx context.Context, organizationID string) ([]*Membership, error)
	DeleteMembership(ctx context.Context, organizationID, userID string) error

	// Role mappings, keyed by (user, project). PutRoleMapping replaces the
	// whole document.
	PutRoleMapping(ctx context.Context, rec *RoleMappingRecord) error
	GetRoleMapping(ctx context.Context, userID, projectID string) (*RoleMappingRecord, error)
	DeleteRoleMapping(ctx context.Context, userID, projectID string) error
	ListRoleMappingsByOrg(ctx context.Context, organizationID string) ([]*RoleMappingRecord, error)
}
