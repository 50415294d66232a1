package roles

import (
	"fmt"
	"strings"
)

// OrgRole represents an organization-level role.
type OrgRole string

const (
	OrgRoleOwner  OrgRole = "OWNER"
	OrgRoleAdmin  OrgRole = "ADMIN"
	OrgRoleMember OrgRole = "MEMBER"
	OrgRoleViewer OrgRole = "VIEWER"
)

// orgRoleHierarchies binds each organization role to its fixed hierarchy.
var orgRoleHierarchies = map[OrgRole]int{
	OrgRoleOwner:  100,
	OrgRoleAdmin:  90,
	OrgRoleMember: 50,
	OrgRoleViewer: 10,
}

// OrgRoles returns all organization roles in descending hierarchy order.
func OrgRoles() []OrgRole {
	return []OrgRole{OrgRoleOwner, OrgRoleAdmin, OrgRoleMember, OrgRoleViewer}
}

// Hierarchy returns the fixed hierarchy value of the organization role.
// Unknown roles report hierarchy 0.
func (r OrgRole) Hierarchy() int {
	return orgRoleHierarchies[r]
}

// Valid reports whether the value is one of the four organization roles.
func (r OrgRole) Valid() bool {
	_, ok := orgRoleHierarchies[r]
	return ok
}

// ParseOrgRole parses an organization role name (case-insensitive).
func ParseOrgRole(name string) (OrgRole, error) {
	r := OrgRole(strings.ToUpper(strings.TrimSpace(name)))
	if !r.Valid() {
		return "", &UnknownRoleError{Name: name, Catalog: "organization"}
	}
	return r, nil
}

// ProjectRole represents one entry of the project-role catalog: a production
// title with its privilege hierarchy and the responsibility tags used for
// semantic matching.
type ProjectRole struct {
	Name      string   `json:"name" bson:"name"`
	Hierarchy int      `json:"hierarchy" bson:"hierarchy"`
	Tags      []string `json:"tags" bson:"tags"`
}

// Tier represents a subscription tier.
type Tier string

const (
	TierBasic      Tier = "BASIC"
	TierPro        Tier = "PRO"
	TierEnterprise Tier = "ENTERPRISE"
)

// TierPolicy holds the per-tier constraints.
type TierPolicy struct {
	Tier         Tier `json:"tier" bson:"tier"`
	MaxHierarchy int  `json:"max_hierarchy" bson:"max_hierarchy"`
}

// tierPolicies is keyed by tier; rank orders tiers for tier-gated permissions.
var (
	tierPolicies = map[Tier]TierPolicy{
		TierBasic:      {Tier: TierBasic, MaxHierarchy: 40},
		TierPro:        {Tier: TierPro, MaxHierarchy: 80},
		TierEnterprise: {Tier: TierEnterprise, MaxHierarchy: 100},
	}
	tierRanks = map[Tier]int{
		TierBasic:      1,
		TierPro:        2,
		TierEnterprise: 3,
	}
)

// Valid reports whether the tier is known.
func (t Tier) Valid() bool {
	_, ok := tierPolicies[t]
	return ok
}

// AtLeast reports whether the tier ranks at or above other.
func (t Tier) AtLeast(other Tier) bool {
	return tierRanks[t] >= tierRanks[other]
}

// ParseTier parses a tier name (case-insensitive).
func ParseTier(name string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(name)))
	if !t.Valid() {
		return "", &ConfigurationError{Detail: fmt.Sprintf("unknown tier %q", name)}
	}
	return t, nil
}

// PolicyFor returns the tier policy for a tier.
func PolicyFor(tier Tier) (TierPolicy, error) {
	p, ok := tierPolicies[tier]
	if !ok {
		return TierPolicy{}, &ConfigurationError{Detail: fmt.Sprintf("unknown tier %q", tier)}
	}
	return p, nil
}

// RoleTemplate is a free-text industry title used as a mapping hint at
// assignment time. It is never persisted as a first-class entity.
type RoleTemplate struct {
	Name             string   `json:"name"`
	HierarchyHint    int      `json:"hierarchy_hint,omitempty"` // 0 means "no hint"
	Responsibilities []string `json:"responsibilities,omitempty"`
}

// ConfigurationError indicates an unknown tier or malformed catalog entry.
// It is always a deployment bug, surfaced at startup validation.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Detail
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	_, ok := err.(*ConfigurationError)
	return ok
}

// UnknownRoleError indicates a role name absent from its catalog. It is a
// caller bug, surfaced as a 400-equivalent and never silently defaulted.
type UnknownRoleError struct {
	Name    string
	Catalog string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown %s role %q", e.Catalog, e.Name)
}

// IsUnknownRole reports whether err is an UnknownRoleError.
func IsUnknownRole(err error) bool {
	_, ok := err.(*UnknownRoleError)
	return ok
}
