package bridge

import (
	"fmt"

	"github.com/crewsync/crewsync/pkg/permissions"
	"github.com/crewsync/crewsync/pkg/roles"
)

// MappingReason identifies which resolution strategy produced a mapping.
type MappingReason string

const (
	ReasonDirectName   MappingReason = "direct-name-match"
	ReasonSemantic     MappingReason = "semantic-match"
	ReasonHierarchy    MappingReason = "hierarchy-fallback"
	ReasonDefaultTable MappingReason = "default-table"
)

// Mapping is the resolved role assignment for one user on one project. It is
// derived data: recomputed whenever its inputs change, cached per
// (user, project) pair, and replaced whole on every write.
type Mapping struct {
	OrgRole            roles.OrgRole             `json:"org_role" bson:"org_role"`
	ProjectRole        roles.ProjectRole         `json:"project_role" bson:"project_role"`
	EffectiveHierarchy int                       `json:"effective_hierarchy" bson:"effective_hierarchy"`
	Permissions        permissions.PermissionSet `json:"permissions" bson:"permissions"`
	Tier               roles.Tier                `json:"tier" bson:"tier"`
	Reason             MappingReason             `json:"reason" bson:"reason"`
	Clamped            bool                      `json:"clamped" bson:"clamped"`
}

// Validate checks the structural invariants of a mapping, including the
// effective-hierarchy equality and the tier ceiling. Used before applying a
// synchronized mapping to the target context.
func (m *Mapping) Validate() error {
	if !m.OrgRole.Valid() {
		return &roles.UnknownRoleError{Name: string(m.OrgRole), Catalog: "organization"}
	}
	catalogRole, err := roles.ProjectRoleByName(m.ProjectRole.Name)
	if err != nil {
		return err
	}
	if catalogRole.Hierarchy != m.ProjectRole.Hierarchy {
		return fmt.Errorf("project role %s hierarchy %d does not match catalog value %d",
			m.ProjectRole.Name, m.ProjectRole.Hierarchy, catalogRole.Hierarchy)
	}
	if want := roles.EffectiveHierarchy(m.OrgRole, m.ProjectRole); m.EffectiveHierarchy != want {
		return fmt.Errorf("effective hierarchy %d does not equal max(org, project) = %d",
			m.EffectiveHierarchy, want)
	}
	policy, err := roles.PolicyFor(m.Tier)
	if err != nil {
		return err
	}
	if m.ProjectRole.Hierarchy > policy.MaxHierarchy {
		return fmt.Errorf("project role %s hierarchy %d exceeds tier %s ceiling %d",
			m.ProjectRole.Name, m.ProjectRole.Hierarchy, m.Tier, policy.MaxHierarchy)
	}
	return nil
}

// defaultTable is the template-free mapping of organization roles onto
// project roles. Hierarchies come from the catalog, the authoritative source.
var defaultTable = map[roles.OrgRole]string{
	roles.OrgRoleOwner:  "ADMIN",
	roles.OrgRoleAdmin:  "MANAGER",
	roles.OrgRoleMember: "PRODUCER",
	roles.OrgRoleViewer: "GUEST",
}

// bandDefault is the target hierarchy used by the banded fallback when the
// template carries no hierarchy hint.
var bandDefault = map[roles.OrgRole]int{
	roles.OrgRoleOwner:  100,
	roles.OrgRoleAdmin:  80,
	roles.OrgRoleMember: 60,
	roles.OrgRoleViewer: 20,
}

// Map resolves an organization role (optionally refined by a template) to a
// project role, clamps it to the tier ceiling, and derives the effective
// hierarchy and permission set. Total for all valid (orgRole, tier) pairs.
func Map(orgRole roles.OrgRole, template *roles.RoleTemplate, tier roles.Tier) (*Mapping, error) {
	if !orgRole.Valid() {
		return nil, &roles.UnknownRoleError{Name: string(orgRole), Catalog: "organization"}
	}
	if _, err := roles.PolicyFor(tier); err != nil {
		return nil, err
	}

	role, reason := resolve(orgRole, template)

	clamped, wasClamped, err := roles.ClampToTier(role, tier)
	if err != nil {
		return nil, err
	}

	effective := roles.EffectiveHierarchy(orgRole, clamped)
	return &Mapping{
		OrgRole:            orgRole,
		ProjectRole:        clamped,
		EffectiveHierarchy: effective,
		Permissions:        permissions.Compute(effective, tier),
		Tier:               tier,
		Reason:             reason,
		Clamped:            wasClamped,
	}, nil
}

// resolve picks the raw (pre-clamp) project role.
func resolve(orgRole roles.OrgRole, template *roles.RoleTemplate) (roles.ProjectRole, MappingReason) {
	if template != nil {
		if role, err := roles.ProjectRoleByName(template.Name); err == nil {
			return role, ReasonDirectName
		}
		if role, ok := semanticMatch(template); ok {
			return role, ReasonSemantic
		}
		return bandedFallback(orgRole, template), ReasonHierarchy
	}

	role, err := roles.ProjectRoleByName(defaultTable[orgRole])
	if err != nil {
		// The default table references only catalog anchors; a miss means
		// the catalog itself is broken and startup validation was skipped.
		panic(err)
	}
	return role, ReasonDefaultTable
}

// bandedFallback picks the catalog role whose hierarchy is closest to the
// template's hint, or to the organization role's band default, restricted to
// the band the organization role belongs to. Ties go to the earlier catalog
// declaration.
func bandedFallback(orgRole roles.OrgRole, template *roles.RoleTemplate) roles.ProjectRole {
	target := template.HierarchyHint
	if target < 1 || target > 100 {
		target = bandDefault[orgRole]
	}

	lo, hi := bandFor(orgRole)
	best, found := closestInRange(target, lo, hi)
	if !found {
		// No catalog role in the band; fall back to the whole scale.
		best, _ = closestInRange(target, 1, 100)
	}
	return best
}

// bandFor returns the hierarchy band an organization role maps into:
// management for OWNER/ADMIN, mid band for MEMBER, low band for VIEWER.
func bandFor(orgRole roles.OrgRole) (lo, hi int) {
	switch orgRole {
	case roles.OrgRoleOwner, roles.OrgRoleAdmin:
		return 80, 100
	case roles.OrgRoleMember:
		return 40, 79
	default:
		return 1, 39
	}
}

func closestInRange(target, lo, hi int) (roles.ProjectRole, bool) {
	var best roles.ProjectRole
	bestDist := -1
	for _, r := range roles.ProjectRoles() {
		if r.Hierarchy < lo || r.Hierarchy > hi {
			continue
		}
		dist := target - r.Hierarchy
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best = r
			bestDist = dist
		}
	}
	return best, bestDist >= 0
}
