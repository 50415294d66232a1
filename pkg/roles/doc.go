// Package roles defines the two role catalogs used across CrewSync and the
// tier validation rules that constrain them.
//
// # Overview
//
// CrewSync has two role vocabularies:
//
//   - Organization roles: four coarse, account-level roles (owner, admin,
//     member, viewer) scoped to an entire organization.
//   - Project roles: a catalog of production titles (editor, producer,
//     gaffer, ...) scoped to a single project.
//
// Both vocabularies share a single privilege scale: an integer hierarchy from
// 1 to 100, where higher means more privileged. The effective hierarchy of a
// user on a project is the maximum of their organization-role hierarchy and
// their project-role hierarchy.
//
// # Tiers
//
// Subscription tiers (basic, pro, enterprise) cap the maximum hierarchy a
// project role may carry. A role above the ceiling is clamped down to the
// highest catalog role that fits, never rejected:
//
//	role, _ := roles.ProjectRoleByName("MANAGER") // hierarchy 80
//	clamped, _ := roles.ClampToTier(role, roles.TierBasic)
//	// clamped is PRODUCTION_ASSISTANT (hierarchy 40)
//
// Clamping instead of rejecting is a deliberate policy: a too-generous
// assignment silently degrades to the most privileged role the plan allows,
// so assignment flows are never blocked by plan limits.
//
// # Catalog integrity
//
// The project-role catalog is configuration data. ValidateCatalog runs at
// startup and fails with ConfigurationError on malformed entries (empty
// names, hierarchy out of range, duplicate names). Catalog declaration order
// is significant: it breaks ties when two roles share a hierarchy value.
package roles
