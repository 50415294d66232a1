// Package bridge maps organization-level roles onto project-level roles.
//
// # Overview
//
// A role assignment made in the organization ("licensing") context has to
// land on a concrete project ("dashboard") role. Map resolves that landing
// spot with four strategies, tried in order, first match wins:
//
//  1. Direct name match: the template title equals a catalog role name.
//  2. Semantic match: token overlap between the template title plus
//     responsibility phrases and each catalog role's tags.
//  3. Hierarchy-banded fallback: the catalog role closest to the template's
//     hierarchy hint, or to a band derived from the organization role.
//  4. Default table: OWNER→ADMIN, ADMIN→MANAGER, MEMBER→PRODUCER,
//     VIEWER→GUEST.
//
// Map is a total, pure function: for every valid (orgRole, tier) pair it
// returns a catalog role, clamped to the tier ceiling, with the effective
// hierarchy and derived permission set attached. The Reason field records
// which strategy fired, for debugging and audit.
//
// Persistence is the caller's responsibility; this package has no side
// effects.
package bridge
