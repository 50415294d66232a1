// Package permissions derives concrete permission sets from an effective
// hierarchy and a subscription tier.
//
// The calculation is a pure threshold table and nothing else: no database
// lookups, no per-user state. Callers recompute the set whenever hierarchy or
// tier changes; permission sets are never diffed or patched.
//
//	set := permissions.Compute(65, roles.TierPro)
//	if set.CanManageProjects {
//		...
//	}
//
// The thresholds are a documented product invariant. Changing any of them is
// a breaking policy change, guarded by tests.
package permissions
