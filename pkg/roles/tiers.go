package roles

// ClampToTier enforces the tier ceiling on a project role. A role within the
// ceiling is returned unchanged; a role above it is replaced by the
// highest-hierarchy catalog role that fits (declaration order breaks ties).
//
// This silently downgrades rather than rejecting. That is an explicit policy
// choice favoring unblocked assignment flows over strict user intent.
func ClampToTier(role ProjectRole, tier Tier) (ProjectRole, bool, error) {
	policy, err := PolicyFor(tier)
	if err != nil {
		return ProjectRole{}, false, err
	}
	if _, err := ProjectRoleByName(role.Name); err != nil {
		return ProjectRole{}, false, err
	}
	if role.Hierarchy <= policy.MaxHierarchy {
		return role, false, nil
	}
	clamped, err := highestAtOrBelow(policy.MaxHierarchy)
	if err != nil {
		return ProjectRole{}, false, err
	}
	return clamped, true, nil
}

// EffectiveHierarchy computes the privilege level a user holds on a project:
// the maximum of the organization-role and project-role hierarchies.
func EffectiveHierarchy(orgRole OrgRole, projectRole ProjectRole) int {
	if orgRole.Hierarchy() > projectRole.Hierarchy {
		return orgRole.Hierarchy()
	}
	return projectRole.Hierarchy
}
