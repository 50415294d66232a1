package permissions

import "github.com/crewsync/crewsync/pkg/roles"

// Permission names as they appear in token claims and audit records.
const (
	NameManageTeam     = "canManageTeam"
	NameManageProjects = "canManageProjects"
	NameViewFinancials = "canViewFinancials"
	NameEditContent    = "canEditContent"
	NameApproveContent = "canApproveContent"
	NameAccessReports  = "canAccessReports"
	NameManageSettings = "canManageSettings"
)

// Minimum effective hierarchy per permission. canViewFinancials additionally
// requires tier >= PRO.
const (
	minManageTeam     = 90
	minManageProjects = 60
	minViewFinancials = 70
	minEditContent    = 25
	minApproveContent = 40
	minAccessReports  = 30
	minManageSettings = 90
)

// PermissionSet is the concrete permission grant for one user on one project.
// It is a pure function of (effective hierarchy, tier) and is never stored
// independently of those inputs.
type PermissionSet struct {
	CanManageTeam     bool `json:"can_manage_team" bson:"can_manage_team"`
	CanManageProjects bool `json:"can_manage_projects" bson:"can_manage_projects"`
	CanViewFinancials bool `json:"can_view_financials" bson:"can_view_financials"`
	CanEditContent    bool `json:"can_edit_content" bson:"can_edit_content"`
	CanApproveContent bool `json:"can_approve_content" bson:"can_approve_content"`
	CanAccessReports  bool `json:"can_access_reports" bson:"can_access_reports"`
	CanManageSettings bool `json:"can_manage_settings" bson:"can_manage_settings"`
	HierarchyLevel    int  `json:"hierarchy_level" bson:"hierarchy_level"`
}

// Compute derives the permission set for an effective hierarchy and tier.
// Idempotent; callers re-invoke it on every role or tier change.
func Compute(effectiveHierarchy int, tier roles.Tier) PermissionSet {
	return PermissionSet{
		CanManageTeam:     effectiveHierarchy >= minManageTeam,
		CanManageProjects: effectiveHierarchy >= minManageProjects,
		CanViewFinancials: effectiveHierarchy >= minViewFinancials && tier.AtLeast(roles.TierPro),
		CanEditContent:    effectiveHierarchy >= minEditContent,
		CanApproveContent: effectiveHierarchy >= minApproveContent,
		CanAccessReports:  effectiveHierarchy >= minAccessReports,
		CanManageSettings: effectiveHierarchy >= minManageSettings,
		HierarchyLevel:    effectiveHierarchy,
	}
}

// EnabledNames returns the names of the granted permissions, in stable order,
// for embedding in token claims.
func (p PermissionSet) EnabledNames() []string {
	names := make([]string, 0, 7)
	for _, e := range []struct {
		name    string
		granted bool
	}{
		{NameManageTeam, p.CanManageTeam},
		{NameManageProjects, p.CanManageProjects},
		{NameViewFinancials, p.CanViewFinancials},
		{NameEditContent, p.CanEditContent},
		{NameApproveContent, p.CanApproveContent},
		{NameAccessReports, p.CanAccessReports},
		{NameManageSettings, p.CanManageSettings},
	} {
		if e.granted {
			names = append(names, e.name)
		}
	}
	return names
}

// Has reports whether the named permission is granted.
func (p PermissionSet) Has(name string) bool {
	switch name {
	case NameManageTeam:
		return p.CanManageTeam
	case NameManageProjects:
		return p.CanManageProjects
	case NameViewFinancials:
		return p.CanViewFinancials
	case NameEditContent:
		return p.CanEditContent
	case NameApproveContent:
		return p.CanApproveContent
	case NameAccessReports:
		return p.CanAccessReports
	case NameManageSettings:
		return p.CanManageSettings
	default:
		return false
	}
}
