package roles

import (
	"fmt"
	"strings"
)

// projectRoleCatalog is the authoritative project-role catalog. Declaration
// order matters: when two roles share a hierarchy value, the one declared
// first wins ties (clamping, closest-hierarchy selection).
//
// Hierarchy values are policy, not derived data. Changing them is a breaking
// change for every stored mapping and issued token.
var projectRoleCatalog = []ProjectRole{
	{Name: "ADMIN", Hierarchy: 100, Tags: []string{"admin", "administrator", "management", "settings", "billing"}},
	{Name: "SHOWRUNNER", Hierarchy: 95, Tags: []string{"showrunner", "creative", "lead", "series", "management"}},
	{Name: "EXECUTIVE_PRODUCER", Hierarchy: 92, Tags: []string{"executive", "producer", "financing", "oversight"}},
	{Name: "DIRECTOR", Hierarchy: 90, Tags: []string{"director", "directing", "creative", "vision", "set"}},
	{Name: "LINE_PRODUCER", Hierarchy: 85, Tags: []string{"line", "producer", "budget", "schedule", "logistics"}},
	{Name: "UNIT_PRODUCTION_MANAGER", Hierarchy: 82, Tags: []string{"unit", "production", "manager", "upm", "logistics"}},
	{Name: "MANAGER", Hierarchy: 80, Tags: []string{"manager", "management", "team", "planning"}},
	{Name: "POST_PRODUCTION_SUPERVISOR", Hierarchy: 78, Tags: []string{"post", "supervisor", "delivery", "workflow"}},
	{Name: "DIRECTOR_OF_PHOTOGRAPHY", Hierarchy: 77, Tags: []string{"photography", "cinematographer", "camera", "lighting", "dp"}},
	{Name: "VFX_SUPERVISOR", Hierarchy: 76, Tags: []string{"vfx", "effects", "supervisor", "compositing"}},
	{Name: "FIRST_ASSISTANT_DIRECTOR", Hierarchy: 75, Tags: []string{"first", "assistant", "director", "schedule", "set"}},
	{Name: "PRODUCTION_DESIGNER", Hierarchy: 74, Tags: []string{"design", "designer", "art", "sets", "look"}},
	{Name: "PRODUCTION_ACCOUNTANT", Hierarchy: 71, Tags: []string{"accountant", "accounting", "finance", "payroll", "costs"}},
	{Name: "PRODUCTION_COORDINATOR", Hierarchy: 70, Tags: []string{"coordinator", "coordination", "office", "paperwork"}},
	{Name: "STUNT_COORDINATOR", Hierarchy: 69, Tags: []string{"stunt", "stunts", "safety", "action"}},
	{Name: "ART_DIRECTOR", Hierarchy: 68, Tags: []string{"art", "direction", "sets", "construction"}},
	{Name: "COSTUME_DESIGNER", Hierarchy: 66, Tags: []string{"costume", "wardrobe", "design", "fittings"}},
	{Name: "PRODUCER", Hierarchy: 65, Tags: []string{"producer", "producing", "development", "packaging"}},
	{Name: "CASTING_DIRECTOR", Hierarchy: 64, Tags: []string{"casting", "talent", "auditions", "actors"}},
	{Name: "LOCATION_MANAGER", Hierarchy: 63, Tags: []string{"location", "locations", "permits", "scouting"}},
	{Name: "ASSOCIATE_PRODUCER", Hierarchy: 62, Tags: []string{"associate", "producer", "support", "development"}},
	{Name: "SCRIPT_SUPERVISOR", Hierarchy: 61, Tags: []string{"script", "continuity", "notes", "coverage"}},
	{Name: "EDITOR", Hierarchy: 60, Tags: []string{"editor", "editing", "cut", "video", "timeline", "post"}},
	{Name: "GAFFER", Hierarchy: 59, Tags: []string{"gaffer", "lighting", "electric", "rigging"}},
	{Name: "KEY_GRIP", Hierarchy: 58, Tags: []string{"grip", "key", "rigging", "dollies"}},
	{Name: "SECOND_ASSISTANT_DIRECTOR", Hierarchy: 58, Tags: []string{"second", "assistant", "director", "callsheets", "extras"}},
	{Name: "COLORIST", Hierarchy: 57, Tags: []string{"color", "colorist", "grading", "finishing"}},
	{Name: "PRODUCTION_SOUND_MIXER", Hierarchy: 57, Tags: []string{"sound", "mixer", "recording", "audio", "set"}},
	{Name: "CAMERA_OPERATOR", Hierarchy: 56, Tags: []string{"camera", "operator", "framing", "shooting"}},
	{Name: "ASSISTANT_EDITOR", Hierarchy: 55, Tags: []string{"assistant", "editor", "dailies", "sync", "post"}},
	{Name: "DIGITAL_IMAGING_TECHNICIAN", Hierarchy: 54, Tags: []string{"digital", "imaging", "dit", "data", "media"}},
	{Name: "COMPOSER", Hierarchy: 53, Tags: []string{"composer", "music", "score", "scoring"}},
	{Name: "SOUND_DESIGNER", Hierarchy: 52, Tags: []string{"sound", "design", "mix", "foley", "audio"}},
	{Name: "STAFF_WRITER", Hierarchy: 51, Tags: []string{"writer", "writing", "script", "drafts"}},
	{Name: "VFX_ARTIST", Hierarchy: 50, Tags: []string{"vfx", "effects", "artist", "compositing", "cg"}},
	{Name: "SET_DECORATOR", Hierarchy: 49, Tags: []string{"set", "decorator", "dressing", "props"}},
	{Name: "MOTION_GRAPHICS_ARTIST", Hierarchy: 48, Tags: []string{"motion", "graphics", "titles", "animation"}},
	{Name: "PROP_MASTER", Hierarchy: 47, Tags: []string{"props", "prop", "master", "continuity"}},
	{Name: "FIRST_ASSISTANT_CAMERA", Hierarchy: 46, Tags: []string{"first", "camera", "focus", "puller", "lenses"}},
	{Name: "BEST_BOY_ELECTRIC", Hierarchy: 45, Tags: []string{"electric", "lighting", "crew", "cabling"}},
	{Name: "DRONE_OPERATOR", Hierarchy: 44, Tags: []string{"drone", "aerial", "operator", "pilot"}},
	{Name: "WARDROBE_SUPERVISOR", Hierarchy: 43, Tags: []string{"wardrobe", "costume", "supervisor", "continuity"}},
	{Name: "SECOND_ASSISTANT_CAMERA", Hierarchy: 42, Tags: []string{"second", "camera", "clapper", "slate", "media"}},
	{Name: "MAKEUP_ARTIST", Hierarchy: 41, Tags: []string{"makeup", "artist", "prosthetics", "touchups"}},
	{Name: "HAIR_STYLIST", Hierarchy: 41, Tags: []string{"hair", "stylist", "styling", "continuity"}},
	{Name: "PRODUCTION_ASSISTANT", Hierarchy: 40, Tags: []string{"production", "assistant", "pa", "runner", "support"}},
	{Name: "BOOM_OPERATOR", Hierarchy: 38, Tags: []string{"boom", "operator", "sound", "microphone"}},
	{Name: "ELECTRICIAN", Hierarchy: 36, Tags: []string{"electrician", "electric", "lamps", "power"}},
	{Name: "GRIP", Hierarchy: 35, Tags: []string{"grip", "rigging", "stands", "safety"}},
	{Name: "SET_PHOTOGRAPHER", Hierarchy: 34, Tags: []string{"photographer", "stills", "photos", "publicity"}},
	{Name: "CRAFT_SERVICES", Hierarchy: 28, Tags: []string{"craft", "services", "catering", "crew"}},
	{Name: "INTERN", Hierarchy: 15, Tags: []string{"intern", "trainee", "learning", "support"}},
	{Name: "OBSERVER", Hierarchy: 12, Tags: []string{"observer", "shadowing", "visitor"}},
	{Name: "GUEST", Hierarchy: 10, Tags: []string{"guest", "visitor", "readonly", "view"}},
}

// projectRolesByName indexes the catalog by upper-case name.
var projectRolesByName = func() map[string]ProjectRole {
	m := make(map[string]ProjectRole, len(projectRoleCatalog))
	for _, r := range projectRoleCatalog {
		m[r.Name] = r
	}
	return m
}()

// ProjectRoles returns a copy of the catalog in declaration order.
func ProjectRoles() []ProjectRole {
	out := make([]ProjectRole, len(projectRoleCatalog))
	copy(out, projectRoleCatalog)
	return out
}

// ProjectRoleByName looks up a catalog entry by name (case-insensitive).
func ProjectRoleByName(name string) (ProjectRole, error) {
	r, ok := projectRolesByName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return ProjectRole{}, &UnknownRoleError{Name: name, Catalog: "project"}
	}
	return r, nil
}

// ValidateCatalog checks catalog integrity. Call it at startup; a failure is
// a deployment bug, not a runtime condition.
func ValidateCatalog() error {
	if len(projectRoleCatalog) == 0 {
		return &ConfigurationError{Detail: "project-role catalog is empty"}
	}
	seen := make(map[string]struct{}, len(projectRoleCatalog))
	for i, r := range projectRoleCatalog {
		if strings.TrimSpace(r.Name) == "" {
			return &ConfigurationError{Detail: fmt.Sprintf("catalog entry %d has an empty name", i)}
		}
		if r.Name != strings.ToUpper(r.Name) {
			return &ConfigurationError{Detail: fmt.Sprintf("catalog role %q must be upper-case", r.Name)}
		}
		if r.Hierarchy < 1 || r.Hierarchy > 100 {
			return &ConfigurationError{Detail: fmt.Sprintf("catalog role %q hierarchy %d out of range 1..100", r.Name, r.Hierarchy)}
		}
		if _, dup := seen[r.Name]; dup {
			return &ConfigurationError{Detail: fmt.Sprintf("duplicate catalog role %q", r.Name)}
		}
		seen[r.Name] = struct{}{}
	}
	for _, t := range []Tier{TierBasic, TierPro, TierEnterprise} {
		p := tierPolicies[t]
		if p.MaxHierarchy < 1 || p.MaxHierarchy > 100 {
			return &ConfigurationError{Detail: fmt.Sprintf("tier %s max hierarchy %d out of range", t, p.MaxHierarchy)}
		}
		if _, err := highestAtOrBelow(p.MaxHierarchy); err != nil {
			return &ConfigurationError{Detail: fmt.Sprintf("tier %s ceiling %d has no catalog role at or below it", t, p.MaxHierarchy)}
		}
	}
	return nil
}

// highestAtOrBelow returns the highest-hierarchy catalog role whose hierarchy
// is <= limit. Ties go to the earlier declaration.
func highestAtOrBelow(limit int) (ProjectRole, error) {
	best := ProjectRole{}
	found := false
	for _, r := range projectRoleCatalog {
		if r.Hierarchy > limit {
			continue
		}
		if !found || r.Hierarchy > best.Hierarchy {
			best = r
			found = true
		}
	}
	if !found {
		return ProjectRole{}, &ConfigurationError{Detail: fmt.Sprintf("no catalog role at or below hierarchy %d", limit)}
	}
	return best, nil
}
