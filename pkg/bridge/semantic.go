package bridge

import (
	"strings"
	"unicode"

	"github.com/crewsync/crewsync/pkg/roles"
)

// minSemanticScore is the minimum token overlap required for a semantic
// match. Below it the mapper falls through to the hierarchy band.
const minSemanticScore = 1

// semanticMatch scores every catalog role by token overlap between the
// template (title + responsibility phrases) and the role's tags plus name
// tokens. The highest score wins; ties are broken by closeness to the
// template's hierarchy hint, then by catalog declaration order.
func semanticMatch(template *roles.RoleTemplate) (roles.ProjectRole, bool) {
	tokens := tokenize(template.Name)
	for _, phrase := range template.Responsibilities {
		for tok := range tokenize(phrase) {
			tokens[tok] = struct{}{}
		}
	}
	if len(tokens) == 0 {
		return roles.ProjectRole{}, false
	}

	var best roles.ProjectRole
	bestScore := 0
	bestDist := -1
	for _, r := range roles.ProjectRoles() {
		score := overlap(tokens, r)
		if score < minSemanticScore {
			continue
		}
		dist := hintDistance(template.HierarchyHint, r.Hierarchy)
		if score > bestScore || (score == bestScore && dist < bestDist) {
			best = r
			bestScore = score
			bestDist = dist
		}
	}
	return best, bestScore >= minSemanticScore
}

// overlap counts template tokens found in the role's tags or name tokens.
func overlap(tokens map[string]struct{}, role roles.ProjectRole) int {
	vocab := make(map[string]struct{}, len(role.Tags)+4)
	for _, tag := range role.Tags {
		vocab[strings.ToLower(tag)] = struct{}{}
	}
	for tok := range tokenize(role.Name) {
		vocab[tok] = struct{}{}
	}

	score := 0
	for tok := range tokens {
		if _, ok := vocab[tok]; ok {
			score++
		}
	}
	return score
}

// hintDistance measures how far a candidate hierarchy is from the template
// hint. Without a hint every candidate is equally far, so declaration order
// decides ties.
func hintDistance(hint, hierarchy int) int {
	if hint < 1 || hint > 100 {
		return 101
	}
	if hint > hierarchy {
		return hint - hierarchy
	}
	return hierarchy - hint
}

// tokenize lowercases and splits on any non-alphanumeric rune, dropping
// single-character fragments.
func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		tokens[f] = struct{}{}
	}
	return tokens
}
