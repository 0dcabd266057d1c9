package policy

import (
	"sort"
	"strings"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
)

// WildcardScope matches any value inside a filter list.
const WildcardScope = "ALL"

// MatchesScope checks the action's bureau, project and category against the
// delegation scope under its mode. An empty filter list leaves that
// dimension unconstrained.
func MatchesScope(scope entities.Scope, action entities.ActionContext) bool {
	if scope.Mode == entities.ScopeModeAll {
		return true
	}
	return matchesDimension(scope, scope.Bureaus, action.Bureau) &&
		matchesDimension(scope, scope.Projects, action.Project) &&
		matchesDimension(scope, scope.Categories, action.Category)
}

func matchesDimension(scope entities.Scope, filters []string, value string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, filter := range filters {
		if filter == WildcardScope {
			return true
		}
		if filter == value {
			return true
		}
		if scope.Mode == entities.ScopeModeHierarchical && isHierarchicalMatch(filter, value) {
			return true
		}
	}
	return false
}

// isHierarchicalMatch treats scope entries as path prefixes with "/" as the
// segment separator, so "DAKAR" covers "DAKAR/NORD" but not "DAKARIA".
func isHierarchicalMatch(filter string, value string) bool {
	return strings.HasPrefix(value, filter+"/")
}

// ScopeSpecificity scores how tightly a scope pins the action: exact
// dimension hits count double, hierarchical prefix hits count once and
// wildcards count nothing. Used to rank candidate delegations.
func ScopeSpecificity(scope entities.Scope, action entities.ActionContext) int {
	if scope.Mode == entities.ScopeModeAll {
		return 0
	}
	score := 0
	score += dimensionSpecificity(scope, scope.Bureaus, action.Bureau)
	score += dimensionSpecificity(scope, scope.Projects, action.Project)
	score += dimensionSpecificity(scope, scope.Categories, action.Category)
	return score
}

func dimensionSpecificity(scope entities.Scope, filters []string, value string) int {
	best := 0
	for _, filter := range filters {
		switch {
		case filter == value:
			return 2
		case scope.Mode == entities.ScopeModeHierarchical && isHierarchicalMatch(filter, value):
			best = 1
		}
	}
	return best
}

// SelectPolicy picks the most specific policy applicable to the action.
// Overlapping policies are ordered deterministically: exact category match
// beats the wildcard, a higher threshold (the tighter trigger) beats a lower
// one, and policy id ascending settles what remains. The order is total so
// repeated evaluations always select the same policy.
func SelectPolicy(policies []entities.Policy, action entities.ActionContext) (entities.Policy, bool) {
	applicable := make([]entities.Policy, 0, len(policies))
	for _, candidate := range policies {
		if policyApplies(candidate, action) {
			applicable = append(applicable, candidate)
		}
	}
	if len(applicable) == 0 {
		return entities.Policy{}, false
	}

	sort.Slice(applicable, func(i, j int) bool {
		left, right := applicable[i], applicable[j]
		leftExact := left.Category == action.Category
		rightExact := right.Category == action.Category
		if leftExact != rightExact {
			return leftExact
		}
		if left.Threshold != right.Threshold {
			return left.Threshold > right.Threshold
		}
		return left.PolicyID < right.PolicyID
	})
	return applicable[0], true
}

func policyApplies(candidate entities.Policy, action entities.ActionContext) bool {
	if candidate.Category != "" && candidate.Category != WildcardScope && candidate.Category != action.Category {
		return false
	}
	if len(candidate.ActionTypes) > 0 {
		found := false
		for _, actionType := range candidate.ActionTypes {
			if actionType == action.ActionType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return action.Amount >= candidate.Threshold
}
