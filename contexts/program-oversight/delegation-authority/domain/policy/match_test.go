package policy

import (
	"testing"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
)

func TestMatchesScopeExactMode(t *testing.T) {
	scope := entities.Scope{
		Mode:    entities.ScopeModeExact,
		Bureaus: []string{"DAKAR"},
	}

	if !MatchesScope(scope, entities.ActionContext{Bureau: "DAKAR"}) {
		t.Fatalf("exact bureau must match")
	}
	if MatchesScope(scope, entities.ActionContext{Bureau: "DAKAR/NORD"}) {
		t.Fatalf("exact mode must not match sub-bureaus")
	}
}

func TestMatchesScopeHierarchicalMode(t *testing.T) {
	scope := entities.Scope{
		Mode:    entities.ScopeModeHierarchical,
		Bureaus: []string{"DAKAR"},
	}

	if !MatchesScope(scope, entities.ActionContext{Bureau: "DAKAR/NORD"}) {
		t.Fatalf("hierarchical mode must cover sub-bureaus")
	}
	if MatchesScope(scope, entities.ActionContext{Bureau: "DAKARIA"}) {
		t.Fatalf("prefix match must respect segment boundaries")
	}
}

func TestMatchesScopeWildcardEntry(t *testing.T) {
	scope := entities.Scope{
		Mode:       entities.ScopeModeExact,
		Bureaus:    []string{WildcardScope},
		Categories: []string{"WORKS"},
	}

	if !MatchesScope(scope, entities.ActionContext{Bureau: "ZIGUINCHOR", Category: "WORKS"}) {
		t.Fatalf("wildcard entry must match any bureau")
	}
	if MatchesScope(scope, entities.ActionContext{Bureau: "ZIGUINCHOR", Category: "SERVICES"}) {
		t.Fatalf("other dimensions must still be enforced")
	}
}

func TestMatchesScopeAllModeIgnoresFilters(t *testing.T) {
	scope := entities.Scope{
		Mode:    entities.ScopeModeAll,
		Bureaus: []string{"DAKAR"},
	}

	if !MatchesScope(scope, entities.ActionContext{Bureau: "THIES"}) {
		t.Fatalf("all mode must match everything")
	}
}

func TestMatchesScopeEmptyFilterIsUnconstrained(t *testing.T) {
	scope := entities.Scope{Mode: entities.ScopeModeExact}

	if !MatchesScope(scope, entities.ActionContext{Bureau: "ANY", Project: "ANY", Category: "ANY"}) {
		t.Fatalf("empty filter lists must not constrain")
	}
}

func TestScopeSpecificityRanking(t *testing.T) {
	action := entities.ActionContext{Bureau: "DAKAR/NORD", Category: "WORKS"}

	exact := entities.Scope{
		Mode:       entities.ScopeModeExact,
		Bureaus:    []string{"DAKAR/NORD"},
		Categories: []string{"WORKS"},
	}
	hierarchical := entities.Scope{
		Mode:       entities.ScopeModeHierarchical,
		Bureaus:    []string{"DAKAR"},
		Categories: []string{"WORKS"},
	}
	all := entities.Scope{Mode: entities.ScopeModeAll}

	exactScore := ScopeSpecificity(exact, action)
	hierarchicalScore := ScopeSpecificity(hierarchical, action)
	allScore := ScopeSpecificity(all, action)

	if exactScore <= hierarchicalScore {
		t.Fatalf("exact scope must outrank hierarchical: %d vs %d", exactScore, hierarchicalScore)
	}
	if hierarchicalScore <= allScore {
		t.Fatalf("hierarchical scope must outrank all: %d vs %d", hierarchicalScore, allScore)
	}
}

func TestSelectPolicyPrefersExactCategory(t *testing.T) {
	action := entities.ActionContext{ActionType: "engage_expense", Category: "WORKS", Amount: 5_000_000}
	policies := []entities.Policy{
		{PolicyID: "policy-any", Category: WildcardScope, Threshold: 1_000_000},
		{PolicyID: "policy-works", Category: "WORKS", Threshold: 1_000_000},
	}

	selected, ok := SelectPolicy(policies, action)
	if !ok {
		t.Fatalf("expected a selected policy")
	}
	if selected.PolicyID != "policy-works" {
		t.Fatalf("expected exact category to win, got %s", selected.PolicyID)
	}
}

func TestSelectPolicyPrefersHigherThreshold(t *testing.T) {
	action := entities.ActionContext{ActionType: "engage_expense", Category: "WORKS", Amount: 5_000_000}
	policies := []entities.Policy{
		{PolicyID: "policy-low", Category: "WORKS", Threshold: 1_000_000},
		{PolicyID: "policy-high", Category: "WORKS", Threshold: 4_000_000},
	}

	selected, _ := SelectPolicy(policies, action)
	if selected.PolicyID != "policy-high" {
		t.Fatalf("expected tighter threshold to win, got %s", selected.PolicyID)
	}
}

func TestSelectPolicyBreaksTiesOnPolicyID(t *testing.T) {
	action := entities.ActionContext{ActionType: "engage_expense", Category: "WORKS", Amount: 5_000_000}
	policies := []entities.Policy{
		{PolicyID: "policy-b", Category: "WORKS", Threshold: 2_000_000},
		{PolicyID: "policy-a", Category: "WORKS", Threshold: 2_000_000},
	}

	selected, _ := SelectPolicy(policies, action)
	if selected.PolicyID != "policy-a" {
		t.Fatalf("expected lowest policy id on full tie, got %s", selected.PolicyID)
	}
}

func TestSelectPolicySkipsBelowThreshold(t *testing.T) {
	action := entities.ActionContext{ActionType: "engage_expense", Category: "WORKS", Amount: 500_000}
	policies := []entities.Policy{
		{PolicyID: "policy-works", Category: "WORKS", Threshold: 1_000_000},
	}

	if _, ok := SelectPolicy(policies, action); ok {
		t.Fatalf("policy must not apply below its threshold")
	}
}

func TestSelectPolicyFiltersActionType(t *testing.T) {
	action := entities.ActionContext{ActionType: "sign_contract", Category: "WORKS", Amount: 5_000_000}
	policies := []entities.Policy{
		{PolicyID: "policy-expense", Category: "WORKS", ActionTypes: []string{"engage_expense"}, Threshold: 0},
	}

	if _, ok := SelectPolicy(policies, action); ok {
		t.Fatalf("policy must not apply to an unlisted action type")
	}
}
