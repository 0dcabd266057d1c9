package policy

import (
	"testing"
	"time"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
)

func activeDelegation() entities.Delegation {
	return entities.Delegation{
		DelegationID: "delegation-1",
		Status:       entities.StatusActive,
		Scope: entities.Scope{
			Mode:       entities.ScopeModeExact,
			Bureaus:    []string{"DAKAR"},
			Categories: []string{"WORKS"},
		},
		Limits: entities.Limits{
			MaxPerTransaction: 10_000_000,
			Quota:             50_000_000,
			Currency:          "XOF",
		},
		Validity: entities.Validity{
			StartsAt: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
			EndsAt:   time.Date(2026, time.December, 31, 23, 59, 59, 0, time.UTC),
		},
		Engagements: []entities.Engagement{
			{EngagementID: "engagement-1", Amount: 4_000_000, Supplier: "SENBAT"},
		},
	}
}

func worksAction(amount int64) entities.ActionContext {
	return entities.ActionContext{
		ActionType: "engage_expense",
		Bureau:     "DAKAR",
		Category:   "WORKS",
		Amount:     amount,
		Currency:   "XOF",
		Supplier:   "SENBAT",
		Timestamp:  time.Date(2026, time.June, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestEvaluateAuthorizesWithinLimit(t *testing.T) {
	result := Evaluate(activeDelegation(), worksAction(5_000_000))

	if result.Verdict != entities.VerdictAuthorized {
		t.Fatalf("expected AUTHORIZED, got %s (%v)", result.Verdict, result.Reasons)
	}
	if len(result.Reasons) != 0 {
		t.Fatalf("expected no reasons, got %v", result.Reasons)
	}
}

func TestEvaluateDeniesAmountAboveLimit(t *testing.T) {
	result := Evaluate(activeDelegation(), worksAction(12_000_000))

	if result.Verdict != entities.VerdictDenied {
		t.Fatalf("expected DENIED, got %s", result.Verdict)
	}
	if len(result.Reasons) != 1 || result.Reasons[0] != ReasonAmountExceedsLimit {
		t.Fatalf("expected single reason %s, got %v", ReasonAmountExceedsLimit, result.Reasons)
	}
}

func TestEvaluateFlagsProximityWhileAuthorized(t *testing.T) {
	result := Evaluate(activeDelegation(), worksAction(9_500_000))

	if result.Verdict != entities.VerdictAuthorized {
		t.Fatalf("expected AUTHORIZED, got %s (%v)", result.Verdict, result.Reasons)
	}
	if !hasRisk(result.Risks, entities.RiskHighAmountProximity) {
		t.Fatalf("expected %s risk, got %v", entities.RiskHighAmountProximity, result.Risks)
	}
}

func TestEvaluateDeniesInactiveStatus(t *testing.T) {
	for _, status := range []entities.DelegationStatus{
		entities.StatusDraft,
		entities.StatusSubmitted,
		entities.StatusSuspended,
		entities.StatusRevoked,
	} {
		delegation := activeDelegation()
		delegation.Status = status

		result := Evaluate(delegation, worksAction(1_000_000))
		if result.Verdict != entities.VerdictDenied {
			t.Fatalf("status %s: expected DENIED, got %s", status, result.Verdict)
		}
		if result.Reasons[0] != ReasonStatusInvalid {
			t.Fatalf("status %s: expected %s, got %v", status, ReasonStatusInvalid, result.Reasons)
		}
	}
}

func TestEvaluateDeniesOutsideValidityWindow(t *testing.T) {
	action := worksAction(1_000_000)
	action.Timestamp = time.Date(2027, time.January, 2, 10, 0, 0, 0, time.UTC)

	result := Evaluate(activeDelegation(), action)
	if result.Verdict != entities.VerdictDenied || result.Reasons[0] != ReasonOutOfValidityWindow {
		t.Fatalf("expected %s, got %s %v", ReasonOutOfValidityWindow, result.Verdict, result.Reasons)
	}
}

func TestEvaluateHonorsAllowedWeekdays(t *testing.T) {
	delegation := activeDelegation()
	delegation.Validity.AllowedWeekdays = []time.Weekday{time.Monday, time.Tuesday}

	action := worksAction(1_000_000)
	// 2026-06-15 is a Monday.
	result := Evaluate(delegation, action)
	if result.Verdict != entities.VerdictAuthorized {
		t.Fatalf("expected AUTHORIZED on allowed weekday, got %s %v", result.Verdict, result.Reasons)
	}

	action.Timestamp = time.Date(2026, time.June, 20, 10, 0, 0, 0, time.UTC) // Saturday
	result = Evaluate(delegation, action)
	if result.Verdict != entities.VerdictDenied || result.Reasons[0] != ReasonOutOfValidityWindow {
		t.Fatalf("expected weekday denial, got %s %v", result.Verdict, result.Reasons)
	}
}

func TestEvaluateDeniesOutOfScope(t *testing.T) {
	action := worksAction(1_000_000)
	action.Bureau = "THIES"

	result := Evaluate(activeDelegation(), action)
	if result.Verdict != entities.VerdictDenied || result.Reasons[0] != ReasonOutOfScope {
		t.Fatalf("expected %s, got %s %v", ReasonOutOfScope, result.Verdict, result.Reasons)
	}
}

func TestEvaluateDeniesExhaustedQuota(t *testing.T) {
	delegation := activeDelegation()
	delegation.Engagements = []entities.Engagement{
		{EngagementID: "engagement-1", Amount: 48_000_000, Supplier: "SENBAT"},
	}

	result := Evaluate(delegation, worksAction(3_000_000))
	if result.Verdict != entities.VerdictDenied || result.Reasons[0] != ReasonQuotaExhausted {
		t.Fatalf("expected %s, got %s %v", ReasonQuotaExhausted, result.Verdict, result.Reasons)
	}
}

func TestEvaluatePendingControlWhenEvidenceMissing(t *testing.T) {
	delegation := activeDelegation()
	delegation.Policies = []entities.Policy{
		{
			PolicyID:         "policy-works",
			Category:         "WORKS",
			ActionTypes:      []string{"engage_expense"},
			Threshold:        2_000_000,
			RequiredControls: []string{"three_quotes", "budget_line"},
		},
	}

	action := worksAction(5_000_000)
	action.EvidencedControls = []string{"budget_line"}

	result := Evaluate(delegation, action)
	if result.Verdict != entities.VerdictPendingControl {
		t.Fatalf("expected PENDING_CONTROL, got %s %v", result.Verdict, result.Reasons)
	}
	if result.MatchedPolicyID != "policy-works" {
		t.Fatalf("expected matched policy policy-works, got %q", result.MatchedPolicyID)
	}
	if len(result.RequiredControls) != 1 || result.RequiredControls[0] != "three_quotes" {
		t.Fatalf("expected missing three_quotes, got %v", result.RequiredControls)
	}

	action.EvidencedControls = []string{"budget_line", "three_quotes"}
	result = Evaluate(delegation, action)
	if result.Verdict != entities.VerdictAuthorized {
		t.Fatalf("expected AUTHORIZED once evidenced, got %s", result.Verdict)
	}
}

func TestEvaluateComputesRisksOnDenial(t *testing.T) {
	delegation := activeDelegation()
	delegation.Engagements = nil

	action := worksAction(12_000_000)
	action.Supplier = "NEWCO"

	result := Evaluate(delegation, action)
	if result.Verdict != entities.VerdictDenied {
		t.Fatalf("expected DENIED, got %s", result.Verdict)
	}
	if !hasRisk(result.Risks, entities.RiskFirstUse) {
		t.Fatalf("expected %s risk on denial, got %v", entities.RiskFirstUse, result.Risks)
	}
	if !hasRisk(result.Risks, entities.RiskUnknownSupplier) {
		t.Fatalf("expected %s risk on denial, got %v", entities.RiskUnknownSupplier, result.Risks)
	}
}

func TestEvaluateFlagsQuotaNearExhaustion(t *testing.T) {
	delegation := activeDelegation()
	delegation.Engagements = []entities.Engagement{
		{EngagementID: "engagement-1", Amount: 40_000_000, Supplier: "SENBAT"},
	}

	result := Evaluate(delegation, worksAction(6_000_000))
	if result.Verdict != entities.VerdictAuthorized {
		t.Fatalf("expected AUTHORIZED, got %s %v", result.Verdict, result.Reasons)
	}
	if !hasRisk(result.Risks, entities.RiskQuotaNearExhaustion) {
		t.Fatalf("expected %s risk, got %v", entities.RiskQuotaNearExhaustion, result.Risks)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	delegation := activeDelegation()
	action := worksAction(9_500_000)

	first := Evaluate(delegation, action)
	second := Evaluate(delegation, action)

	if first.Verdict != second.Verdict || len(first.Risks) != len(second.Risks) {
		t.Fatalf("identical snapshots produced different results: %+v vs %+v", first, second)
	}
	if !first.EvaluatedAt.Equal(second.EvaluatedAt) {
		t.Fatalf("evaluated-at must come from the action timestamp")
	}
}

func TestFindMatchingDelegationsOrdersBySpecificity(t *testing.T) {
	action := worksAction(1_000_000)

	broad := activeDelegation()
	broad.DelegationID = "delegation-broad"
	broad.Scope = entities.Scope{Mode: entities.ScopeModeAll}

	narrow := activeDelegation()
	narrow.DelegationID = "delegation-narrow"

	inactive := activeDelegation()
	inactive.DelegationID = "delegation-inactive"
	inactive.Status = entities.StatusSuspended

	matches := FindMatchingDelegations(action, []entities.Delegation{broad, inactive, narrow})
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].DelegationID != "delegation-narrow" {
		t.Fatalf("expected narrow scope first, got %s", matches[0].DelegationID)
	}
	if matches[1].DelegationID != "delegation-broad" {
		t.Fatalf("expected broad scope second, got %s", matches[1].DelegationID)
	}
}

func hasRisk(risks []entities.Risk, riskType string) bool {
	for _, risk := range risks {
		if risk.Type == riskType {
			return true
		}
	}
	return false
}
