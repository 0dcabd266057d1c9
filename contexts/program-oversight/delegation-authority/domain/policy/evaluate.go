package policy

import (
	"sort"
	"time"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
)

const (
	ReasonStatusInvalid          = "status_invalid"
	ReasonOutOfValidityWindow    = "out_of_validity_window"
	ReasonOutOfScope             = "out_of_scope"
	ReasonAmountExceedsLimit     = "amount_exceeds_limit"
	ReasonQuotaExhausted         = "quota_exhausted"
	ReasonMissingRequiredControl = "missing_required_control"
)

// Evaluate decides whether the action is covered by the delegation. It is a
// pure function of its two inputs: identical snapshots always yield an
// identical result, which lets historical evaluations be replayed during
// disputes. The caller supplies the action timestamp; this package never
// reads the wall clock.
//
// Gates run in order and short-circuit on the first failure: status,
// validity window, scope, per-transaction limit, cumulative quota, then
// policy-required controls. Risks are computed regardless of the verdict
// and never change it.
func Evaluate(delegation entities.Delegation, action entities.ActionContext) entities.EvaluationResult {
	result := entities.EvaluationResult{
		Verdict:     entities.VerdictAuthorized,
		EvaluatedAt: action.Timestamp.UTC(),
	}

	deny := func(reason string) entities.EvaluationResult {
		result.Verdict = entities.VerdictDenied
		result.Reasons = append(result.Reasons, reason)
		result.Risks = computeRisks(delegation, action)
		return result
	}

	if delegation.Status != entities.StatusActive {
		return deny(ReasonStatusInvalid)
	}

	if !withinValidityWindow(delegation.Validity, action.Timestamp) {
		return deny(ReasonOutOfValidityWindow)
	}

	if !MatchesScope(delegation.Scope, action) {
		return deny(ReasonOutOfScope)
	}

	if delegation.Limits.MaxPerTransaction > 0 && action.Amount > delegation.Limits.MaxPerTransaction {
		return deny(ReasonAmountExceedsLimit)
	}
	if delegation.Limits.Quota > 0 && delegation.CommittedAmount()+action.Amount > delegation.Limits.Quota {
		return deny(ReasonQuotaExhausted)
	}

	if selected, ok := SelectPolicy(delegation.Policies, action); ok {
		result.MatchedPolicyID = selected.PolicyID
		missing := missingControls(selected.RequiredControls, action.EvidencedControls)
		if len(missing) > 0 {
			result.Verdict = entities.VerdictPendingControl
			result.Reasons = append(result.Reasons, ReasonMissingRequiredControl)
			result.RequiredControls = missing
		}
	}

	result.Risks = computeRisks(delegation, action)
	return result
}

// CanPotentiallyAuthorize runs only the status, temporal and scope gates. It
// is the cheap pre-filter for pruning large candidate sets before a full
// evaluation.
func CanPotentiallyAuthorize(delegation entities.Delegation, action entities.ActionContext) bool {
	if delegation.Status != entities.StatusActive {
		return false
	}
	if !withinValidityWindow(delegation.Validity, action.Timestamp) {
		return false
	}
	return MatchesScope(delegation.Scope, action)
}

// FindMatchingDelegations ranks the candidates that could plausibly
// authorize the action, most specific scope first. Ties break on delegation
// id so the order is total.
func FindMatchingDelegations(action entities.ActionContext, candidates []entities.Delegation) []entities.Delegation {
	matches := make([]entities.Delegation, 0, len(candidates))
	for _, candidate := range candidates {
		if CanPotentiallyAuthorize(candidate, action) {
			matches = append(matches, candidate)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		left := ScopeSpecificity(matches[i].Scope, action)
		right := ScopeSpecificity(matches[j].Scope, action)
		if left != right {
			return left > right
		}
		return matches[i].DelegationID < matches[j].DelegationID
	})
	return matches
}

func withinValidityWindow(validity entities.Validity, at time.Time) bool {
	ts := at.UTC()
	if !validity.StartsAt.IsZero() && ts.Before(validity.StartsAt.UTC()) {
		return false
	}
	if !validity.EndsAt.IsZero() && ts.After(validity.EndsAt.UTC()) {
		return false
	}
	if len(validity.AllowedWeekdays) > 0 {
		allowed := false
		for _, weekday := range validity.AllowedWeekdays {
			if ts.Weekday() == weekday {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}

func missingControls(required []string, evidenced []string) []string {
	present := make(map[string]struct{}, len(evidenced))
	for _, control := range evidenced {
		present[control] = struct{}{}
	}
	var missing []string
	for _, control := range required {
		if _, ok := present[control]; !ok {
			missing = append(missing, control)
		}
	}
	return missing
}
