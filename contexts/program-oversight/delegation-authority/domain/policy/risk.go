package policy

import (
	"fmt"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
)

// proximityNumerator/Denominator: an amount within 10% of the transaction
// limit is flagged even when authorized.
const (
	proximityNumerator   = 9
	proximityDenominator = 10
)

func computeRisks(delegation entities.Delegation, action entities.ActionContext) []entities.Risk {
	var risks []entities.Risk

	limit := delegation.Limits.MaxPerTransaction
	if limit > 0 && action.Amount <= limit && action.Amount*proximityDenominator >= limit*proximityNumerator {
		risks = append(risks, entities.Risk{
			Type:     entities.RiskHighAmountProximity,
			Severity: entities.RiskSeverityHigh,
			Message:  fmt.Sprintf("amount %d %s is within 10%% of the per-transaction limit %d", action.Amount, delegation.Limits.Currency, limit),
		})
	}

	if len(delegation.Engagements) == 0 {
		risks = append(risks, entities.Risk{
			Type:     entities.RiskFirstUse,
			Severity: entities.RiskSeverityMedium,
			Message:  "first recorded use of this delegation",
		})
	}

	if action.Supplier != "" && !knownSupplier(delegation.Engagements, action.Supplier) {
		risks = append(risks, entities.Risk{
			Type:     entities.RiskUnknownSupplier,
			Severity: entities.RiskSeverityMedium,
			Message:  fmt.Sprintf("supplier %q has no prior engagement under this delegation", action.Supplier),
		})
	}

	quota := delegation.Limits.Quota
	if quota > 0 {
		projected := delegation.CommittedAmount() + action.Amount
		if projected <= quota && projected*proximityDenominator >= quota*proximityNumerator {
			risks = append(risks, entities.Risk{
				Type:     entities.RiskQuotaNearExhaustion,
				Severity: entities.RiskSeverityHigh,
				Message:  fmt.Sprintf("projected commitment %d %s reaches 90%% of the quota %d", projected, delegation.Limits.Currency, quota),
			})
		}
	}

	return risks
}

func knownSupplier(engagements []entities.Engagement, supplier string) bool {
	for _, engagement := range engagements {
		if engagement.Supplier == supplier {
			return true
		}
	}
	return false
}
