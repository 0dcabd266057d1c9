package policy

import (
	"fmt"
	"strings"

	"ouvrage/contexts/program-oversight/delegation-authority/domain/entities"
)

// FormatEvaluationSummary renders a result into the explanation shown on
// audit screens. Pure string building, no side effects.
func FormatEvaluationSummary(result entities.EvaluationResult) string {
	var b strings.Builder

	switch result.Verdict {
	case entities.VerdictAuthorized:
		b.WriteString("Action authorized under the delegation.")
	case entities.VerdictDenied:
		b.WriteString("Action denied: ")
		b.WriteString(strings.Join(result.Reasons, ", "))
		b.WriteString(".")
	case entities.VerdictPendingControl:
		b.WriteString("Action pending control: missing ")
		b.WriteString(strings.Join(result.RequiredControls, ", "))
		b.WriteString(".")
	default:
		b.WriteString(fmt.Sprintf("Unknown verdict %q.", string(result.Verdict)))
	}

	if result.MatchedPolicyID != "" {
		b.WriteString(fmt.Sprintf(" Matched policy %s.", result.MatchedPolicyID))
	}
	for _, risk := range result.Risks {
		b.WriteString(fmt.Sprintf(" Risk [%s/%s]: %s.", risk.Type, risk.Severity, risk.Message))
	}
	return b.String()
}
