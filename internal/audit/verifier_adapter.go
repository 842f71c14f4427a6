package audit

import "github.com/riftguard/riftguard/internal/verify"

// VerificationRecorder adapts a Ledger to verify.Auditor, translating a
// verification Result into the ledger's own Record shape.
type VerificationRecorder struct {
	ledger *Ledger
}

// NewVerificationRecorder wraps ledger as a verify.Auditor.
func NewVerificationRecorder(ledger *Ledger) *VerificationRecorder {
	return &VerificationRecorder{ledger: ledger}
}

// RecordVerification implements verify.Auditor.
func (v *VerificationRecorder) RecordVerification(action verify.Action, result verify.Result) {
	outcome := OutcomeAllowed
	switch {
	case !result.Allowed:
		outcome = OutcomeDenied
	case result.FinalRisk >= 60:
		outcome = OutcomeReview
	}

	policyID := ""
	if len(result.BlockingPolicies) > 0 {
		policyID = result.BlockingPolicies[0]
	} else if len(result.EvaluatedPolicies) > 0 {
		policyID = result.EvaluatedPolicies[0]
	}

	v.ledger.Record(Record{
		AgentID:   action.AgentID,
		Action:    action.ActionString,
		PolicyID:  policyID,
		Outcome:   outcome,
		Reasoning: result.Reasoning,
		Region:    action.Jurisdiction,
		RiskScore: result.FinalRisk,
		LatencyUs: result.TotalLatency.Microseconds(),
	})
}
