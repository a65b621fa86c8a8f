package trust

// Outcome is the terminal state of a reconciliation.
type Outcome string

const (
	// OutcomeVerified means the policy was applied and read back equal.
	OutcomeVerified Outcome = "applied_verified"
	// OutcomeVerifyFailed means the apply succeeded but the read-back did
	// not confirm it. Reported as a warning, not escalated: the write may
	// have landed despite eventual-consistency lag on the read.
	OutcomeVerifyFailed Outcome = "applied_verify_failed"
	// OutcomeApplyFailed means the apply did not succeed.
	OutcomeApplyFailed Outcome = "apply_failed"
	// OutcomeInputInvalid means the caller parameters were rejected before
	// any network call.
	OutcomeInputInvalid Outcome = "input_invalid"
	// OutcomeCancelled means an external signal aborted the run.
	OutcomeCancelled Outcome = "cancelled"
)

// ReconcileResult is the outcome of one reconciliation.
type ReconcileResult struct {
	// RunID uniquely identifies this invocation in logs and output.
	RunID string

	// Outcome is the terminal state.
	Outcome Outcome

	// RoleName is the target role.
	RoleName string

	// Document is the built trust-policy document, when the build
	// succeeded.
	Document *TrustPolicyDocument

	// Observed is the fetched document on a verification mismatch.
	Observed *TrustPolicyDocument

	// Err carries the underlying error on non-success paths.
	Err error
}

// Succeeded reports whether the policy was applied and verified.
func (r ReconcileResult) Succeeded() bool {
	return r.Outcome == OutcomeVerified
}
