package trust

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
)

const (
	defaultMaxAttempts      = 3
	defaultInitialInterval  = 500 * time.Millisecond
	defaultOperationTimeout = 30 * time.Second
)

// Reconciler sequences build, apply, and verify against a role, and is
// the sole owner of retry and escalation decisions.
//
// A Reconciler mutates the role at most once per Reconcile call. It is
// not safe to reconcile the same role concurrently: the trust policy is
// shared mutable state owned by the role service, and concurrent writers
// race last-writer-wins.
type Reconciler struct {
	client           RoleTrustClient
	maxAttempts      uint
	initialInterval  time.Duration
	operationTimeout time.Duration
}

// ReconcilerOption configures the Reconciler.
type ReconcilerOption func(*Reconciler)

// WithMaxAttempts bounds retries of transient failures, counting the
// first try.
func WithMaxAttempts(n uint) ReconcilerOption {
	return func(r *Reconciler) {
		r.maxAttempts = n
	}
}

// WithInitialInterval sets the base backoff delay, doubled per retry.
func WithInitialInterval(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.initialInterval = d
	}
}

// WithOperationTimeout caps each remote operation, retries included.
func WithOperationTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.operationTimeout = d
	}
}

// NewReconciler creates a Reconciler over the given client.
func NewReconciler(client RoleTrustClient, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		client:           client,
		maxAttempts:      defaultMaxAttempts,
		initialInterval:  defaultInitialInterval,
		operationTimeout: defaultOperationTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile builds the trust-policy document for params, applies it to
// the role, and verifies the applied state by reading it back.
//
// Invalid input stops before any network call. Transient apply or fetch
// failures are retried with bounded exponential backoff; access-denied
// and role-not-found are surfaced verbatim without retry. A fetch failure
// or structural mismatch after a successful apply yields
// OutcomeVerifyFailed without rollback. Cancellation of ctx at any point
// yields OutcomeCancelled; Verify is never attempted after a cancelled
// apply.
func (r *Reconciler) Reconcile(ctx context.Context, params RoleIdentityParams) ReconcileResult {
	runID := uuid.NewString()
	log := clog.FromContext(ctx).With("run_id", runID, "role", params.RoleName)

	doc, err := BuildTrustPolicy(params)
	if err != nil {
		return ReconcileResult{
			RunID:    runID,
			Outcome:  OutcomeInputInvalid,
			RoleName: params.RoleName,
			Err:      err,
		}
	}
	result := ReconcileResult{
		RunID:    runID,
		RoleName: params.RoleName,
		Document: &doc,
	}

	log.Infof("applying trust policy for repo %s", params.RepoSlug)
	err = r.withRetry(ctx, log, "apply", func(opCtx context.Context) error {
		return r.client.Apply(opCtx, params.RoleName, doc)
	})
	if err != nil {
		if ctx.Err() != nil {
			result.Outcome = OutcomeCancelled
			result.Err = ErrCancelled("reconciliation aborted during apply").WithRole(params.RoleName).WithCause(ctx.Err())
			return result
		}
		result.Outcome = OutcomeApplyFailed
		result.Err = err
		return result
	}

	log.Infof("verifying applied trust policy")
	var observed TrustPolicyDocument
	err = r.withRetry(ctx, log, "fetch", func(opCtx context.Context) error {
		var ferr error
		observed, ferr = r.client.Fetch(opCtx, params.RoleName)
		return ferr
	})
	if err != nil {
		if ctx.Err() != nil {
			result.Outcome = OutcomeCancelled
			result.Err = ErrCancelled("reconciliation aborted during verify").WithRole(params.RoleName).WithCause(ctx.Err())
			return result
		}
		log.Warnf("could not verify applied trust policy: %v", err)
		result.Outcome = OutcomeVerifyFailed
		result.Err = err
		return result
	}

	if !doc.Equal(observed) {
		log.Warnf("applied trust policy does not match the built document")
		result.Outcome = OutcomeVerifyFailed
		result.Observed = &observed
		result.Err = ErrVerifyMismatch(params.RoleName)
		return result
	}

	log.Infof("trust policy applied and verified")
	result.Outcome = OutcomeVerified
	return result
}

// Verify builds the document for params and compares it against the
// currently-effective policy without writing anything.
func (r *Reconciler) Verify(ctx context.Context, params RoleIdentityParams) ReconcileResult {
	runID := uuid.NewString()
	log := clog.FromContext(ctx).With("run_id", runID, "role", params.RoleName)

	doc, err := BuildTrustPolicy(params)
	if err != nil {
		return ReconcileResult{
			RunID:    runID,
			Outcome:  OutcomeInputInvalid,
			RoleName: params.RoleName,
			Err:      err,
		}
	}
	result := ReconcileResult{
		RunID:    runID,
		RoleName: params.RoleName,
		Document: &doc,
	}

	var observed TrustPolicyDocument
	err = r.withRetry(ctx, log, "fetch", func(opCtx context.Context) error {
		var ferr error
		observed, ferr = r.client.Fetch(opCtx, params.RoleName)
		return ferr
	})
	if err != nil {
		if ctx.Err() != nil {
			result.Outcome = OutcomeCancelled
			result.Err = ErrCancelled("verification aborted").WithRole(params.RoleName).WithCause(ctx.Err())
			return result
		}
		result.Outcome = OutcomeVerifyFailed
		result.Err = err
		return result
	}

	if !doc.Equal(observed) {
		result.Outcome = OutcomeVerifyFailed
		result.Observed = &observed
		result.Err = ErrVerifyMismatch(params.RoleName)
		return result
	}

	result.Outcome = OutcomeVerified
	return result
}

// withRetry runs op, retrying only transient failures with exponential
// backoff, bounded by maxAttempts and the per-operation timeout.
func (r *Reconciler) withRetry(ctx context.Context, log *clog.Logger, name string, op func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, r.operationTimeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.initialInterval
	bo.Multiplier = 2

	var lastErr error
	_, err := backoff.Retry(opCtx, func() (struct{}, error) {
		err := op(opCtx)
		if err == nil {
			return struct{}{}, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		log.Warnf("transient %s failure, will retry: %v", name, err)
		return struct{}{}, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(r.maxAttempts),
	)
	if err == nil {
		return nil
	}
	// Retries exhausted or the context expired mid-wait: surface the last
	// operation error rather than the bare context error when one exists.
	if lastErr != nil {
		return lastErr
	}
	return err
}
