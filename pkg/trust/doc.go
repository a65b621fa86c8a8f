// Package trust reconciles the GitHub Actions OIDC trust policy on an
// AWS IAM role.
//
// # Overview
//
// A trust policy decides which principals may assume an IAM role. For CI
// workloads, GitHub's OIDC provider (token.actions.githubusercontent.com)
// issues short-lived tokens whose claims identify the repository and
// workflow run. This package constructs the canonical trust-policy
// document scoping a role to one repository, applies it wholesale via the
// identity-role API, and verifies the applied state matches intent.
//
// # Core Concepts
//
// ## Policy model
//
// TrustPolicyDocument and Statement model the versioned policy grammar
// structurally. Documents are built by BuildTrustPolicy from
// RoleIdentityParams, compared with Equal (statement-set equality,
// serialization order ignored), and serialized only at the API boundary.
//
// ## RoleTrustClient
//
// RoleTrustClient abstracts the two remote operations the workflow needs:
// Apply (full-document replacement of the role's trust policy) and Fetch
// (read back the currently-effective policy, normalized into the
// structural model). The concrete AWS implementation lives in
// pkg/providers/aws.
//
// ## Reconciler
//
// Reconciler sequences BUILD, APPLY, and VERIFY, owns the retry policy
// for transient failures, and classifies every terminal state into a
// ReconcileResult outcome. Apply always completes before Verify begins,
// and a role is mutated at most once per invocation.
//
// The target role's trust policy is shared mutable state outside this
// process. Concurrent reconciliations of the same role are last-writer-wins;
// the package does not provide cross-process mutual exclusion.
package trust
