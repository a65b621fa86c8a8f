package trust

import (
	"context"
)

// RoleTrustClient abstracts the identity-role API operations the
// reconciler needs. Implementations must not retry; retry policy belongs
// to the Reconciler.
type RoleTrustClient interface {
	// Apply replaces the role's trust policy wholesale. The API semantics
	// are full-document replacement, not a merge.
	Apply(ctx context.Context, roleName string, doc TrustPolicyDocument) error

	// Fetch reads back the currently-effective trust policy, normalized
	// into the structural model.
	Fetch(ctx context.Context, roleName string) (TrustPolicyDocument, error)
}

// Credentials is a short-lived or long-lived caller credential pair.
// Callers must Zero credentials on all exit paths and never log or
// persist secret material.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Valid reports whether the credential pair is populated.
func (c Credentials) Valid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Zero discards the secret material.
func (c *Credentials) Zero() {
	c.AccessKeyID = ""
	c.SecretAccessKey = ""
	c.SessionToken = ""
}

// CredentialProvider supplies caller credentials. How they are obtained
// (interactive prompt, environment, instance profile) is the provider's
// concern; the reconciliation core never reads ambient secret stores.
type CredentialProvider interface {
	Retrieve(ctx context.Context) (Credentials, error)
}
