package trust

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
)

const (
	// PolicyVersion is the IAM policy-language version.
	PolicyVersion = "2012-10-17"

	// GitHubOIDCHost is the GitHub Actions OIDC provider host.
	GitHubOIDCHost = "token.actions.githubusercontent.com"

	// STSAudience is the audience claim STS expects in GitHub OIDC tokens.
	STSAudience = "sts.amazonaws.com"

	// AssumeRoleAction is the capability granted by the trust statement.
	AssumeRoleAction = "sts:AssumeRoleWithWebIdentity"
)

// Condition operators used by the trust statement.
const (
	conditionStringEquals = "StringEquals"
	conditionStringLike   = "StringLike"
)

// Effect is a policy statement effect.
type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

// StringOrSlice is a JSON value the IAM API encodes either as a bare
// string or as an array of strings. A single element marshals as a bare
// string to match the canonical document shape.
type StringOrSlice []string

// MarshalJSON implements json.Marshaler.
func (s StringOrSlice) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringOrSlice) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringOrSlice{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("value is neither string nor string array: %w", err)
	}
	*s = StringOrSlice(many)
	return nil
}

// equalAsSet compares two value lists ignoring order.
func (s StringOrSlice) equalAsSet(other StringOrSlice) bool {
	if len(s) != len(other) {
		return false
	}
	seen := make(map[string]int, len(s))
	for _, v := range s {
		seen[v]++
	}
	for _, v := range other {
		seen[v]--
		if seen[v] < 0 {
			return false
		}
	}
	return true
}

// Principal identifies who is granted trust by a statement. Only
// federated principals appear in OIDC trust policies.
type Principal struct {
	Federated StringOrSlice `json:"Federated,omitempty"`
}

// Condition maps a condition operator to claim-key/expected-value pairs.
type Condition map[string]map[string]StringOrSlice

// Statement is one trust grant.
type Statement struct {
	Effect    Effect        `json:"Effect"`
	Principal Principal     `json:"Principal"`
	Action    StringOrSlice `json:"Action"`
	Condition Condition     `json:"Condition,omitempty"`
}

// Equal reports structural equality between two statements. Multi-valued
// fields are compared as sets.
func (s Statement) Equal(other Statement) bool {
	if s.Effect != other.Effect {
		return false
	}
	if !s.Principal.Federated.equalAsSet(other.Principal.Federated) {
		return false
	}
	if !s.Action.equalAsSet(other.Action) {
		return false
	}
	if len(s.Condition) != len(other.Condition) {
		return false
	}
	for op, claims := range s.Condition {
		otherClaims, ok := other.Condition[op]
		if !ok || len(claims) != len(otherClaims) {
			return false
		}
		for key, values := range claims {
			otherValues, ok := otherClaims[key]
			if !ok || !values.equalAsSet(otherValues) {
				return false
			}
		}
	}
	return true
}

// TrustPolicyDocument is an immutable trust-policy value. The statement
// order is stable for reproducibility, but comparison treats statements
// as a set, matching how the policy evaluator reads them.
type TrustPolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Equal reports structural equality between two documents, ignoring
// statement order.
func (d TrustPolicyDocument) Equal(other TrustPolicyDocument) bool {
	if d.Version != other.Version {
		return false
	}
	if len(d.Statement) != len(other.Statement) {
		return false
	}
	matched := make([]bool, len(other.Statement))
	for _, stmt := range d.Statement {
		found := false
		for i, candidate := range other.Statement {
			if !matched[i] && stmt.Equal(candidate) {
				matched[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// String renders the document as indented JSON.
func (d TrustPolicyDocument) String() string {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Sprintf("<unrenderable trust policy: %v>", err)
	}
	return string(data)
}

var (
	accountIDPattern = regexp.MustCompile(`^\d{12}$`)
	repoSlugPattern  = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
)

// RoleIdentityParams are the inputs identifying the role and the
// federated principal it should trust.
type RoleIdentityParams struct {
	// AccountID is the 12-digit AWS account ID owning the role.
	AccountID string

	// RepoSlug is the GitHub repository in owner/name form. Trust is
	// scoped to any workflow run in this repository.
	RepoSlug string

	// RoleName is the IAM role whose trust policy is reconciled.
	RoleName string

	// Region is the AWS region used for the API endpoint.
	Region string
}

// Validate checks the parameter invariants.
func (p RoleIdentityParams) Validate() error {
	if !accountIDPattern.MatchString(p.AccountID) {
		return ErrInvalidInput(fmt.Sprintf("account_id must be a 12-digit AWS account ID, got %q", p.AccountID))
	}
	if !repoSlugPattern.MatchString(p.RepoSlug) {
		return ErrInvalidInput(fmt.Sprintf("repo must be in owner/name form, got %q", p.RepoSlug))
	}
	if p.RoleName == "" {
		return ErrInvalidInput("role_name is required")
	}
	if p.Region == "" {
		return ErrInvalidInput("region is required")
	}
	return nil
}

// ProviderARN derives the OIDC provider ARN for the account.
func (p RoleIdentityParams) ProviderARN() string {
	return fmt.Sprintf("arn:aws:iam::%s:oidc-provider/%s", p.AccountID, GitHubOIDCHost)
}

// BuildTrustPolicy constructs the canonical trust-policy document for the
// given role identity. Pure and deterministic: identical params yield
// structurally equal documents.
func BuildTrustPolicy(params RoleIdentityParams) (TrustPolicyDocument, error) {
	if err := params.Validate(); err != nil {
		return TrustPolicyDocument{}, err
	}

	return TrustPolicyDocument{
		Version: PolicyVersion,
		Statement: []Statement{{
			Effect:    EffectAllow,
			Principal: Principal{Federated: StringOrSlice{params.ProviderARN()}},
			Action:    StringOrSlice{AssumeRoleAction},
			Condition: Condition{
				conditionStringEquals: {
					GitHubOIDCHost + ":aud": StringOrSlice{STSAudience},
				},
				conditionStringLike: {
					GitHubOIDCHost + ":sub": StringOrSlice{fmt.Sprintf("repo:%s:*", params.RepoSlug)},
				},
			},
		}},
	}, nil
}

// ParsePolicyDocument parses a JSON trust-policy document into the
// structural model, tolerating the string-or-array encodings the IAM API
// produces.
func ParsePolicyDocument(data []byte) (TrustPolicyDocument, error) {
	var doc TrustPolicyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return TrustPolicyDocument{}, ErrInternal("malformed trust policy document").WithCause(err)
	}
	return doc, nil
}

// DecodePolicyDocument parses a trust-policy document as returned by the
// role API. GetRole embeds the document URL-encoded; plain JSON is
// accepted as-is.
func DecodePolicyDocument(raw string) (TrustPolicyDocument, error) {
	if doc, err := ParsePolicyDocument([]byte(raw)); err == nil {
		return doc, nil
	}
	unescaped, err := url.QueryUnescape(raw)
	if err != nil {
		return TrustPolicyDocument{}, ErrInternal("trust policy document is neither JSON nor URL-encoded JSON").WithCause(err)
	}
	return ParsePolicyDocument([]byte(unescaped))
}
